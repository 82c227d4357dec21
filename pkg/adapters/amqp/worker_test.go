package amqp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/langrun"
	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/pkg/adapters/dryrun"
	"github.com/aretw0/langrun/pkg/adapters/memory"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/runner"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFlow = `{"name":"echo","data":{"nodes":[
  {"id":"ChatInput-1","data":{"id":"ChatInput-1","type":"ChatInput","node":{"display_name":"Chat Input","template":{"input_value":{"type":"str","value":""}}}}}
],"edges":[]}}`

var topology = Topology{Exchange: "langrun", Queue: "langrun.runs", ResultQueue: "langrun.results"}

type published struct {
	Exchange string
	Key      string
	Msg      amqp.Publishing
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{Exchange: exchange, Key: key, Msg: msg})
	return nil
}

type fakeAcker struct {
	acked, nacked, requeued int
	err                     error
}

func (a *fakeAcker) Ack(tag uint64, multiple bool) error {
	a.acked++
	return a.err
}

func (a *fakeAcker) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return a.err
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func newWorker(t *testing.T, exec *dryrun.Executor) (*Worker, *fakePublisher) {
	t.Helper()
	engine, err := langrun.New(langrun.WithExecutor(exec))
	require.NoError(t, err)
	loader, err := memory.NewLoader(map[string]string{"echo": testFlow})
	require.NoError(t, err)
	pub := &fakePublisher{}
	return NewWorker(runner.NewService(engine, runner.WithLoader(loader)), pub, topology), pub
}

func delivery(t *testing.T, ack amqp.Acknowledger, job any) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, MessageId: "msg-1", Body: body}
}

func decodeResult(t *testing.T, p published) RunResult {
	t.Helper()
	var r RunResult
	require.NoError(t, json.Unmarshal(p.Msg.Body, &r))
	return r
}

func TestHandleDelivery_Success(t *testing.T) {
	exec := dryrun.New()
	w, pub := newWorker(t, exec)
	ack := &fakeAcker{}

	w.HandleDelivery(context.Background(), delivery(t, ack, RunJob{
		ID:      "job-1",
		Request: runner.Request{Flow: "echo", InputValue: "message", FallbackToEnvVars: true},
	}))

	assert.Equal(t, 1, ack.acked)
	assert.Equal(t, 0, ack.nacked)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "langrun", pub.msgs[0].Exchange)
	assert.Equal(t, RoutingKeyResult, pub.msgs[0].Key)
	assert.NotEmpty(t, pub.msgs[0].Msg.MessageId)

	result := decodeResult(t, pub.msgs[0])
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, StatusSucceeded, result.Status)
	assert.Equal(t, "message", result.Text)

	call, ok := exec.Last()
	require.True(t, ok)
	assert.Equal(t, "message", call.Input.InputValue)
	assert.False(t, call.Input.FallbackToEnvVars, "queued jobs cannot turn on env fallback")
}

func TestHandleDelivery_FailedRunGoesToDLQ(t *testing.T) {
	w, pub := newWorker(t, dryrun.NewFailing(fmt.Errorf("%w: boom", domain.ErrExecution)))
	ack := &fakeAcker{}

	w.HandleDelivery(context.Background(), delivery(t, ack, RunJob{Request: runner.Request{Flow: "echo"}}))

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.Equal(t, 0, ack.requeued)

	require.Len(t, pub.msgs, 1)
	result := decodeResult(t, pub.msgs[0])
	assert.Equal(t, "msg-1", result.JobID)
	assert.Equal(t, StatusFailed, result.Status)
	assert.Contains(t, result.Error, "boom")
}

func TestHandleDelivery_Malformed(t *testing.T) {
	w, pub := newWorker(t, dryrun.New())
	ack := &fakeAcker{}

	w.HandleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("not json")})

	assert.Equal(t, 1, ack.nacked)
	assert.Equal(t, 0, ack.requeued)
	assert.Empty(t, pub.msgs)
}

func TestHandleDelivery_ReplyTo(t *testing.T) {
	w, pub := newWorker(t, dryrun.New())
	ack := &fakeAcker{}
	d := delivery(t, ack, RunJob{ID: "job-2", Request: runner.Request{Flow: "echo"}})
	d.ReplyTo = "amq.rabbitmq.reply-to"
	d.CorrelationId = "corr-7"

	w.HandleDelivery(context.Background(), d)

	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "", pub.msgs[0].Exchange)
	assert.Equal(t, "amq.rabbitmq.reply-to", pub.msgs[0].Key)
	assert.Equal(t, "corr-7", pub.msgs[0].Msg.CorrelationId)
	assert.Equal(t, 1, ack.acked)
}

func TestHandleDelivery_PublishFailure(t *testing.T) {
	w, pub := newWorker(t, dryrun.New())
	pub.err = errors.New("channel closed")
	ack := &fakeAcker{}

	w.HandleDelivery(context.Background(), delivery(t, ack, RunJob{Request: runner.Request{Flow: "echo"}}))

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
}

func TestHandleDelivery_ShutdownRequeuesWithoutResult(t *testing.T) {
	exec := dryrun.New()
	w, pub := newWorker(t, exec)
	ack := &fakeAcker{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w.HandleDelivery(ctx, delivery(t, ack, RunJob{ID: "job-3", Request: runner.Request{Flow: "echo"}}))

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.Equal(t, 1, ack.requeued)
	assert.Empty(t, pub.msgs, "an interrupted job publishes no result")
}

func TestHandleDelivery_LogsSettleErrors(t *testing.T) {
	var logs bytes.Buffer
	w, _ := newWorker(t, dryrun.New())
	w.logger = logging.NewWithFormat(&logs, slog.LevelInfo, "text")
	ack := &fakeAcker{err: errors.New("channel closed")}

	w.HandleDelivery(context.Background(), delivery(t, ack, RunJob{ID: "job-4", Request: runner.Request{Flow: "echo"}}))
	assert.Equal(t, 1, ack.acked)
	assert.Contains(t, logs.String(), "Failed to acknowledge job")

	w.HandleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, MessageId: "bad", Body: []byte("{")})
	assert.Contains(t, logs.String(), "Failed to reject job")
}

type fakeConsumer struct {
	deliveries chan amqp.Delivery
	prefetch   int
	queue      string
}

func (c *fakeConsumer) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.prefetch = prefetchCount
	return nil
}

func (c *fakeConsumer) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.queue = queue
	return c.deliveries, nil
}

func TestConsume(t *testing.T) {
	w, pub := newWorker(t, dryrun.New())
	w.prefetch = 4
	ch := &fakeConsumer{deliveries: make(chan amqp.Delivery, 2)}
	ack := &fakeAcker{}
	ch.deliveries <- delivery(t, ack, RunJob{ID: "a", Request: runner.Request{Flow: "echo"}})
	ch.deliveries <- delivery(t, ack, RunJob{ID: "b", Request: runner.Request{Flow: "echo"}})
	close(ch.deliveries)

	err := w.Consume(context.Background(), ch)
	require.ErrorIs(t, err, ErrDeliveriesClosed)
	assert.Equal(t, 4, ch.prefetch)
	assert.Equal(t, "langrun.runs", ch.queue)
	assert.Equal(t, 2, ack.acked)
	require.Len(t, pub.msgs, 2)
	assert.Equal(t, "a", decodeResult(t, pub.msgs[0]).JobID)
	assert.Equal(t, "b", decodeResult(t, pub.msgs[1]).JobID)
}

func TestConsume_StopsOnCancel(t *testing.T) {
	w, _ := newWorker(t, dryrun.New())
	ch := &fakeConsumer{deliveries: make(chan amqp.Delivery)}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := w.Consume(ctx, ch)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnqueue(t *testing.T) {
	pub := &fakePublisher{}

	id, err := Enqueue(context.Background(), pub, topology, runner.Request{Flow: "echo", InputValue: "hi"})
	require.NoError(t, err)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, RoutingKeyRun, pub.msgs[0].Key)
	assert.Equal(t, id, pub.msgs[0].Msg.MessageId)
	assert.Equal(t, uint8(amqp.Persistent), pub.msgs[0].Msg.DeliveryMode)

	var job RunJob
	require.NoError(t, json.Unmarshal(pub.msgs[0].Msg.Body, &job))
	assert.Equal(t, "hi", job.Request.InputValue)

	_, err = Enqueue(context.Background(), pub, topology, runner.Request{})
	require.ErrorIs(t, err, runner.ErrInvalidRequest)
}

type fakeDeclarer struct {
	exchanges []string
	queues    map[string]amqp.Table
	bindings  []string
}

func (d *fakeDeclarer) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	d.exchanges = append(d.exchanges, name+":"+kind)
	return nil
}

func (d *fakeDeclarer) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	if d.queues == nil {
		d.queues = map[string]amqp.Table{}
	}
	d.queues[name] = args
	return amqp.Queue{Name: name}, nil
}

func (d *fakeDeclarer) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	d.bindings = append(d.bindings, exchange+"/"+key+"->"+name)
	return nil
}

func TestTopology_Declare(t *testing.T) {
	d := &fakeDeclarer{}
	require.NoError(t, topology.Declare(d))

	assert.Equal(t, []string{"langrun:direct", "langrun.dlq:direct"}, d.exchanges)
	assert.Equal(t, "langrun.dlq", d.queues["langrun.runs"]["x-dead-letter-exchange"])
	assert.Contains(t, d.queues, "langrun.runs.dlq")
	assert.Contains(t, d.queues, "langrun.results")
	assert.Equal(t, []string{
		"langrun/run->langrun.runs",
		"langrun.dlq/run->langrun.runs.dlq",
		"langrun/result->langrun.results",
	}, d.bindings)
}
