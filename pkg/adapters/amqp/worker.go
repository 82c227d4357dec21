package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/langrun/internal/logging"
	"github.com/aretw0/langrun/pkg/domain"
	"github.com/aretw0/langrun/pkg/runner"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// publishTimeout bounds publishing a result once its run has finished.
const publishTimeout = 30 * time.Second

// ErrDeliveriesClosed is returned by Consume when the broker stops delivering.
var ErrDeliveriesClosed = errors.New("deliveries channel closed")

// Runner is the part of runner.Service the worker needs.
type Runner interface {
	Run(ctx context.Context, req runner.Request) (*domain.RunResponse, error)
}

// Publisher is the part of *amqp.Channel used to send messages.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Consumer is the part of *amqp.Channel used to receive jobs.
type Consumer interface {
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Worker consumes RunJob messages and publishes RunResult messages.
type Worker struct {
	svc      Runner
	pub      Publisher
	topology Topology
	prefetch int
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures the Worker.
type Option func(*Worker)

// WithPrefetch bounds the number of unacknowledged jobs held by the worker.
func WithPrefetch(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.prefetch = n
		}
	}
}

// WithLogger sets the worker logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// NewWorker creates a worker that runs jobs with svc and publishes results with pub.
func NewWorker(svc Runner, pub Publisher, topology Topology, opts ...Option) *Worker {
	w := &Worker{
		svc:      svc,
		pub:      pub,
		topology: topology,
		prefetch: 1,
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Consume handles deliveries from the job queue until ctx is done.
// Jobs are processed one at a time in arrival order.
func (w *Worker) Consume(ctx context.Context, ch Consumer) error {
	if err := ch.Qos(w.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(w.topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", w.topology.Queue, err)
	}
	w.logger.Info("Worker started", "queue", w.topology.Queue, "prefetch", w.prefetch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			w.HandleDelivery(ctx, d)
		}
	}
}

// HandleDelivery runs one job, publishes its result and settles the delivery.
// A job interrupted by ctx being cancelled is requeued without a result.
func (w *Worker) HandleDelivery(ctx context.Context, d amqp.Delivery) {
	var job RunJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		w.logger.Error("Rejecting malformed job", "message_id", d.MessageId, "err", err)
		w.nack(d, d.MessageId, false)
		return
	}
	if job.ID == "" {
		job.ID = d.MessageId
	}

	result := w.Process(ctx, job)
	if result.Status == StatusFailed && ctx.Err() != nil {
		w.logger.Warn("Worker stopping, returning job to the queue", "job_id", job.ID, "err", ctx.Err())
		w.nack(d, job.ID, true)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := w.publishResult(pubCtx, d, result); err != nil {
		w.logger.Error("Failed to publish result", "job_id", job.ID, "err", err)
		w.nack(d, job.ID, false)
		return
	}

	if result.Status == StatusFailed {
		w.nack(d, job.ID, false)
		return
	}
	if err := d.Ack(false); err != nil {
		w.logger.Error("Failed to acknowledge job", "job_id", job.ID, "err", err)
	}
}

func (w *Worker) nack(d amqp.Delivery, jobID string, requeue bool) {
	if err := d.Nack(false, requeue); err != nil {
		w.logger.Error("Failed to reject job", "job_id", jobID, "requeue", requeue, "err", err)
	}
}

// Process runs job and describes the outcome.
func (w *Worker) Process(ctx context.Context, job RunJob) RunResult {
	start := w.now()
	resp, err := w.svc.Run(ctx, job.Request)
	result := RunResult{JobID: job.ID, FinishedAt: w.now()}
	if err != nil {
		w.logger.Warn("Job failed", "job_id", job.ID, "flow", job.Request.Flow, "err", err)
		result.Status = StatusFailed
		result.Error = err.Error()
		return result
	}
	w.logger.Info("Job finished", "job_id", job.ID, "flow", job.Request.Flow, "duration", result.FinishedAt.Sub(start))
	result.Status = StatusSucceeded
	result.Text = resp.FirstText()
	result.Response = resp
	return result
}

func (w *Worker) publishResult(ctx context.Context, d amqp.Delivery, result RunResult) error {
	exchange, key := w.topology.Exchange, RoutingKeyResult
	switch {
	case d.ReplyTo != "":
		exchange, key = "", d.ReplyTo
	case w.topology.ResultQueue == "":
		return nil
	}

	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return w.pub.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     uuid.NewString(),
		CorrelationId: d.CorrelationId,
		Timestamp:     result.FinishedAt,
		Body:          body,
	})
}

// Enqueue publishes a job for req and returns its id.
func Enqueue(ctx context.Context, pub Publisher, topology Topology, req runner.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	job := RunJob{
		ID:        uuid.NewString(),
		Request:   req,
		CreatedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	err = pub.PublishWithContext(ctx, topology.Exchange, RoutingKeyRun, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.CreatedAt,
		Body:         body,
	})
	if err != nil {
		return "", fmt.Errorf("publish to %s/%s: %w", topology.Exchange, RoutingKeyRun, err)
	}
	return job.ID, nil
}
