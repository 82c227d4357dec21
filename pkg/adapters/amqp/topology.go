package amqp

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys.
const (
	RoutingKeyRun    = "run"
	RoutingKeyResult = "result"
)

// Topology names the exchanges and queues the worker uses.
type Topology struct {
	Exchange    string
	Queue       string
	ResultQueue string
}

// DeadLetterExchange receives rejected jobs.
func (t Topology) DeadLetterExchange() string {
	return t.Exchange + ".dlq"
}

// DeadLetterQueue holds rejected jobs.
func (t Topology) DeadLetterQueue() string {
	return t.Queue + ".dlq"
}

// Declarer is the part of *amqp.Channel needed to declare the topology.
type Declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// Declare creates the exchanges, queues and bindings. It is idempotent.
func (t Topology) Declare(ch Declarer) error {
	for _, ex := range []string{t.Exchange, t.DeadLetterExchange()} {
		if err := ch.ExchangeDeclare(ex, amqp.ExchangeDirect, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}

	queues := []struct {
		name string
		args amqp.Table
	}{
		{t.Queue, amqp.Table{
			"x-dead-letter-exchange":    t.DeadLetterExchange(),
			"x-dead-letter-routing-key": RoutingKeyRun,
		}},
		{t.DeadLetterQueue(), nil},
	}
	if t.ResultQueue != "" {
		queues = append(queues, struct {
			name string
			args amqp.Table
		}{t.ResultQueue, nil})
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	bindings := []struct {
		queue, key, exchange string
	}{
		{t.Queue, RoutingKeyRun, t.Exchange},
		{t.DeadLetterQueue(), RoutingKeyRun, t.DeadLetterExchange()},
	}
	if t.ResultQueue != "" {
		bindings = append(bindings, struct {
			queue, key, exchange string
		}{t.ResultQueue, RoutingKeyResult, t.Exchange})
	}
	for _, b := range bindings {
		if err := ch.QueueBind(b.queue, b.key, b.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}
