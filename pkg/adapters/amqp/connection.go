package amqp

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/langrun/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Connection owns one AMQP connection and the channel used by the worker.
type Connection struct {
	logger *slog.Logger

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// Dial connects to the broker and opens a channel.
func Dial(url string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	logger.Info("Connected to RabbitMQ")
	return &Connection{logger: logger, conn: conn, channel: ch}, nil
}

// Channel returns the open channel.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// NotifyClose reports the broker closing the connection.
func (c *Connection) NotifyClose() <-chan *amqp.Error {
	return c.conn.NotifyClose(make(chan *amqp.Error, 1))
}

// Close closes the channel and the connection.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	c.logger.Info("RabbitMQ connection closed")
	return errors.Join(errs...)
}
