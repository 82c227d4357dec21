// Package amqp runs flows from a RabbitMQ queue.
//
// Jobs arrive as RunJob messages on a durable queue. Each job is run once: the
// outcome is published as a RunResult, the delivery is acked on success and
// rejected without requeue on failure, so failed jobs end up in the dead-letter
// queue for manual inspection.
//
//	langrun (direct)
//	├── langrun.runs     [routing: run]     consumed by the worker, DLQ: langrun.runs.dlq
//	└── langrun.results  [routing: result]  RunResult messages
//	langrun.dlq (direct)
//	└── langrun.runs.dlq [routing: run]
//
// A job carrying a ReplyTo property is answered on that queue instead, with the
// job's CorrelationId copied onto the result.
package amqp
