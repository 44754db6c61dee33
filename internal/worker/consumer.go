package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/catalog-bridge/internal/queue"
	"github.com/cuongbtq/catalog-bridge/internal/worker/domain"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// setupConsumers sets QoS and starts one consumer per queue
func (w *Worker) setupConsumers() (map[string]<-chan amqp.Delivery, error) {
	if len(w.queues) == 0 {
		return nil, fmt.Errorf("no queues to consume")
	}

	// prefetch applies per consumer on the shared channel
	if err := w.broker.SetQos(w.prefetchCount); err != nil {
		return nil, err
	}

	w.logger.Info("RabbitMQ QoS configured",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	streams := make(map[string]<-chan amqp.Delivery, len(w.queues))
	for _, queueName := range w.queues {
		consumerTag := fmt.Sprintf("%s-%s", w.workerID, queueName)

		deliveries, err := w.broker.Consume(queueName, consumerTag)
		if err != nil {
			return nil, fmt.Errorf("failed to start consuming %q: %w", queueName, err)
		}

		w.logger.Info("RabbitMQ consumer started",
			slog.String("consumer_tag", consumerTag),
			slog.String("queue", queueName),
		)
		streams[queueName] = deliveries
	}

	return streams, nil
}

// startMessageDispatcher parses deliveries from one queue and hands them to the pool
func (w *Worker) startMessageDispatcher(ctx context.Context, queueName string, deliveries <-chan amqp.Delivery) {
	w.logger.Info("Message dispatcher started",
		slog.String("queue", queueName),
	)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled",
				slog.String("queue", queueName),
			)
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed",
					slog.String("queue", queueName),
				)
				return
			}

			msg, err := parseDelivery(queueName, delivery)
			if err != nil {
				w.logger.Error("Rejecting malformed message",
					slog.String("queue", queueName),
					slog.String("message_id", delivery.MessageId),
					slog.Any("error", err),
				)
				// malformed messages are never requeued
				w.nack(msg.DeliveryTag, false, msg.JobID)
				continue
			}

			select {
			case w.jobsChan <- msg:
				w.logger.Debug("Job dispatched to worker pool",
					slog.String("job_id", msg.JobID),
					slog.Uint64("delivery_tag", msg.DeliveryTag),
				)
			case <-ctx.Done():
				w.logger.Info("Message dispatcher stopped while dispatching job")
				w.nack(msg.DeliveryTag, true, msg.JobID)
				return
			}
		}
	}
}

// parseDelivery decodes a job envelope. The returned message always carries
// the delivery tag so that a rejected delivery can still be nacked.
func parseDelivery(queueName string, delivery amqp.Delivery) (*domain.JobMessage, error) {
	msg := &domain.JobMessage{
		Queue:       queueName,
		DeliveryTag: delivery.DeliveryTag,
	}

	var env queue.Envelope
	if err := json.Unmarshal(delivery.Body, &env); err != nil {
		return msg, fmt.Errorf("failed to parse message JSON: %w", err)
	}

	msg.JobID = env.JobID
	msg.JobName = env.JobName

	if _, err := uuid.Parse(env.JobID); err != nil {
		return msg, fmt.Errorf("invalid job_id %q: %w", env.JobID, err)
	}

	return msg, nil
}

func (w *Worker) ack(deliveryTag uint64, jobID string) {
	if err := w.broker.Ack(deliveryTag); err != nil {
		w.logger.Error("Failed to ACK message",
			slog.String("job_id", jobID),
			slog.Any("error", err),
		)
	}
}

func (w *Worker) nack(deliveryTag uint64, requeue bool, jobID string) {
	if err := w.broker.Nack(deliveryTag, requeue); err != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("job_id", jobID),
			slog.Bool("requeue", requeue),
			slog.Any("error", err),
		)
		return
	}

	w.logger.Info("Message NACKed",
		slog.String("job_id", jobID),
		slog.Bool("requeue", requeue),
	)
}
