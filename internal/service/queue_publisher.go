// Package queue_publisher publishes domain events to RabbitMQ. Errors are
// logged and returned so callers can ignore failures without interrupting
// the main request flow; nothing here retries.
package queue_publisher

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/agrilink/agrilink-api/internal/queue"
)

// Publish sends one envelope to the marketplace events queue. The function
// never panics; any error is logged and returned so the caller can choose to
// ignore it. Messages are marked persistent.
func Publish(ctx context.Context, env q.Envelope) error {
	if env.OccurredAt == "" {
		env.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}
	conn, err := amqp.Dial(q.BrokerURL())
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// Ensure the queue exists (idempotent). Durable so messages survive
	// broker restarts.
	if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(env)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", q.QueueName, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}
	return nil
}

// Audit publishes an audit record on a fire-and-forget basis. Failures are
// logged and swallowed; recording the trail must never fail the operation
// being audited.
func Audit(ctx context.Context, userID, action, entityType, entityID string) {
	_ = Publish(ctx, q.Envelope{
		Type: q.EventAudit,
		Audit: &q.AuditEvent{
			UserID:     userID,
			Action:     action,
			EntityType: entityType,
			EntityID:   entityID,
		},
	})
}
