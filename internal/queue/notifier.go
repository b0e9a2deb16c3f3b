// Package queue publishes outbound notification events to RabbitMQ. Email
// and push rendering live in downstream consumers; the API only emits the
// event. Delivery is best effort: failures are logged and returned, and
// callers never roll back a business transaction because of one.
package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const notificationQueue = "notification.send"

// Notification kinds understood by the downstream consumers.
const (
	KindEmailChangeCode = "email_change_code"
	KindWorkspaceInvite = "workspace_invite"
)

// Notification is the payload published for every outbound message.
type Notification struct {
	Kind      string         `json:"kind"`
	Recipient string         `json:"recipient"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Notifier delivers notifications to the outbound channel.
type Notifier interface {
	Send(ctx context.Context, kind, recipient string, payload map[string]any) error
}

// AMQPNotifier publishes notifications to a RabbitMQ queue. Connections are
// short-lived per publish so a broker restart never wedges the API.
type AMQPNotifier struct {
	url string
}

func NewAMQPNotifier(url string) *AMQPNotifier {
	return &AMQPNotifier{url: url}
}

// Send publishes one notification. Messages are persistent so they survive
// broker restarts.
func (n *AMQPNotifier) Send(ctx context.Context, kind, recipient string, payload map[string]any) error {
	conn, err := amqp.Dial(n.url)
	if err != nil {
		logrus.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logrus.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		notificationQueue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		logrus.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(Notification{
		Kind:      kind,
		Recipient: recipient,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", notificationQueue, false, false, pub); err != nil {
		logrus.WithError(err).WithField("kind", kind).Warn("rabbitmq: publish failed")
		return err
	}

	return nil
}
