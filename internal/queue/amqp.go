package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"github.com/unclebandit/scoutier-backend/internal/logger"
)

// AMQPQueue publishes and consumes JSON jobs on durable RabbitMQ queues named
// after the topic. Handlers receive the raw message body ([]byte).
type AMQPQueue struct {
	conn *amqp.Connection

	mu sync.Mutex
	ch *amqp.Channel

	log *logrus.Entry
}

// DialAMQP connects to the broker at url.
func DialAMQP(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to queue: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open queue channel: %w", err)
	}
	return &AMQPQueue{conn: conn, ch: ch, log: logger.WithComponent("amqp")}, nil
}

func declare(ch *amqp.Channel, topic string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		topic,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return q, fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	return q, nil
}

func (q *AMQPQueue) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	dest, err := declare(q.ch, topic)
	if err != nil {
		return err
	}
	return q.ch.Publish(
		"",
		dest.Name,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}

// Subscribe consumes topic on its own channel. A handler error requeues the
// message once; a redelivered message that fails again is dropped.
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open queue channel: %w", err)
	}
	src, err := declare(ch, topic)
	if err != nil {
		ch.Close()
		return err
	}
	if err := ch.Qos(1, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(src.Name, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume %s: %w", topic, err)
	}

	log := q.log.WithField("topic", topic)
	go func() {
		for d := range deliveries {
			if err := handler(d.Body); err != nil {
				log.WithError(err).WithField("redelivered", d.Redelivered).Warn("job failed")
				_ = d.Nack(false, !d.Redelivered)
				continue
			}
			_ = d.Ack(false)
		}
		log.Info("consumer stopped")
	}()
	return nil
}

// Close shuts down the publishing channel and the connection, which also
// ends every consumer.
func (q *AMQPQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.ch.Close(); err != nil {
		q.log.WithError(err).Warn("close channel")
	}
	return q.conn.Close()
}

var _ Queue = (*AMQPQueue)(nil)
var _ Queue = (*InMemoryQueue)(nil)
