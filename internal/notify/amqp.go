package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the queue the mail worker consumes when none is configured.
const DefaultQueue = "donateabook.donation-requests"

// AMQPPublisher hands donation notices to a broker queue so an out-of-process
// mail worker delivers them. The hand-off is at-least-once; the HTTP side
// still treats it as fire-and-forget.
type AMQPPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    *amqp.Channel
	addr  string
	queue string
}

// NewAMQPPublisher connects to the broker and declares the durable queue.
func NewAMQPPublisher(addr, queue string) (*AMQPPublisher, error) {
	if strings.TrimSpace(queue) == "" {
		queue = DefaultQueue
	}
	p := &AMQPPublisher{addr: addr, queue: queue}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.addr)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("declare queue: %w", err)
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// SendDonationRequest publishes the notice as a persistent JSON message.
func (p *AMQPPublisher) SendDonationRequest(ctx context.Context, notice DonationNotice) error {
	body, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.ch.IsClosed() {
		if err := p.connect(); err != nil {
			return err
		}
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish notice: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Consume delivers queued notices to handler until ctx is cancelled.
// Messages are acked only after the handler succeeds, so a crashed worker
// leaves them for redelivery.
func Consume(ctx context.Context, addr, queue string, handler func(context.Context, DonationNotice) error) error {
	if strings.TrimSpace(queue) == "" {
		queue = DefaultQueue
	}
	conn, err := amqp.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	defer conn.Close()
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume queue: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("amqp delivery channel closed")
			}
			var notice DonationNotice
			if err := json.Unmarshal(delivery.Body, &notice); err != nil {
				// Malformed message: drop it, redelivery cannot help.
				_ = delivery.Reject(false)
				continue
			}
			if err := handler(ctx, notice); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}
