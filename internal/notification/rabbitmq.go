package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// DefaultExchange is the durable topic exchange wallet events go to.
	DefaultExchange = "wallet_events"
	dialTimeout     = 10 * time.Second
)

// RabbitPublisher publishes events as JSON to a topic exchange, using the
// event kind as routing key.
type RabbitPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// NewRabbitPublisher dials the broker and declares the exchange.
func NewRabbitPublisher(rawURL, exchange string, logger *slog.Logger) (*RabbitPublisher, error) {
	clean, err := cleanAMQPURL(rawURL)
	if err != nil {
		return nil, err
	}
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.DialConfig(clean, amqp.Config{Dial: amqp.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	p := &RabbitPublisher{conn: conn, exchange: exchange, logger: logger}
	if err := p.openChannel(); err != nil {
		conn.Close()
		return nil, err
	}
	return p, nil
}

func (p *RabbitPublisher) openChannel() error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(p.exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		return fmt.Errorf("declare exchange %s: %w", p.exchange, err)
	}
	p.channel = ch
	return nil
}

// Publish sends event, reopening the channel once if the first attempt fails.
func (p *RabbitPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx, p.exchange, event.Kind, false, false, msg)
	if err == nil {
		return nil
	}
	p.logger.Warn("publish failed; reopening channel", "exchange", p.exchange, "routing_key", event.Kind, "error", err)
	if chErr := p.openChannel(); chErr != nil {
		return errors.Join(err, chErr)
	}
	return p.channel.PublishWithContext(ctx, p.exchange, event.Kind, false, false, msg)
}

// Close closes the channel and the connection.
func (p *RabbitPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

// cleanAMQPURL strips stray quotes that env files tend to leave around the
// URL and insists on an amqp scheme.
func cleanAMQPURL(raw string) (string, error) {
	clean := strings.Trim(strings.TrimSpace(raw), "\"'")
	u, err := url.Parse(clean)
	if err != nil {
		return "", fmt.Errorf("parse rabbitmq url: %w", err)
	}
	if u.Scheme != "amqp" && u.Scheme != "amqps" {
		return "", errors.New("rabbitmq url must use amqp:// or amqps://")
	}
	return clean, nil
}
