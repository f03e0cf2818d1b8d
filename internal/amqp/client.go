package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"gastos/internal/log"
)

// Circuit breaker states
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
	prefetchCount  = 10
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config names the exchange and the two queues bound to it.
type Config struct {
	URL          string
	Exchange     string
	ChangesQueue string
	SummaryQueue string
}

type Client struct {
	url          string
	exchangeName string
	changesQueue string
	summaryQueue string
	logger       *log.Logger

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	failureMu    sync.Mutex
	lastFailure  time.Time
}

func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Discard()
	}
	c := &Client{
		url:          cfg.URL,
		exchangeName: cfg.Exchange,
		changesQueue: cfg.ChangesQueue,
		summaryQueue: cfg.SummaryQueue,
		logger:       logger.WithComponent(log.ComponentAMQP),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.changesQueue, c.summaryQueue} {
		if _, err := ch.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key is the queue name on the direct exchange.
		if err := ch.QueueBind(queue, queue, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// ensureChannelLocked reconnects when the broker dropped the connection.
func (c *Client) ensureChannelLocked() error {
	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return nil
	}
	c.closeLocked()
	c.logger.Warn("AMQP connection lost, reconnecting", "exchange", c.exchangeName)
	return c.connectLocked()
}

// PublishExpensesChanged announces an expense write on the changes queue.
func (c *Client) PublishExpensesChanged(ctx context.Context, msg *ExpensesChangedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.changesQueue, msg.ID, body); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Published expenses changed message",
		log.FieldMessageID, msg.ID,
		"count", msg.Count,
		"source", msg.Source,
		"queue", c.changesQueue)
	return nil
}

// PublishProjectionSummary publishes the outcome of a projection run.
func (c *Client) PublishProjectionSummary(ctx context.Context, msg *ProjectionSummaryMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.summaryQueue, msg.ID, body); err != nil {
		return err
	}

	c.logger.InfoContext(ctx, "Published projection summary message",
		log.FieldMessageID, msg.ID,
		log.FieldWindowFrom, msg.Desde.String(),
		log.FieldWindowTo, msg.Hasta.String(),
		log.FieldTotal, msg.Total.String(),
		"queue", c.summaryQueue)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey, messageID string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureChannelLocked(); err != nil {
		c.recordFailure()
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		if isConnectionError(err) {
			c.closeLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

// ConsumeExpensesChanged hands every expenses-changed message to handler until
// ctx is done, reconnecting with backoff when the broker goes away.
func (c *Client) ConsumeExpensesChanged(ctx context.Context, handler func(context.Context, *ExpensesChangedMessage) error) error {
	return c.consume(ctx, c.changesQueue, func(ctx context.Context, d amqp091.Delivery) {
		handleDelivery(ctx, c.logger, d, ExpensesChangedMessageFromJSON, handler)
	})
}

func (c *Client) consume(ctx context.Context, queue string, handle func(context.Context, amqp091.Delivery)) error {
	for attempt := 0; ; {
		msgs, ch, err := c.startConsuming(queue)
		if err != nil {
			wait := exponentialBackoff(attempt)
			attempt++
			c.logger.WarnContext(ctx, "Failed to start consumer, retrying",
				log.FieldError, err, "queue", queue, "retry_in", wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}
		attempt = 0

		c.logger.InfoContext(ctx, "Started consuming messages", "queue", queue)
		closed := c.drain(ctx, msgs, handle)
		ch.Close()
		if !closed {
			c.logger.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		}
		c.logger.WarnContext(ctx, "Delivery channel closed, reconnecting", "queue", queue)
	}
}

// drain processes deliveries and reports whether the delivery channel closed
// (as opposed to ctx being cancelled).
func (c *Client) drain(ctx context.Context, msgs <-chan amqp091.Delivery, handle func(context.Context, amqp091.Delivery)) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case d, ok := <-msgs:
			if !ok {
				return true
			}
			handle(ctx, d)
		}
	}
}

func (c *Client) startConsuming(queue string) (<-chan amqp091.Delivery, *amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureChannelLocked(); err != nil {
		return nil, nil, err
	}

	ch, err := c.conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open consumer channel: %w", err)
	}
	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("set qos: %w", err)
	}

	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		ch.Close()
		return nil, nil, fmt.Errorf("start consuming: %w", err)
	}
	return msgs, ch, nil
}

// handleDelivery decodes one delivery and settles it: malformed bodies are
// dropped, handler errors are requeued, success is acked.
func handleDelivery[T any](ctx context.Context, logger *log.Logger, d amqp091.Delivery, decode func([]byte) (*T, error), handler func(context.Context, *T) error) {
	msg, err := decode(d.Body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to unmarshal message", log.FieldError, err, log.FieldMessageID, d.MessageId)
		d.Nack(false, false)
		return
	}

	if err := handler(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "Failed to handle message", log.FieldError, err, log.FieldMessageID, d.MessageId)
		d.Nack(false, true)
		return
	}

	d.Ack(false)
	logger.DebugContext(ctx, "Processed message", log.FieldMessageID, d.MessageId)
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}

	c.failureMu.Lock()
	defer c.failureMu.Unlock()
	if time.Since(c.lastFailure) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	n := atomic.AddInt64(&c.failureCount, 1)

	c.failureMu.Lock()
	c.lastFailure = time.Now()
	c.failureMu.Unlock()

	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		if atomic.SwapInt32(&c.state, StateOpen) != StateOpen {
			c.logger.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

// exponentialBackoff returns 1s, 2s, 4s ... capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	return min(time.Second<<attempt, maxBackoff)
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "closed"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.channel != nil {
		c.channel.Close()
		c.channel = nil
	}
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		if err != nil && !errors.Is(err, amqp091.ErrClosed) {
			return err
		}
	}
	return nil
}
