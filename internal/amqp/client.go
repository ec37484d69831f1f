// Package amqp publishes expense events to a RabbitMQ exchange.
//
// Publishing is best effort: the create path never fails because the broker
// is unavailable. A circuit breaker stops repeated waits on a dead broker.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/core"
	applog "github.com/Anubhavtyagi-13/Personal-Expense-Tracker/internal/log"
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	publishTimeout = 5 * time.Second
	maxBackoff     = 30 * time.Second
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// channel is the subset of *amqp091.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
	Close() error
}

// dialFunc opens a connection and a channel with the exchange declared.
type dialFunc func(url, exchange string) (channel, io.Closer, error)

// Publisher sends expense.created events. It reconnects lazily after a
// connection failure.
type Publisher struct {
	url        string
	exchange   string
	routingKey string
	dial       dialFunc
	logger     *applog.Logger

	mu          sync.Mutex
	conn        io.Closer
	channel     channel
	lastFailure time.Time

	state        int32
	failureCount int64
}

// NewPublisher connects to url, retrying connection errors with exponential
// backoff until ctx is done or a non connection error occurs.
func NewPublisher(ctx context.Context, url, exchange, routingKey string, logger *applog.Logger) (*Publisher, error) {
	p := newPublisher(url, exchange, routingKey, dialBroker, logger)

	for attempt := 0; ; attempt++ {
		err := p.connect()
		if err == nil {
			p.logger.Info("Connected to AMQP broker", "exchange", exchange, "routing_key", routingKey)
			return p, nil
		}
		if !isConnectionError(err) {
			return nil, err
		}
		wait := exponentialBackoff(attempt)
		p.logger.Warn("AMQP connection failed, retrying", applog.FieldError, err, "retry_in", wait.String())
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect AMQP: %w", errors.Join(ctx.Err(), err))
		case <-time.After(wait):
		}
	}
}

func newPublisher(url, exchange, routingKey string, dial dialFunc, logger *applog.Logger) *Publisher {
	if logger == nil {
		logger = applog.Wrap(nil, applog.ComponentAMQP)
	}
	return &Publisher{
		url:        url,
		exchange:   exchange,
		routingKey: routingKey,
		dial:       dial,
		logger:     logger,
	}
}

func dialBroker(url, exchange string) (channel, io.Closer, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, nil, fmt.Errorf("declare exchange: %w", err)
	}
	return ch, conn, nil
}

func (p *Publisher) connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *Publisher) connectLocked() error {
	if p.channel != nil {
		return nil
	}
	ch, conn, err := p.dial(p.url, p.exchange)
	if err != nil {
		return err
	}
	p.channel, p.conn = ch, conn
	return nil
}

func (p *Publisher) dropLocked() {
	if p.channel != nil {
		_ = p.channel.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.channel, p.conn = nil, nil
}

// PublishExpenseCreated announces a stored expense.
func (p *Publisher) PublishExpenseCreated(ctx context.Context, e core.Expense) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.isCircuitOpen() {
		return fmt.Errorf("publish expense created: %w", ErrCircuitOpen)
	}

	body, err := NewExpenseCreatedMessage(e).ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.connectLocked(); err != nil {
		p.recordFailureLocked()
		return fmt.Errorf("reconnect AMQP: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		pctx,
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    e.ID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		p.recordFailureLocked()
		if isConnectionError(err) {
			p.dropLocked()
		}
		return fmt.Errorf("publish message: %w", err)
	}
	p.recordSuccess()

	p.logger.InfoContext(ctx, "Published expense created message",
		applog.FieldExpenseID, e.ID,
		"exchange", p.exchange,
		"routing_key", p.routingKey)
	return nil
}

func (p *Publisher) isCircuitOpen() bool {
	switch atomic.LoadInt32(&p.state) {
	case StateOpen:
		p.mu.Lock()
		last := p.lastFailure
		p.mu.Unlock()
		if time.Since(last) > openTimeout {
			atomic.CompareAndSwapInt32(&p.state, StateOpen, StateHalfOpen)
			return false
		}
		return true
	default:
		return false
	}
}

func (p *Publisher) recordSuccess() {
	atomic.StoreInt64(&p.failureCount, 0)
	atomic.StoreInt32(&p.state, StateClosed)
}

func (p *Publisher) recordFailureLocked() {
	p.lastFailure = time.Now()
	n := atomic.AddInt64(&p.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&p.state) == StateHalfOpen {
		if atomic.SwapInt32(&p.state, StateOpen) != StateOpen {
			p.logger.Warn("AMQP circuit breaker opened", "failures", n)
		}
	}
}

// Close closes the channel and connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	p.channel, p.conn = nil, nil
	return errors.Join(errs...)
}

func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
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
