package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"finadvisor/internal/core"
)

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: false,
		},
		{
			name:     "connection error",
			err:      errors.New("connection refused"),
			expected: true,
		},
		{
			name:     "EOF error",
			err:      errors.New("unexpected EOF"),
			expected: true,
		},
		{
			name:     "broken pipe error",
			err:      errors.New("broken pipe"),
			expected: true,
		},
		{
			name:     "amqp closed",
			err:      amqp091.ErrClosed,
			expected: true,
		},
		{
			name:     "not connected",
			err:      errNotConnected,
			expected: true,
		},
		{
			name:     "validation error",
			err:      errors.New("invalid input"),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isConnectionError(tt.err)
			if result != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{
		exchangeName: "test_exchange",
		queueName:    "test_queue",
	}

	t.Run("initial state is closed", func(t *testing.T) {
		if client.isCircuitOpen() {
			t.Error("Circuit breaker should be closed initially")
		}
	})

	t.Run("record success resets state", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 3)
		atomic.StoreInt32(&client.state, StateOpen)

		client.recordSuccess()

		if client.isCircuitOpen() {
			t.Error("Circuit breaker should be closed after success")
		}
		if atomic.LoadInt64(&client.failureCount) != 0 {
			t.Error("Failure count should be reset to 0 after success")
		}
	})

	t.Run("multiple failures open circuit", func(t *testing.T) {
		for i := 0; i < maxFailures; i++ {
			client.recordFailure()
		}
		if !client.isCircuitOpen() {
			t.Error("Circuit breaker should be open after max failures")
		}
	})

	t.Run("circuit transitions to half-open after timeout", func(t *testing.T) {
		atomic.StoreInt32(&client.state, StateOpen)
		client.lastFailure = time.Now().Add(-openTimeout - time.Second)

		if client.isCircuitOpen() {
			t.Error("Circuit should transition to half-open after timeout")
		}
		if atomic.LoadInt32(&client.state) != StateHalfOpen {
			t.Error("State should be StateHalfOpen after timeout")
		}
	})

	t.Run("failure in half-open reopens", func(t *testing.T) {
		atomic.StoreInt64(&client.failureCount, 0)
		atomic.StoreInt32(&client.state, StateHalfOpen)
		client.recordFailure()
		if atomic.LoadInt32(&client.state) != StateOpen {
			t.Error("State should be StateOpen after a half-open failure")
		}
	})
}

func TestClient_PublishWithoutChannel(t *testing.T) {
	client := &Client{exchangeName: "x", queueName: "q"}
	msg := NewTransactionUpserted(core.TransactionRecord{Date: core.NewDate(2025, 1, 1)})

	t.Run("publish respects context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := client.PublishTransactionUpserted(ctx, msg); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("missing channel counts as failure", func(t *testing.T) {
		for i := 0; i < maxFailures; i++ {
			if err := client.PublishTransactionUpserted(context.Background(), msg); !errors.Is(err, errNotConnected) {
				t.Fatalf("attempt %d: expected errNotConnected, got %v", i, err)
			}
		}
		err := client.PublishTransactionUpserted(context.Background(), msg)
		if err == nil || !strings.Contains(err.Error(), "circuit breaker is open") {
			t.Errorf("expected open circuit, got %v", err)
		}
	})
}

func TestTransactionUpserted_JSON(t *testing.T) {
	msg := &TransactionUpserted{
		Date:      core.NewDate(2025, 1, 2),
		Budget:    decimal.RequireFromString("100000.50"),
		Expense:   decimal.NewFromInt(40000),
		Timestamp: time.Date(2025, 1, 2, 12, 0, 0, 0, time.UTC),
	}

	b, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatal(err)
	}
	if raw["date"] != "2025-01-02" || raw["budget"] != "100000.5" || raw["expense"] != "40000" {
		t.Fatalf("unexpected wire format %s", b)
	}

	parsed, err := TransactionUpsertedFromJSON(b)
	if err != nil {
		t.Fatalf("TransactionUpsertedFromJSON() error = %v", err)
	}
	r := parsed.Record()
	if !r.Date.Equal(msg.Date) || !r.Budget.Equal(msg.Budget) || !r.Expense.Equal(msg.Expense) {
		t.Errorf("round trip mismatch: %+v", r)
	}
}

func TestTransactionUpserted_InvalidJSON(t *testing.T) {
	for _, body := range []string{
		`{"date": 12}`,
		`{"date": "2025-13-40", "budget": "1", "expense": "1"}`,
		`{"budget": "1", "expense": "1"}`,
		`{"date": "2025-01-01", "budget": "lots"}`,
	} {
		if _, err := TransactionUpsertedFromJSON([]byte(body)); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}

type ackRecorder struct {
	mu       sync.Mutex
	acked    []uint64
	requeued []uint64
	rejected []uint64
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if requeue {
		a.requeued = append(a.requeued, tag)
	} else {
		a.rejected = append(a.rejected, tag)
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestConsumeAcknowledgement(t *testing.T) {
	acks := &ackRecorder{}
	msgs := make(chan amqp091.Delivery, 3)
	good, _ := NewTransactionUpserted(core.TransactionRecord{Date: core.NewDate(2025, 1, 1)}).ToJSON()
	failing, _ := NewTransactionUpserted(core.TransactionRecord{Date: core.NewDate(2025, 1, 2)}).ToJSON()
	msgs <- amqp091.Delivery{Acknowledger: acks, DeliveryTag: 1, Body: good}
	msgs <- amqp091.Delivery{Acknowledger: acks, DeliveryTag: 2, Body: []byte("not json")}
	msgs <- amqp091.Delivery{Acknowledger: acks, DeliveryTag: 3, Body: failing}
	close(msgs)

	var handled []string
	err := consume(context.Background(), msgs, func(_ context.Context, m *TransactionUpserted) error {
		handled = append(handled, m.Date.String())
		if m.Date.String() == "2025-01-02" {
			return errors.New("mirror down")
		}
		return nil
	}, redeliveryBackoff{})
	if err == nil || !strings.Contains(err.Error(), "channel closed") {
		t.Fatalf("expected channel closed, got %v", err)
	}

	if len(handled) != 2 {
		t.Fatalf("expected 2 handled messages, got %v", handled)
	}
	if len(acks.acked) != 1 || acks.acked[0] != 1 {
		t.Errorf("acked = %v", acks.acked)
	}
	if len(acks.rejected) != 1 || acks.rejected[0] != 2 {
		t.Errorf("rejected = %v", acks.rejected)
	}
	if len(acks.requeued) != 1 || acks.requeued[0] != 3 {
		t.Errorf("requeued = %v", acks.requeued)
	}
}

func TestConsumeStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := consume(ctx, make(chan amqp091.Delivery), func(context.Context, *TransactionUpserted) error { return nil }, defaultRedelivery)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRedeliveryBackoff(t *testing.T) {
	b := redeliveryBackoff{base: 10 * time.Millisecond, max: 25 * time.Millisecond}
	tests := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 10 * time.Millisecond},
		{2, 20 * time.Millisecond},
		{3, 25 * time.Millisecond},
		{200, 25 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := b.delay(tt.failures); got != tt.want {
			t.Errorf("delay(%d) = %v, want %v", tt.failures, got, tt.want)
		}
	}
	if got := (redeliveryBackoff{}).delay(5); got != 0 {
		t.Errorf("zero backoff should not wait, got %v", got)
	}
}

func TestConsumeWaitsBeforeRequeue(t *testing.T) {
	acks := &ackRecorder{}
	msgs := make(chan amqp091.Delivery, 3)
	body, _ := NewTransactionUpserted(core.TransactionRecord{Date: core.NewDate(2025, 1, 2)}).ToJSON()
	for tag := uint64(1); tag <= 3; tag++ {
		msgs <- amqp091.Delivery{Acknowledger: acks, DeliveryTag: tag, Body: body}
	}
	close(msgs)

	var calls int
	start := time.Now()
	_ = consume(context.Background(), msgs, func(context.Context, *TransactionUpserted) error {
		calls++
		if calls < 3 {
			return errors.New("mirror down")
		}
		return nil
	}, redeliveryBackoff{base: 20 * time.Millisecond, max: time.Second})

	// 20ms then 40ms before the two requeues
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("requeues were not delayed, took %v", elapsed)
	}
	if len(acks.requeued) != 2 || len(acks.acked) != 1 || acks.acked[0] != 3 {
		t.Fatalf("requeued=%v acked=%v", acks.requeued, acks.acked)
	}
}

func TestConsumeCancelDuringBackoffRequeues(t *testing.T) {
	acks := &ackRecorder{}
	msgs := make(chan amqp091.Delivery, 1)
	body, _ := NewTransactionUpserted(core.TransactionRecord{Date: core.NewDate(2025, 1, 2)}).ToJSON()
	msgs <- amqp091.Delivery{Acknowledger: acks, DeliveryTag: 7, Body: body}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := consume(ctx, msgs, func(context.Context, *TransactionUpserted) error {
		return errors.New("mirror down")
	}, redeliveryBackoff{base: time.Hour, max: time.Hour})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if len(acks.requeued) != 1 || acks.requeued[0] != 7 {
		t.Fatalf("in-flight delivery should be requeued, got %v", acks.requeued)
	}
}
