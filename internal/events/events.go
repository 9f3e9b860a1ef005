// Package events announces finished import runs to other services over
// AMQP. When no broker is configured a no-op publisher is used.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/JonMunkholm/schedule-import/internal/core"
)

// TypeImportCompleted is the Type of every event published here.
const TypeImportCompleted = "import.completed"

// ImportCompleted is the message body published when a run finishes.
type ImportCompleted struct {
	Type       string    `json:"type"`
	ImportID   string    `json:"importId"`
	Kind       core.Kind `json:"kind"`
	FileName   string    `json:"fileName"`
	Total      int       `json:"total"`
	Success    int       `json:"success"`
	Errors     int       `json:"errors"`
	Incomplete bool      `json:"incomplete"`
	Failed     bool      `json:"failed"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// NewImportCompleted builds the event for a run summary.
func NewImportCompleted(run core.RunSummary) ImportCompleted {
	return ImportCompleted{
		Type:       TypeImportCompleted,
		ImportID:   run.ImportID,
		Kind:       run.Kind,
		FileName:   run.FileName,
		Total:      run.Total,
		Success:    run.Success,
		Errors:     run.Errors,
		Incomplete: run.Incomplete,
		Failed:     run.Failed,
		Error:      run.Error,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	}
}

// Publisher publishes import events. Both implementations satisfy
// core.CompletionNotifier.
type Publisher interface {
	ImportCompleted(ctx context.Context, run core.RunSummary) error
	Close() error
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends events to a durable queue on the default exchange.
type AMQPPublisher struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    channel
	queue string
}

// DialAMQP connects to url and declares queue as durable.
func DialAMQP(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: connect to broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: open channel: %w", err)
	}

	_, err = ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("events: declare queue %q: %w", queue, err)
	}

	slog.Info("event publisher connected", "queue", queue)
	return &AMQPPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// ImportCompleted publishes a persistent JSON message for run.
func (p *AMQPPublisher) ImportCompleted(ctx context.Context, run core.RunSummary) error {
	body, err := json.Marshal(NewImportCompleted(run))
	if err != nil {
		return fmt.Errorf("events: encode event: %w", err)
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    run.ImportID,
		Type:         TypeImportCompleted,
		Timestamp:    run.FinishedAt,
		Body:         body,
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("events: publish: %w", err)
	}
	return nil
}

// Close closes the channel and the connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.ch.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Noop drops events. It is used when no broker is configured.
type Noop struct{}

// ImportCompleted logs the event at debug level.
func (Noop) ImportCompleted(ctx context.Context, run core.RunSummary) error {
	slog.DebugContext(ctx, "import event not published (no broker)", "import_id", run.ImportID)
	return nil
}

// Close does nothing.
func (Noop) Close() error { return nil }
