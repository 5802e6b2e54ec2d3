package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/deepguard/internal/model"
)

// EventVerdictRecorded is emitted once a verdict has been stored
const EventVerdictRecorded = "verdict.recorded"

// Event is the envelope written to the event stream
type Event struct {
	EventID          string                 `json:"event_id"`
	EventType        string                 `json:"event_type"`
	OccurredAt       time.Time              `json:"occurred_at"`
	FileID           string                 `json:"file_id"`
	Kind             model.MediaKind        `json:"kind"`
	IsDeepfake       bool                   `json:"is_deepfake"`
	ManipulationType model.ManipulationType `json:"manipulation_type"`
	Confidence       float64                `json:"confidence"`
}

// NewVerdictRecorded builds the event for a stored record
func NewVerdictRecorded(rec model.Record) Event {
	return Event{
		EventID:          uuid.NewString(),
		EventType:        EventVerdictRecorded,
		OccurredAt:       time.Now().UTC(),
		FileID:           rec.FileID,
		Kind:             rec.Kind,
		IsDeepfake:       rec.Verdict.IsDeepfake,
		ManipulationType: rec.Verdict.ManipulationType,
		Confidence:       rec.Verdict.Confidence,
	}
}

// Publisher delivers events. Publishing is best effort; callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// New returns a Kafka publisher when brokers are configured, otherwise a logging publisher
func New(cfg model.EventsConfig, logger *slog.Logger) (Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return NewLoggingPublisher(logger), nil
	}
	return NewKafkaPublisher(cfg.Brokers, cfg.Topic)
}

// LoggingPublisher records events in the debug log only
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	p.logger.DebugContext(ctx, "event published",
		"event_type", e.EventType,
		"file_id", e.FileID,
		"payload_bytes", len(payload),
	)
	return nil
}

func (p *LoggingPublisher) Close() error {
	return nil
}
