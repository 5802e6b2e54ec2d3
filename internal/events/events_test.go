package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ppiankov/deepguard/internal/logging"
	"github.com/ppiankov/deepguard/internal/model"
	"github.com/segmentio/kafka-go"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleRecord() model.Record {
	return model.Record{
		FileID: "file-1",
		Kind:   model.KindAudio,
		Verdict: model.Verdict{
			IsDeepfake:       true,
			Confidence:       0.61,
			ManipulationType: model.ManipulationVoiceClone,
		},
		Timestamp: time.Now().UTC(),
	}
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w, topic: "deepguard.verdicts"}

	e := NewVerdictRecorded(sampleRecord())
	if err := p.Publish(context.Background(), e); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if msg.Topic != "deepguard.verdicts" || string(msg.Key) != "file-1" {
		t.Errorf("unexpected topic/key: %s/%s", msg.Topic, msg.Key)
	}

	var decoded Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if decoded.EventType != EventVerdictRecorded || decoded.ManipulationType != model.ManipulationVoiceClone || decoded.EventID == "" {
		t.Errorf("unexpected payload: %+v", decoded)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Error("expected writer to be closed")
	}
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}, topic: "t"}
	if err := p.Publish(context.Background(), NewVerdictRecorded(sampleRecord())); err == nil {
		t.Fatal("expected error")
	}
}

func TestNew(t *testing.T) {
	p, err := New(model.EventsConfig{}, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*LoggingPublisher); !ok {
		t.Errorf("expected logging publisher without brokers, got %T", p)
	}
	if err := p.Publish(context.Background(), NewVerdictRecorded(sampleRecord())); err != nil {
		t.Errorf("logging publisher failed: %v", err)
	}

	p, err = New(model.EventsConfig{Brokers: []string{"localhost:9092"}, Topic: "deepguard.verdicts"}, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p.(*KafkaPublisher); !ok {
		t.Errorf("expected kafka publisher, got %T", p)
	}
	_ = p.Close()

	if _, err := NewKafkaPublisher([]string{"localhost:9092"}, ""); err == nil {
		t.Error("expected error without topic")
	}
}
