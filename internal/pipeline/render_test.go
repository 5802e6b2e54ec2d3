package pipeline

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
	"github.com/ppiankov/deepguard/internal/score"
)

func sampleRecord() model.Record {
	at := time.Date(2025, 5, 4, 3, 2, 1, 0, time.UTC)
	return model.Record{
		FileID:    "abc-123",
		FileName:  "face.png",
		Kind:      model.KindImage,
		Verdict:   score.NewComposer().Compose(manipulatedImage(), at),
		Timestamp: at,
	}
}

func TestRenderJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports", "abc.json")
	rec := sampleRecord()

	if err := RenderJSON(rec, path); err != nil {
		t.Fatalf("RenderJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatalf("report is not JSON: %v", err)
	}
	if resp["file_id"] != "abc-123" || resp["timestamp"] != "2025-05-04T03:02:01.000000Z" {
		t.Errorf("unexpected report: %s", data)
	}
}

func TestRenderSummaryMarkdown(t *testing.T) {
	dir := t.TempDir()
	rec := sampleRecord()
	path := SummaryPath(filepath.Join(dir, "abc.json"))

	if path != filepath.Join(dir, "abc.summary.md") {
		t.Errorf("SummaryPath = %s", path)
	}

	wrote, err := RenderSummaryMarkdown(rec, path)
	if err != nil || wrote {
		t.Fatalf("expected no file without a summary, wrote=%v err=%v", wrote, err)
	}

	rec.Summary = &model.Narrative{Provider: "ollama", Model: "llama3", Text: "Strong AI generation signals."}
	wrote, err = RenderSummaryMarkdown(rec, path)
	if err != nil || !wrote {
		t.Fatalf("expected summary written, wrote=%v err=%v", wrote, err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "Strong AI generation signals.") {
		t.Errorf("summary missing text:\n%s", data)
	}
}

func TestPrintVerdict(t *testing.T) {
	rec := sampleRecord()
	signals := score.NewComposer().Signals(rec.Verdict.Details)

	var quiet, loud bytes.Buffer
	PrintVerdict(&quiet, rec, signals, false)
	PrintVerdict(&loud, rec, signals, true)

	if !strings.Contains(quiet.String(), "MANIPULATED") || !strings.Contains(quiet.String(), "AI generated: true") {
		t.Errorf("unexpected output:\n%s", quiet.String())
	}
	if strings.Contains(quiet.String(), "Signals:") {
		t.Error("signals should only be printed in verbose mode")
	}
	if !strings.Contains(loud.String(), string(model.SignalOverall)) {
		t.Errorf("verbose output missing signals:\n%s", loud.String())
	}
}
