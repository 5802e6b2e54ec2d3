package llm

import (
	"time"

	"github.com/ppiankov/deepguard/internal/model"
)

func testRecord() model.Record {
	ts := time.Date(2025, 4, 2, 9, 0, 0, 0, time.UTC)
	return model.Record{
		FileID:   "f-123",
		FileName: "portrait.jpg",
		Kind:     model.KindImage,
		Verdict: model.Verdict{
			IsDeepfake:       true,
			Confidence:       0.72,
			ManipulationType: model.ManipulationAIGenerated,
			Details:          model.NewImageFindings(model.ImageFindings{AIGeneratedScore: 0.9}),
			Explanation:      "High AI-generation indicators (90.00%) - likely created by generative model",
			Timestamp:        ts,
		},
		Timestamp: ts,
	}
}

func testSignals() []model.Signal {
	return []model.Signal{
		{
			Type:        model.SignalAIGenerated,
			Severity:    model.SeverityCritical,
			Description: "AI generation score: 0.90",
			Data:        map[string]interface{}{"score": 0.9, "weight": 0.3},
		},
		{
			Type:        model.SignalOverall,
			Severity:    model.SeverityCritical,
			Description: "Overall manipulation score 0.72 (threshold 0.60)",
			Data:        map[string]interface{}{"overall": 0.72},
		},
	}
}
