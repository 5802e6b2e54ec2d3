package score

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
)

var composedAt = time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

func TestCompose_ImageRules(t *testing.T) {
	tests := []struct {
		name     string
		findings model.ImageFindings
		want     model.ManipulationType
		wantAI   bool
	}{
		{
			name:     "all low is authentic",
			findings: model.ImageFindings{PixelAnalysisScore: 0.2, FrequencyAnalysisScore: 0.2, AIGeneratedScore: 0.2, FaceManipulationScore: 0.2},
			want:     model.ManipulationAuthentic,
		},
		{
			name:     "strong ai score",
			findings: model.ImageFindings{PixelAnalysisScore: 0.6, FrequencyAnalysisScore: 0.6, AIGeneratedScore: 0.9, FaceManipulationScore: 0.5},
			want:     model.ManipulationAIGenerated,
			wantAI:   true,
		},
		{
			name:     "face rule after ai rule",
			findings: model.ImageFindings{PixelAnalysisScore: 0.6, FrequencyAnalysisScore: 0.6, AIGeneratedScore: 0.68, FaceManipulationScore: 0.9},
			want:     model.ManipulationFaceSwap,
			wantAI:   true,
		},
		{
			name:     "pixel rule",
			findings: model.ImageFindings{PixelAnalysisScore: 0.9, FrequencyAnalysisScore: 0.9, AIGeneratedScore: 0.5, FaceManipulationScore: 0.5},
			want:     model.ManipulationEdited,
		},
		{
			name:     "no rule falls back to strongest indicator",
			findings: model.ImageFindings{PixelAnalysisScore: 0.6, FrequencyAnalysisScore: 0.6, AIGeneratedScore: 0.7, FaceManipulationScore: 0.6},
			want:     model.ManipulationAIGenerated,
			wantAI:   true,
		},
	}

	c := NewComposer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Compose(model.NewImageFindings(tt.findings), composedAt)
			if v.ManipulationType != tt.want {
				t.Errorf("manipulation_type = %s, want %s", v.ManipulationType, tt.want)
			}
			if v.IsAIGenerated == nil || *v.IsAIGenerated != tt.wantAI {
				t.Errorf("is_ai_generated = %v, want %v", v.IsAIGenerated, tt.wantAI)
			}
			if v.IsVoiceCloned != nil {
				t.Error("is_voice_cloned must be omitted for images")
			}
		})
	}
}

func TestCompose_VideoRules(t *testing.T) {
	tests := []struct {
		name     string
		findings model.VideoFindings
		want     model.ManipulationType
	}{
		{"authentic", model.VideoFindings{AnomalyScore: 0.3, TemporalInconsistency: 0.2, CompressionArtifacts: 0.3}, model.ManipulationAuthentic},
		{"face swap", model.VideoFindings{AnomalyScore: 0.8, TemporalInconsistency: 0.45, CompressionArtifacts: 0.3}, model.ManipulationFaceSwap},
		{"lip sync", model.VideoFindings{AnomalyScore: 0.5, TemporalInconsistency: 0.8, CompressionArtifacts: 0.5}, model.ManipulationLipSync},
		{"reenactment", model.VideoFindings{AnomalyScore: 0.75, TemporalInconsistency: 0.3, CompressionArtifacts: 0.8}, model.ManipulationFaceReenactment},
		{"compression", model.VideoFindings{AnomalyScore: 0.55, TemporalInconsistency: 0.45, CompressionArtifacts: 0.9}, model.ManipulationAIGenerated},
	}

	c := NewComposer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Compose(model.NewVideoFindings(tt.findings), composedAt)
			if v.ManipulationType != tt.want {
				t.Errorf("manipulation_type = %s, want %s", v.ManipulationType, tt.want)
			}
			if v.IsAIGenerated != nil || v.IsVoiceCloned != nil {
				t.Error("kind-specific flags must be omitted for video")
			}
		})
	}
}

func TestCompose_AudioRules(t *testing.T) {
	tests := []struct {
		name       string
		findings   model.AudioFindings
		want       model.ManipulationType
		wantCloned bool
	}{
		{"authentic", model.AudioFindings{SpectralAnomalyScore: 0.3, TemporalAnomalyScore: 0.3, VoiceConsistencyScore: 0.3, ProsodyScore: 0.3}, model.ManipulationAuthentic, false},
		{"voice clone", model.AudioFindings{SpectralAnomalyScore: 0.5, TemporalAnomalyScore: 0.5, VoiceConsistencyScore: 0.9, ProsodyScore: 0.6}, model.ManipulationVoiceClone, true},
		{"synthesized", model.AudioFindings{SpectralAnomalyScore: 0.8, TemporalAnomalyScore: 0.6, VoiceConsistencyScore: 0.5, ProsodyScore: 0.4}, model.ManipulationSynthesizedSpeech, false},
		{"edited", model.AudioFindings{SpectralAnomalyScore: 0.5, TemporalAnomalyScore: 0.9, VoiceConsistencyScore: 0.4, ProsodyScore: 0.6}, model.ManipulationEdited, false},
		{"fallback to temporal", model.AudioFindings{SpectralAnomalyScore: 0.4, TemporalAnomalyScore: 1, VoiceConsistencyScore: 0.4, ProsodyScore: 0.9}, model.ManipulationEdited, false},
	}

	c := NewComposer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := c.Compose(model.NewAudioFindings(tt.findings), composedAt)
			if v.ManipulationType != tt.want {
				t.Errorf("manipulation_type = %s, want %s", v.ManipulationType, tt.want)
			}
			if v.IsVoiceCloned == nil || *v.IsVoiceCloned != tt.wantCloned {
				t.Errorf("is_voice_cloned = %v, want %v", v.IsVoiceCloned, tt.wantCloned)
			}
		})
	}
}

func TestCompose_Invariants(t *testing.T) {
	c := NewComposer()
	steps := []float64{0, 0.1, 0.35, 0.5, 0.65, 0.8, 1}

	for _, a := range steps {
		for _, b := range steps {
			for _, d := range steps {
				findings := []model.Findings{
					model.NewImageFindings(model.ImageFindings{PixelAnalysisScore: a, FrequencyAnalysisScore: b, AIGeneratedScore: d, FaceManipulationScore: a}),
					model.NewVideoFindings(model.VideoFindings{AnomalyScore: a, TemporalInconsistency: b, CompressionArtifacts: d}),
					model.NewAudioFindings(model.AudioFindings{SpectralAnomalyScore: a, TemporalAnomalyScore: b, VoiceConsistencyScore: d, ProsodyScore: b}),
				}
				for _, f := range findings {
					v := c.Compose(f, composedAt)
					if v.Confidence < 0 || v.Confidence > 1 {
						t.Fatalf("%s confidence %v out of range", f.Kind, v.Confidence)
					}
					if !v.ManipulationType.Valid() {
						t.Fatalf("%s label %q not in enumeration", f.Kind, v.ManipulationType)
					}
					if (v.ManipulationType == model.ManipulationAuthentic) == v.IsDeepfake {
						t.Fatalf("%s authentic=%v but is_deepfake=%v", f.Kind, v.ManipulationType, v.IsDeepfake)
					}
					if v.Explanation == "" {
						t.Fatalf("%s explanation empty", f.Kind)
					}
				}
			}
		}
	}
}

func TestCompose_ConfidenceMonotonic(t *testing.T) {
	c := NewComposer()
	prev := -1.0
	for s := 0.0; s <= 1.0001; s += 0.05 {
		v := c.Compose(model.NewVideoFindings(model.VideoFindings{AnomalyScore: s, TemporalInconsistency: 0.4, CompressionArtifacts: 0.4}), composedAt)
		if v.Confidence < prev {
			t.Fatalf("confidence decreased at anomaly %.2f: %v < %v", s, v.Confidence, prev)
		}
		prev = v.Confidence
	}

	top := c.Compose(model.NewImageFindings(model.ImageFindings{PixelAnalysisScore: 1, FrequencyAnalysisScore: 1, AIGeneratedScore: 1, FaceManipulationScore: 1}), composedAt)
	if top.Confidence != maxConfidence {
		t.Errorf("confidence = %v, want cap %v", top.Confidence, maxConfidence)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	c := NewComposer()
	f := model.NewAudioFindings(model.AudioFindings{SpectralAnomalyScore: 0.7, TemporalAnomalyScore: 0.6, VoiceConsistencyScore: 0.8, ProsodyScore: 0.2, SampleRate: 16000, Channels: 1})

	first, err := json.Marshal(c.Compose(f, composedAt))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(c.Compose(f, composedAt))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("verdict JSON differs:\n%s\n%s", first, second)
	}
}

func TestCompose_Explanation(t *testing.T) {
	c := NewComposer()

	authentic := c.Compose(model.NewImageFindings(model.ImageFindings{}), composedAt)
	if !strings.HasPrefix(authentic.Explanation, "Image appears authentic") {
		t.Errorf("unexpected authentic explanation: %q", authentic.Explanation)
	}

	v := c.Compose(model.NewImageFindings(model.ImageFindings{PixelAnalysisScore: 0.6, FrequencyAnalysisScore: 0.5, AIGeneratedScore: 0.9, FaceManipulationScore: 0.7}), composedAt)
	want := "High AI-generation indicators (90.00%) - likely created by generative model" +
		" | Face manipulation artifacts (70.00%) detected at facial boundaries" +
		" | Pixel-level anomalies (60.00%) indicate editing or manipulation"
	if v.Explanation != want {
		t.Errorf("explanation = %q\nwant %q", v.Explanation, want)
	}

	// Prosody carries weight but no explanation phrase
	fallback := c.Compose(model.NewAudioFindings(model.AudioFindings{SpectralAnomalyScore: 0.55, TemporalAnomalyScore: 0.55, VoiceConsistencyScore: 0.65, ProsodyScore: 1}), composedAt)
	if !fallback.IsDeepfake {
		t.Fatal("expected deepfake verdict")
	}
	if fallback.Explanation != "Voice manipulation or synthesis detected in audio analysis" {
		t.Errorf("explanation = %q, want fallback sentence", fallback.Explanation)
	}
}

func TestCompose_TimestampUTC(t *testing.T) {
	local := time.Date(2025, 6, 1, 12, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	v := NewComposer().Compose(model.NewImageFindings(model.ImageFindings{}), local)
	if v.Timestamp.Location() != time.UTC || !v.Timestamp.Equal(local) {
		t.Errorf("timestamp = %v, want UTC instant of %v", v.Timestamp, local)
	}
}

func TestSignals(t *testing.T) {
	signals := NewComposer().Signals(model.NewImageFindings(model.ImageFindings{AIGeneratedScore: 0.9, MetadataMinimal: true, MetadataSuspicious: true}))

	if len(signals) != 6 {
		t.Fatalf("expected 4 indicators + metadata + overall, got %d", len(signals))
	}
	if signals[0].Type != model.SignalAIGenerated || signals[0].Severity != model.SeverityCritical {
		t.Errorf("unexpected first signal: %+v", signals[0])
	}
	last := signals[len(signals)-1]
	if last.Type != model.SignalOverall {
		t.Errorf("last signal = %s, want overall", last.Type)
	}
	if formula, _ := last.Data["formula"].(string); !strings.Contains(formula, "ai_generated*0.30") {
		t.Errorf("formula missing weights: %q", formula)
	}
}
