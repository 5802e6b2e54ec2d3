package model

import (
	"encoding/json"
	"time"
)

// ManipulationType is the closed set of verdict labels
type ManipulationType string

const (
	ManipulationAuthentic         ManipulationType = "authentic"
	ManipulationFaceSwap          ManipulationType = "face_swap"
	ManipulationFaceReenactment   ManipulationType = "face_reenactment"
	ManipulationLipSync           ManipulationType = "lip_sync"
	ManipulationAIGenerated       ManipulationType = "ai_generated"
	ManipulationEdited            ManipulationType = "edited"
	ManipulationVoiceClone        ManipulationType = "voice_clone"
	ManipulationSynthesizedSpeech ManipulationType = "synthesized_speech"
)

// ManipulationTypes lists every valid label
var ManipulationTypes = []ManipulationType{
	ManipulationAuthentic,
	ManipulationFaceSwap,
	ManipulationFaceReenactment,
	ManipulationLipSync,
	ManipulationAIGenerated,
	ManipulationEdited,
	ManipulationVoiceClone,
	ManipulationSynthesizedSpeech,
}

// Valid reports whether t is a member of the enumeration
func (t ManipulationType) Valid() bool {
	for _, m := range ManipulationTypes {
		if m == t {
			return true
		}
	}
	return false
}

// Verdict is the public authenticity judgment for one upload
type Verdict struct {
	IsDeepfake       bool             `json:"is_deepfake"`
	IsAIGenerated    *bool            `json:"is_ai_generated,omitempty"` // Image only
	IsVoiceCloned    *bool            `json:"is_voice_cloned,omitempty"` // Audio only
	Confidence       float64          `json:"confidence"`                // Likelihood of manipulation, 0..1
	ManipulationType ManipulationType `json:"manipulation_type"`
	Details          Findings         `json:"details"`
	Explanation      string           `json:"explanation"`
	Timestamp        time.Time        `json:"-"`
}

// Signal is one explained input to the composed verdict
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Inputs, weight and formula
}

// SignalType names a scoring input
type SignalType string

const (
	SignalPixel            SignalType = "pixel_analysis"
	SignalFrequency        SignalType = "frequency_analysis"
	SignalAIGenerated      SignalType = "ai_generated"
	SignalFaceManipulation SignalType = "face_manipulation"
	SignalMetadata         SignalType = "metadata"
	SignalFrameAnomaly     SignalType = "frame_anomaly"
	SignalTemporal         SignalType = "temporal_inconsistency"
	SignalCompression      SignalType = "compression_artifacts"
	SignalSpectral         SignalType = "spectral_anomaly"
	SignalAudioTemporal    SignalType = "temporal_anomaly"
	SignalVoiceConsistency SignalType = "voice_consistency"
	SignalProsody          SignalType = "prosody"
	SignalOverall          SignalType = "overall"
)

// SignalSeverity indicates how strongly a signal points at manipulation
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// Record is a stored verdict keyed by the upload identifier
type Record struct {
	FileID    string     `json:"file_id"`
	FileName  string     `json:"file_name"`
	Kind      MediaKind  `json:"kind"`
	Verdict   Verdict    `json:"analysis"`
	Summary   *Narrative `json:"summary,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// UnmarshalJSON reads Kind first so Verdict.Details decodes into the right member
func (r *Record) UnmarshalJSON(data []byte) error {
	var head struct {
		Kind MediaKind `json:"kind"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}

	type plain Record
	out := plain{Kind: head.Kind}
	out.Verdict.Details.Kind = head.Kind
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	out.Verdict.Timestamp = out.Timestamp
	*r = Record(out)
	return nil
}

// Narrative is an optional LLM-written summary.
// It is produced after the verdict is composed and never changes it.
type Narrative struct {
	Provider string   `json:"provider"`
	Model    string   `json:"model,omitempty"`
	Text     string   `json:"text"`
	Warnings []string `json:"warnings,omitempty"`
}

// AnalysisResponse is the wire shape of POST /api/analyze/{kind} and GET /api/results/{id}
type AnalysisResponse struct {
	FileID    string     `json:"file_id"`
	FileName  string     `json:"file_name"`
	Analysis  Verdict    `json:"analysis"`
	Summary   *Narrative `json:"summary,omitempty"`
	Timestamp string     `json:"timestamp"`
}

// TimestampLayout is the ISO-8601 layout used on the wire
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Response converts a stored record to its wire shape
func (r Record) Response() AnalysisResponse {
	return AnalysisResponse{
		FileID:    r.FileID,
		FileName:  r.FileName,
		Analysis:  r.Verdict,
		Summary:   r.Summary,
		Timestamp: r.Timestamp.UTC().Format(TimestampLayout),
	}
}
