package model

import (
	"encoding/json"
	"fmt"
)

// ImageFindings are the raw measurements of the image checks
type ImageFindings struct {
	PixelAnalysisScore     float64 `json:"pixel_analysis_score"`
	FrequencyAnalysisScore float64 `json:"frequency_analysis_score"`
	AIGeneratedScore       float64 `json:"ai_generated_score"`
	FaceManipulationScore  float64 `json:"face_manipulation_score"` // Blend artifacts around the central subject region
	MetadataSuspicious     bool    `json:"metadata_suspicious"`
	MetadataMinimal        bool    `json:"metadata_minimal"`
	AISoftwareTag          bool    `json:"ai_software_tag"`
	Width                  int     `json:"width"`
	Height                 int     `json:"height"`
}

// VideoFindings are the raw measurements of the video checks
type VideoFindings struct {
	FramesAnalyzed        int     `json:"frames_analyzed"`
	AnomalyScore          float64 `json:"anomaly_score"`
	TemporalInconsistency float64 `json:"temporal_inconsistency"`
	CompressionArtifacts  float64 `json:"compression_artifacts"`
	FaceInconsistencies   int     `json:"face_inconsistencies"` // Sampled frames flagged as inconsistent
	DurationSeconds       float64 `json:"duration_seconds"`
	FPS                   float64 `json:"fps"`
	Width                 int     `json:"width"`
	Height                int     `json:"height"`
}

// AudioFindings are the raw measurements of the audio checks
type AudioFindings struct {
	SpectralAnomalyScore  float64 `json:"spectral_anomaly_score"`
	TemporalAnomalyScore  float64 `json:"temporal_anomaly_score"`
	VoiceConsistencyScore float64 `json:"voice_consistency_score"`
	ProsodyScore          float64 `json:"prosody_score"`
	DurationSeconds       float64 `json:"duration_seconds"`
	SampleRate            int     `json:"sample_rate"`
	Channels              int     `json:"channels"`
}

// Findings is a tagged union over the per-kind finding sets.
// Exactly one of Image, Video or Audio is set, matching Kind.
// It serializes as the flat object of the active member.
type Findings struct {
	Kind  MediaKind
	Image *ImageFindings
	Video *VideoFindings
	Audio *AudioFindings
}

// NewImageFindings wraps f as Findings
func NewImageFindings(f ImageFindings) Findings {
	return Findings{Kind: KindImage, Image: &f}
}

// NewVideoFindings wraps f as Findings
func NewVideoFindings(f VideoFindings) Findings {
	return Findings{Kind: KindVideo, Video: &f}
}

// NewAudioFindings wraps f as Findings
func NewAudioFindings(f AudioFindings) Findings {
	return Findings{Kind: KindAudio, Audio: &f}
}

// Validate checks that the active member matches Kind
func (f Findings) Validate() error {
	switch f.Kind {
	case KindImage:
		if f.Image == nil || f.Video != nil || f.Audio != nil {
			return fmt.Errorf("image findings: wrong member set")
		}
	case KindVideo:
		if f.Video == nil || f.Image != nil || f.Audio != nil {
			return fmt.Errorf("video findings: wrong member set")
		}
	case KindAudio:
		if f.Audio == nil || f.Image != nil || f.Video != nil {
			return fmt.Errorf("audio findings: wrong member set")
		}
	default:
		return fmt.Errorf("findings: unknown kind %q", f.Kind)
	}
	return nil
}

// MarshalJSON emits the active member only
func (f Findings) MarshalJSON() ([]byte, error) {
	switch f.Kind {
	case KindImage:
		return json.Marshal(f.Image)
	case KindVideo:
		return json.Marshal(f.Video)
	case KindAudio:
		return json.Marshal(f.Audio)
	default:
		return []byte("{}"), nil
	}
}

// UnmarshalJSON decodes into the member selected by a Kind set beforehand.
// Decoding a Verdict whose Details.Kind was preset relies on this.
func (f *Findings) UnmarshalJSON(data []byte) error {
	switch f.Kind {
	case KindImage:
		f.Image = &ImageFindings{}
		return json.Unmarshal(data, f.Image)
	case KindVideo:
		f.Video = &VideoFindings{}
		return json.Unmarshal(data, f.Video)
	case KindAudio:
		f.Audio = &AudioFindings{}
		return json.Unmarshal(data, f.Audio)
	default:
		return fmt.Errorf("findings: kind must be set before decoding")
	}
}

// DecodeFindings decodes the flat JSON object produced by MarshalJSON
func DecodeFindings(kind MediaKind, data []byte) (Findings, error) {
	f := Findings{Kind: kind}
	if err := json.Unmarshal(data, &f); err != nil {
		return Findings{}, err
	}
	return f, nil
}
