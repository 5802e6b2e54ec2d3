package score

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
)

// maxConfidence caps the reported likelihood; heuristics never justify certainty
const maxConfidence = 0.98

// indicator is one weighted check score of a findings set
type indicator struct {
	signal    model.SignalType
	name      string
	score     float64
	weight    float64
	explainAt float64 // mentioned in the explanation above this level
	label     model.ManipulationType
	phrase    string // %s receives the formatted percentage
}

// profile is the fixed scoring table of one media kind
type profile struct {
	threshold  float64
	indicators []indicator // explanation order
	rule       func() model.ManipulationType
	authentic  string
	fallback   string
}

// Composer maps findings to verdicts. It holds no state and is safe for concurrent use.
type Composer struct{}

// NewComposer creates a new composer
func NewComposer() *Composer {
	return &Composer{}
}

// Compose derives the verdict for f. The result depends only on its arguments.
func (c *Composer) Compose(f model.Findings, at time.Time) model.Verdict {
	p := profileFor(f)
	overall := weightedSum(p.indicators)
	deepfake := overall > p.threshold

	v := model.Verdict{
		IsDeepfake:       deepfake,
		Confidence:       confidence(overall),
		ManipulationType: model.ManipulationAuthentic,
		Details:          f,
		Explanation:      p.authentic,
		Timestamp:        at.UTC(),
	}

	if deepfake {
		v.ManipulationType = p.rule()
		if v.ManipulationType == model.ManipulationAuthentic {
			v.ManipulationType = strongest(p.indicators).label
		}
		v.Explanation = explain(p)
	}

	switch f.Kind {
	case model.KindImage:
		ai := f.Image.AIGeneratedScore > 0.65
		v.IsAIGenerated = &ai
	case model.KindAudio:
		cloned := f.Audio.VoiceConsistencyScore > 0.70
		v.IsVoiceCloned = &cloned
	}

	return v
}

// Signals explains every input of the overall score
func (c *Composer) Signals(f model.Findings) []model.Signal {
	p := profileFor(f)
	signals := make([]model.Signal, 0, len(p.indicators)+2)

	for _, ind := range p.indicators {
		severity := model.SeverityInfo
		if ind.score > 0.8 {
			severity = model.SeverityCritical
		} else if ind.score > ind.explainAt {
			severity = model.SeverityWarning
		}
		signals = append(signals, model.Signal{
			Type:        ind.signal,
			Severity:    severity,
			Description: fmt.Sprintf("%s score: %.2f", ind.name, ind.score),
			Data: map[string]interface{}{
				"score":        ind.score,
				"weight":       ind.weight,
				"contribution": ind.score * ind.weight,
			},
		})
	}

	if f.Kind == model.KindImage {
		signals = append(signals, metadataSignal(f.Image))
	}

	overall := weightedSum(p.indicators)
	formula := make([]string, len(p.indicators))
	for i, ind := range p.indicators {
		formula[i] = fmt.Sprintf("%s*%.2f", ind.signal, ind.weight)
	}
	severity := model.SeverityInfo
	if overall > p.threshold {
		severity = model.SeverityCritical
	}
	signals = append(signals, model.Signal{
		Type:        model.SignalOverall,
		Severity:    severity,
		Description: fmt.Sprintf("Overall manipulation score %.2f (threshold %.2f)", overall, p.threshold),
		Data: map[string]interface{}{
			"overall":   overall,
			"threshold": p.threshold,
			"formula":   strings.Join(formula, " + "),
		},
	})

	return signals
}

func metadataSignal(img *model.ImageFindings) model.Signal {
	severity := model.SeverityInfo
	description := "EXIF metadata present"
	switch {
	case img.AISoftwareTag:
		severity = model.SeverityWarning
		description = "EXIF names a generative tool"
	case img.MetadataMinimal:
		description = "EXIF metadata missing or minimal"
	}
	return model.Signal{
		Type:        model.SignalMetadata,
		Severity:    severity,
		Description: description,
		Data: map[string]interface{}{
			"suspicious":      img.MetadataSuspicious,
			"minimal":         img.MetadataMinimal,
			"ai_software_tag": img.AISoftwareTag,
			"weight":          0,
		},
	}
}

func profileFor(f model.Findings) profile {
	switch f.Kind {
	case model.KindImage:
		return imageProfile(f.Image)
	case model.KindVideo:
		return videoProfile(f.Video)
	case model.KindAudio:
		return audioProfile(f.Audio)
	}
	// Unreachable for validated findings; scores nothing
	return profile{
		threshold: 1,
		rule:      func() model.ManipulationType { return model.ManipulationAuthentic },
	}
}

func imageProfile(img *model.ImageFindings) profile {
	return profile{
		threshold: 0.60,
		indicators: []indicator{
			{model.SignalAIGenerated, "AI generation", img.AIGeneratedScore, 0.30, 0.65, model.ManipulationAIGenerated,
				"High AI-generation indicators (%s) - likely created by generative model"},
			{model.SignalFaceManipulation, "Face manipulation", img.FaceManipulationScore, 0.20, 0.60, model.ManipulationFaceSwap,
				"Face manipulation artifacts (%s) detected at facial boundaries"},
			{model.SignalPixel, "Pixel analysis", img.PixelAnalysisScore, 0.25, 0.55, model.ManipulationEdited,
				"Pixel-level anomalies (%s) indicate editing or manipulation"},
			{model.SignalFrequency, "Frequency analysis", img.FrequencyAnalysisScore, 0.25, 0.55, model.ManipulationEdited,
				"Frequency domain signatures (%s) consistent with synthetic content"},
		},
		rule: func() model.ManipulationType {
			switch {
			case img.AIGeneratedScore > 0.7:
				return model.ManipulationAIGenerated
			case img.FaceManipulationScore > 0.65:
				return model.ManipulationFaceSwap
			case img.PixelAnalysisScore > 0.65:
				return model.ManipulationEdited
			}
			return model.ManipulationAuthentic
		},
		authentic: "Image appears authentic with no significant manipulation or AI generation detected.",
		fallback:  "Manipulation or AI generation detected",
	}
}

func videoProfile(v *model.VideoFindings) profile {
	return profile{
		threshold: 0.55,
		indicators: []indicator{
			{model.SignalFrameAnomaly, "Facial anomaly", v.AnomalyScore, 0.40, 0.55, model.ManipulationFaceReenactment,
				"Facial anomaly score (%s) indicates potential manipulation or unusual visual patterns"},
			{model.SignalTemporal, "Temporal inconsistency", v.TemporalInconsistency, 0.35, 0.30, model.ManipulationLipSync,
				"Temporal inconsistencies (%s) detected across video frames suggesting frame-by-frame editing"},
			{model.SignalCompression, "Compression artifacts", v.CompressionArtifacts, 0.25, 0.50, model.ManipulationAIGenerated,
				"Compression artifacts (%s) consistent with AI-generated or heavily edited content"},
		},
		rule: func() model.ManipulationType {
			switch {
			case v.AnomalyScore > 0.7 && v.TemporalInconsistency > 0.4:
				return model.ManipulationFaceSwap
			case v.TemporalInconsistency > 0.5:
				return model.ManipulationLipSync
			case v.AnomalyScore > 0.6:
				return model.ManipulationFaceReenactment
			case v.CompressionArtifacts > 0.6:
				return model.ManipulationAIGenerated
			}
			return model.ManipulationAuthentic
		},
		authentic: "No significant signs of deepfake manipulation detected. The video appears authentic based on facial consistency, temporal analysis, and compression patterns.",
		fallback:  "Manipulation indicators detected in video analysis",
	}
}

func audioProfile(a *model.AudioFindings) profile {
	return profile{
		threshold: 0.55,
		indicators: []indicator{
			{model.SignalVoiceConsistency, "Voice consistency", a.VoiceConsistencyScore, 0.20, 0.65, model.ManipulationVoiceClone,
				"Unusually consistent voice patterns (%s) suggest possible voice cloning or TTS"},
			{model.SignalSpectral, "Spectral anomaly", a.SpectralAnomalyScore, 0.30, 0.55, model.ManipulationSynthesizedSpeech,
				"Spectral anomalies (%s) indicate potential synthetic speech generation"},
			{model.SignalAudioTemporal, "Temporal anomaly", a.TemporalAnomalyScore, 0.30, 0.55, model.ManipulationEdited,
				"Unnatural temporal transitions (%s) detected in audio signal"},
			{model.SignalProsody, "Prosody", a.ProsodyScore, 0.20, math.Inf(1), model.ManipulationEdited, ""},
		},
		rule: func() model.ManipulationType {
			switch {
			case a.VoiceConsistencyScore > 0.75:
				return model.ManipulationVoiceClone
			case a.SpectralAnomalyScore > 0.65:
				return model.ManipulationSynthesizedSpeech
			case a.SpectralAnomalyScore > 0.45 || a.VoiceConsistencyScore > 0.45:
				return model.ManipulationEdited
			}
			return model.ManipulationAuthentic
		},
		authentic: "Audio appears authentic with natural voice characteristics and normal speech patterns.",
		fallback:  "Voice manipulation or synthesis detected in audio analysis",
	}
}

func weightedSum(indicators []indicator) float64 {
	var sum float64
	for _, ind := range indicators {
		sum += ind.score * ind.weight
	}
	return sum
}

// strongest returns the indicator with the largest weighted contribution; ties keep the earlier one
func strongest(indicators []indicator) indicator {
	best := indicators[0]
	for _, ind := range indicators[1:] {
		if ind.score*ind.weight > best.score*best.weight {
			best = ind
		}
	}
	return best
}

// confidence is monotonic non-decreasing in the overall score
func confidence(overall float64) float64 {
	c := math.Max(0, math.Min(overall, maxConfidence))
	return math.Round(c*1e4) / 1e4
}

func explain(p profile) string {
	var parts []string
	for _, ind := range p.indicators {
		if ind.phrase != "" && ind.score > ind.explainAt {
			parts = append(parts, fmt.Sprintf(ind.phrase, fmt.Sprintf("%.2f%%", ind.score*100)))
		}
	}
	if len(parts) == 0 {
		return p.fallback
	}
	return strings.Join(parts, " | ")
}
