package analyze

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/ppiankov/deepguard/internal/model"
	"github.com/ppiankov/deepguard/internal/worker"
	"gonum.org/v1/gonum/stat"
)

// Audio check parameters
const (
	targetSampleRate   = 16000
	maxAudioSeconds    = 60
	wavFormatPCM       = 1
	wavFormatExtension = 0xFFFE
	segmentSeconds     = 2
	pitchMinLag        = 20
	maxPitchFrames     = 500
	minPitchCount      = 10
	pitchFloorHz       = 50
	pitchCeilHz        = 500
)

// ErrNoAudio is returned when a WAV file carries no samples
var ErrNoAudio = errors.New("no audio samples")

// decodedAudio is mono PCM in [-1,1] at sampleRate, at most maxAudioSeconds long
type decodedAudio struct {
	samples        []float64
	sampleRate     int
	sourceRate     int
	channels       int
	sourceDuration float64
}

func decodeAudio(path string) (*decodedAudio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("decode audio: not a valid WAV file")
	}
	if dec.WavAudioFormat != wavFormatPCM && dec.WavAudioFormat != wavFormatExtension {
		return nil, fmt.Errorf("decode audio: unsupported WAV encoding %d", dec.WavAudioFormat)
	}

	channels := int(dec.NumChans)
	rate := int(dec.SampleRate)
	bits := int(dec.BitDepth)
	if channels <= 0 || rate <= 0 || bits <= 0 {
		return nil, fmt.Errorf("decode audio: invalid format %d ch, %d Hz, %d bit", channels, rate, bits)
	}

	// Integer-step decimation towards 16 kHz
	step := max(1, rate/targetSampleRate)
	effectiveRate := rate / step
	limit := effectiveRate * maxAudioSeconds
	fullScale := math.Pow(2, float64(bits-1))

	d := &decodedAudio{sampleRate: effectiveRate, sourceRate: rate, channels: channels}
	buf := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:   make([]int, 4096*channels),
	}

	frame := 0
	var total int
	for len(d.samples) < limit {
		n, err := dec.PCMBuffer(buf)
		if err != nil {
			return nil, fmt.Errorf("decode audio: %w", err)
		}
		if n == 0 {
			break
		}
		for i := 0; i+channels <= n; i += channels {
			if frame%step == 0 && len(d.samples) < limit {
				var sum float64
				for c := 0; c < channels; c++ {
					v := float64(buf.Data[i+c])
					if bits == 8 {
						v -= 128
					}
					sum += v
				}
				d.samples = append(d.samples, sum/float64(channels)/fullScale)
			}
			frame++
		}
		total += n
	}

	if len(d.samples) == 0 {
		return nil, ErrNoAudio
	}

	if pcmLen := dec.PCMLen(); pcmLen > 0 {
		bytesPerFrame := int64(channels * ((bits-1)/8 + 1))
		d.sourceDuration = float64(pcmLen/bytesPerFrame) / float64(rate)
	} else {
		d.sourceDuration = float64(total/channels) / float64(rate)
	}

	return d, nil
}

func (a *HeuristicAnalyzer) analyzeAudio(ctx context.Context, path string) (model.Findings, error) {
	d, err := decodeAudio(path)
	if err != nil {
		return model.Findings{}, err
	}

	out := model.AudioFindings{
		DurationSeconds: d.sourceDuration,
		SampleRate:      d.sourceRate,
		Channels:        d.channels,
	}
	tasks := []worker.Task{
		{Name: "spectral", Run: func(context.Context) error { out.SpectralAnomalyScore = spectralScore(d); return nil }},
		{Name: "temporal", Run: func(context.Context) error { out.TemporalAnomalyScore = energyTransitionScore(d); return nil }},
		{Name: "consistency", Run: func(context.Context) error { out.VoiceConsistencyScore = voiceConsistencyScore(d); return nil }},
		{Name: "prosody", Run: func(context.Context) error { out.ProsodyScore = prosodyScore(d); return nil }},
	}
	if err := worker.RunTasks(ctx, a.workers, tasks); err != nil {
		return model.Findings{}, err
	}

	return model.NewAudioFindings(out), nil
}

// spectralScore compares spectral centroid and 85% rolloff to typical speech values
func spectralScore(d *decodedAudio) float64 {
	mag, binHz := spectrumMagnitude(d.samples, d.sampleRate)

	var weighted, total float64
	for i, m := range mag {
		weighted += m * float64(i) * binHz
		total += m
	}
	centroid := weighted / (total + 1e-6)

	rolloff := 0.0
	var cum float64
	for i, m := range mag {
		cum += m
		if cum >= total*0.85 {
			rolloff = float64(i) * binHz
			break
		}
	}

	centroidDev := math.Abs(centroid-1500) / 1500
	rolloffDev := math.Abs(rolloff-4000) / 4000
	return clamp01(centroidDev*0.5 + rolloffDev*0.5)
}

// energyTransitionScore rates abrupt changes between 10ms energy frames
func energyTransitionScore(d *decodedAudio) float64 {
	frameLen := d.sampleRate / 100
	if frameLen == 0 {
		return fallbackScore
	}
	var energy []float64
	for i := 0; i+frameLen < len(d.samples); i += frameLen {
		var e float64
		for _, v := range d.samples[i : i+frameLen] {
			e += v * v
		}
		energy = append(energy, e)
	}
	if len(energy) < 2 {
		return fallbackScore
	}

	diffs := make([]float64, len(energy)-1)
	for i := 1; i < len(energy); i++ {
		diffs[i-1] = math.Abs(energy[i] - energy[i-1])
	}
	return clamp01(popVariance(diffs) / (mean(energy) + 1e-6))
}

// voiceConsistencyScore flags voices that stay too uniform across 2s segments
func voiceConsistencyScore(d *decodedAudio) float64 {
	segLen := d.sampleRate * segmentSeconds
	segments := len(d.samples) / segLen
	if segLen == 0 || segments < 2 {
		return fallbackScore
	}

	means := make([]float64, segments)
	stds := make([]float64, segments)
	energies := make([]float64, segments)
	sq := make([]float64, segLen)
	for s := 0; s < segments; s++ {
		seg := d.samples[s*segLen : (s+1)*segLen]
		m, v := stat.PopMeanVariance(seg, nil)
		means[s], stds[s] = m, math.Sqrt(v)
		for i, x := range seg {
			sq[i] = x * x
		}
		energies[s] = mean(sq)
	}

	spread := (math.Sqrt(popVariance(means)) + math.Sqrt(popVariance(stds)) + math.Sqrt(popVariance(energies))) / 3
	consistency := 1 - spread
	if consistency > 0.95 {
		return clamp01(consistency)
	}
	return clamp01((consistency - 0.7) * 2)
}

// prosodyScore rates pitch variance and range against natural speech
func prosodyScore(d *decodedAudio) float64 {
	frameLen := d.sampleRate / 50
	if frameLen <= pitchMinLag {
		return fallbackScore
	}

	var pitches []float64
	frames := 0
	for i := 0; i+frameLen < len(d.samples) && frames < maxPitchFrames; i += frameLen {
		frames++
		frame := d.samples[i : i+frameLen]

		bestLag, best := 0, 0.0
		for lag := pitchMinLag; lag < frameLen; lag++ {
			var acc float64
			for j := 0; j+lag < frameLen; j++ {
				acc += frame[j] * frame[j+lag]
			}
			if acc > best {
				best, bestLag = acc, lag
			}
		}
		if bestLag == 0 {
			continue
		}
		pitch := float64(d.sampleRate) / float64(bestLag)
		if pitch > pitchFloorHz && pitch < pitchCeilHz {
			pitches = append(pitches, pitch)
		}
	}
	if len(pitches) < minPitchCount {
		return fallbackScore
	}

	lo, hi := pitches[0], pitches[0]
	for _, p := range pitches {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	varianceScore := math.Min(1, math.Abs(popVariance(pitches)-300)/300)
	rangeScore := math.Min(1, math.Abs((hi-lo)-150)/150)
	return clamp01(varianceScore*0.5 + rangeScore*0.5)
}
