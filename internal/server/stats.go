package server

import (
	"context"
	"math"
	"time"

	"github.com/ppiankov/deepguard/internal/model"
)

// statsWindow is how many recent records the store-backed dashboard aggregates
const statsWindow = 1000

// Stats is the dashboard aggregation served by GET /api/stats
type Stats struct {
	TotalAnalyses     int                            `json:"total_analyses"`
	DeepfakesDetected int                            `json:"deepfakes_detected"`
	AuthenticMedia    int                            `json:"authentic_media"`
	AverageConfidence float64                        `json:"average_confidence"`
	ByKind            map[model.MediaKind]int        `json:"by_kind"`
	ByManipulation    map[model.ManipulationType]int `json:"by_manipulation_type"`
	Recent            []RecentAnalysis               `json:"recent"`
	Demo              bool                           `json:"demo"`
}

// RecentAnalysis is one row of the dashboard's recent activity list
type RecentAnalysis struct {
	FileID           string                 `json:"file_id"`
	FileName         string                 `json:"file_name"`
	Kind             model.MediaKind        `json:"kind"`
	IsDeepfake       bool                   `json:"is_deepfake"`
	ManipulationType model.ManipulationType `json:"manipulation_type"`
	Confidence       float64                `json:"confidence"`
	Timestamp        string                 `json:"timestamp"`
}

// StatsProvider produces dashboard statistics
type StatsProvider interface {
	Stats(ctx context.Context) (Stats, error)
}

type recentLister interface {
	Recent(ctx context.Context, limit int) ([]model.Record, error)
}

// StoreStats aggregates the most recent stored records
type StoreStats struct {
	records recentLister
}

func NewStoreStats(records recentLister) *StoreStats {
	return &StoreStats{records: records}
}

func (s *StoreStats) Stats(ctx context.Context) (Stats, error) {
	recs, err := s.records.Recent(ctx, statsWindow)
	if err != nil {
		return Stats{}, err
	}
	return aggregate(recs), nil
}

func aggregate(recs []model.Record) Stats {
	stats := Stats{
		ByKind:         map[model.MediaKind]int{},
		ByManipulation: map[model.ManipulationType]int{},
		Recent:         []RecentAnalysis{},
	}

	var sum float64
	for i, rec := range recs {
		v := rec.Verdict
		stats.TotalAnalyses++
		if v.IsDeepfake {
			stats.DeepfakesDetected++
		} else {
			stats.AuthenticMedia++
		}
		stats.ByKind[rec.Kind]++
		stats.ByManipulation[v.ManipulationType]++
		sum += v.Confidence

		if i < 5 {
			stats.Recent = append(stats.Recent, RecentAnalysis{
				FileID:           rec.FileID,
				FileName:         rec.FileName,
				Kind:             rec.Kind,
				IsDeepfake:       v.IsDeepfake,
				ManipulationType: v.ManipulationType,
				Confidence:       v.Confidence,
				Timestamp:        rec.Timestamp.UTC().Format(model.TimestampLayout),
			})
		}
	}
	if stats.TotalAnalyses > 0 {
		stats.AverageConfidence = math.Round(sum/float64(stats.TotalAnalyses)*10000) / 10000
	}
	return stats
}

// DemoStats serves fixed sample numbers for dashboards without real traffic
type DemoStats struct {
	now func() time.Time
}

func NewDemoStats() *DemoStats {
	return &DemoStats{now: time.Now}
}

func (d *DemoStats) Stats(ctx context.Context) (Stats, error) {
	ts := d.now().UTC().Format(model.TimestampLayout)
	return Stats{
		TotalAnalyses:     1247,
		DeepfakesDetected: 312,
		AuthenticMedia:    935,
		AverageConfidence: 0.8734,
		ByKind: map[model.MediaKind]int{
			model.KindImage: 724,
			model.KindVideo: 341,
			model.KindAudio: 182,
		},
		ByManipulation: map[model.ManipulationType]int{
			model.ManipulationAuthentic:         935,
			model.ManipulationAIGenerated:       141,
			model.ManipulationFaceSwap:          83,
			model.ManipulationLipSync:           37,
			model.ManipulationVoiceClone:        29,
			model.ManipulationSynthesizedSpeech: 22,
		},
		Recent: []RecentAnalysis{
			{FileID: "demo-1", FileName: "portrait.jpg", Kind: model.KindImage, IsDeepfake: true,
				ManipulationType: model.ManipulationAIGenerated, Confidence: 0.91, Timestamp: ts},
			{FileID: "demo-2", FileName: "interview.mp4", Kind: model.KindVideo, IsDeepfake: false,
				ManipulationType: model.ManipulationAuthentic, Confidence: 0.23, Timestamp: ts},
			{FileID: "demo-3", FileName: "voicemail.wav", Kind: model.KindAudio, IsDeepfake: true,
				ManipulationType: model.ManipulationVoiceClone, Confidence: 0.77, Timestamp: ts},
		},
		Demo: true,
	}, nil
}
