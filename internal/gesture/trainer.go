package gesture

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
)

// Trainer turns recorded samples into template features.
type Trainer struct{}

// NewTrainer creates a new Trainer.
func NewTrainer() *Trainer {
	return &Trainer{}
}

// Sample is one recorded hand pose as stored by the samples API.
type Sample struct {
	Landmarks []detector.Point3D `json:"landmarks"`
	Timestamp int64              `json:"timestamp"`
}

// Train normalizes every sample and averages their feature vectors.
func (t *Trainer) Train(samples []json.RawMessage) ([]float64, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	sum := make([]float64, detector.NumFeatures)
	for i, raw := range samples {
		var s Sample
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		if len(s.Landmarks) != detector.NumLandmarks {
			return nil, fmt.Errorf("sample %d has %d landmarks, expected %d", i, len(s.Landmarks), detector.NumLandmarks)
		}

		var hand detector.HandLandmarks
		copy(hand.Points[:], s.Landmarks)
		for j, v := range hand.Features() {
			sum[j] += v
		}
	}

	n := float64(len(samples))
	for j := range sum {
		sum[j] /= n
	}
	return sum, nil
}

// FeaturesToPoints expands a feature vector back into landmark points
// with zero depth, for storage.
func FeaturesToPoints(f []float64) []detector.Point3D {
	pts := make([]detector.Point3D, len(f)/2)
	for i := range pts {
		pts[i] = detector.Point3D{X: f[2*i], Y: f[2*i+1]}
	}
	return pts
}

// PointsToFeatures flattens stored template points into a feature vector.
func PointsToFeatures(pts []detector.Point3D) []float64 {
	f := make([]float64, 0, 2*len(pts))
	for _, p := range pts {
		f = append(f, p.X, p.Y)
	}
	return f
}
