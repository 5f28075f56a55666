// Package gesture classifies a hand pose into a sign label.
package gesture

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ayusman/mudra/internal/detector"
)

var (
	// ErrClassifierUnavailable is returned while the classifier has no templates.
	ErrClassifierUnavailable = errors.New("classifier unavailable")

	// ErrInvalidTemplate is returned by AddTemplate for a template that
	// cannot be matched against.
	ErrInvalidTemplate = errors.New("invalid template")
)

// Classifier is the sign oracle: hand landmarks in, best label out.
type Classifier interface {
	// Classify returns the best prediction. A zero Prediction with a nil
	// error means no sign matched.
	Classify(hand *detector.HandLandmarks) (Prediction, error)

	// Ready reports whether Classify can produce predictions.
	Ready() bool
}

// Prediction is one classifier result.
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Template is a reference pose for one sign label.
type Template struct {
	ID        string
	Label     string
	Features  []float64 // detector.NumFeatures values
	Tolerance float64   // maximum mean point distance for a match
}

// Match pairs a template with its distance to the input.
type Match struct {
	Template *Template
	Distance float64
}

// softmaxSharpness scales distances before the softmax over candidates.
const softmaxSharpness = 20.0

// TemplateClassifier matches the normalized 2D pose of a hand against
// registered templates. It is safe for concurrent use.
type TemplateClassifier struct {
	mu        sync.RWMutex
	templates []*Template
}

// NewTemplateClassifier creates an empty classifier.
func NewTemplateClassifier() *TemplateClassifier {
	return &TemplateClassifier{}
}

// AddTemplate registers t, replacing any template with the same ID.
// Templates with the wrong feature count or a non-positive tolerance are
// rejected with ErrInvalidTemplate.
func (c *TemplateClassifier) AddTemplate(t *Template) error {
	switch {
	case t == nil:
		return fmt.Errorf("%w: nil", ErrInvalidTemplate)
	case len(t.Features) != detector.NumFeatures:
		return fmt.Errorf("%w: %s has %d features, want %d", ErrInvalidTemplate, t.ID, len(t.Features), detector.NumFeatures)
	case !(t.Tolerance > 0) || math.IsInf(t.Tolerance, 1):
		return fmt.Errorf("%w: %s has tolerance %v", ErrInvalidTemplate, t.ID, t.Tolerance)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.templates {
		if existing.ID == t.ID {
			c.templates[i] = t
			return nil
		}
	}
	c.templates = append(c.templates, t)
	return nil
}

// RemoveTemplate removes a template by its ID.
func (c *TemplateClassifier) RemoveTemplate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, t := range c.templates {
		if t.ID == id {
			c.templates = append(c.templates[:i], c.templates[i+1:]...)
			return
		}
	}
}

// Reset removes all templates.
func (c *TemplateClassifier) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.templates = nil
}

// Len returns the number of templates.
func (c *TemplateClassifier) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.templates)
}

// Ready reports whether at least one template is registered.
func (c *TemplateClassifier) Ready() bool {
	return c.Len() > 0
}

// Match returns every template within its tolerance of hand, closest first.
func (c *TemplateClassifier) Match(hand *detector.HandLandmarks) []Match {
	features := hand.Features()
	if features == nil {
		return nil
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var matches []Match
	for _, t := range c.templates {
		d := meanPointDistance(features, t.Features)
		if d <= t.Tolerance {
			matches = append(matches, Match{Template: t, Distance: d})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})
	return matches
}

// Classify returns the closest matching label. Confidence combines how much
// the best match beats the other candidates (a softmax over negative
// distances) with how close it is relative to its tolerance.
func (c *TemplateClassifier) Classify(hand *detector.HandLandmarks) (Prediction, error) {
	if !c.Ready() {
		return Prediction{}, ErrClassifierUnavailable
	}
	matches := c.Match(hand)
	if len(matches) == 0 {
		return Prediction{}, nil
	}

	best := matches[0]
	var sum float64
	for _, m := range matches {
		sum += math.Exp(-softmaxSharpness * (m.Distance - best.Distance))
	}
	share := 1 / sum
	closeness := 1 - best.Distance/best.Template.Tolerance

	return Prediction{
		Label:      best.Template.Label,
		Confidence: clamp01(share * closeness),
	}, nil
}

// meanPointDistance is the mean Euclidean distance between corresponding
// (x, y) points of two feature vectors.
func meanPointDistance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	n -= n % 2
	if n == 0 {
		return math.Inf(1)
	}
	var total float64
	for i := 0; i < n; i += 2 {
		dx := a[i] - b[i]
		dy := a[i+1] - b[i+1]
		total += math.Sqrt(dx*dx + dy*dy)
	}
	return total / float64(n/2)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
