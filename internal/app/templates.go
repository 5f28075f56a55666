package app

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/store"
)

// LoadTemplates replaces the classifier's templates with the trained
// templates in the store. Untrained templates are skipped.
func (a *App) LoadTemplates() error {
	templates, err := a.store.Templates().List()
	if err != nil {
		return err
	}

	a.classifier.Reset()
	loaded := 0
	for _, t := range templates {
		landmarks, err := a.store.Templates().GetLandmarks(t.ID)
		if err != nil {
			a.logger.Warn("failed to load landmarks", "template", t.Label, "err", err)
			continue
		}
		if len(landmarks) != detector.NumLandmarks {
			a.logger.Debug("skipping untrained template", "template", t.Label)
			continue
		}

		err = a.classifier.AddTemplate(&gesture.Template{
			ID:        t.ID,
			Label:     t.Label,
			Features:  gesture.PointsToFeatures(storeLandmarksToDetector(landmarks)),
			Tolerance: t.Tolerance,
		})
		if err != nil {
			a.logger.Warn("skipping template", "template", t.Label, "err", err)
			continue
		}
		loaded++
	}

	a.logger.Info("loaded sign templates", "loaded", loaded, "total", len(templates))
	return nil
}

// TrainTemplate averages the recorded samples of a template into its
// landmarks and reloads the classifier.
func (a *App) TrainTemplate(id string) error {
	if _, err := a.store.Templates().GetByID(id); err != nil {
		return err
	}

	samples, err := a.store.Samples().GetByTemplateID(id)
	if err != nil {
		return err
	}
	raw := make([]json.RawMessage, len(samples))
	for i, s := range samples {
		raw[i] = s.Data
	}

	features, err := a.trainer.Train(raw)
	if err != nil {
		return fmt.Errorf("train template %s: %w", id, err)
	}

	if err := a.store.Templates().SetLandmarks(id, detectorToStoreLandmarks(gesture.FeaturesToPoints(features))); err != nil {
		return err
	}
	return a.LoadTemplates()
}

// ForgetTemplate removes a template from the classifier.
func (a *App) ForgetTemplate(id string) {
	a.classifier.RemoveTemplate(id)
}

func storeLandmarksToDetector(landmarks []store.Landmark) []detector.Point3D {
	points := make([]detector.Point3D, len(landmarks))
	for i, l := range landmarks {
		points[i] = detector.Point3D{X: l.X, Y: l.Y, Z: l.Z}
	}
	return points
}

func detectorToStoreLandmarks(points []detector.Point3D) []store.Landmark {
	landmarks := make([]store.Landmark, len(points))
	for i, p := range points {
		landmarks[i] = store.Landmark{Index: i, X: p.X, Y: p.Y, Z: p.Z}
	}
	return landmarks
}
