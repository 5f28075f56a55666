package app

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/translate"
)

// Run reads camera frames until ctx is done. Each frame is published to the
// grabber, then classified and fed to the pipeline. Without a usable camera
// Run only waits for ctx, leaving the HTTP API to inject classifications.
func (a *App) Run(ctx context.Context) error {
	if a.camera == nil {
		a.logger.Info("camera disabled")
		<-ctx.Done()
		return nil
	}

	if err := a.camera.Open(); err != nil {
		a.logger.Error("camera unavailable", "err", err)
		<-ctx.Done()
		return nil
	}
	a.grabber.Open()
	defer func() {
		a.grabber.Close()
		if err := a.camera.Close(); err != nil {
			a.logger.Warn("error closing camera", "err", err)
		}
	}()

	fps := a.camera.FPS()
	if fps <= 0 {
		fps = capture.DefaultFPS
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	a.logger.Info("frame loop started", "fps", fps)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("frame loop stopped")
			return nil
		case <-ticker.C:
			if !a.IsEnabled() {
				continue
			}

			frame, err := a.camera.ReadFrame()
			if err != nil {
				if !errors.Is(err, capture.ErrNoFrame) {
					a.logger.Warn("error reading frame", "err", err)
				}
				continue
			}
			a.ProcessFrame(frame)
			frame.Close()
		}
	}
}

// ProcessFrame publishes frame for captures and runs hand detection on it.
func (a *App) ProcessFrame(frame *gocv.Mat) {
	a.grabber.Publish(frame)

	hands, err := a.detector.Detect(frame)
	if err != nil {
		a.logger.Warn("error detecting hands", "err", err)
		return
	}
	a.ObserveHands(hands)
}

// ObserveHands classifies the primary hand and feeds the result to the
// pipeline. It reports whether a sample was produced. No hand, no matching
// template and an empty classifier produce nothing.
func (a *App) ObserveHands(hands []detector.HandLandmarks) bool {
	hand := detector.Primary(hands)
	if hand == nil {
		return false
	}

	pred, err := a.classifier.Classify(hand)
	if err != nil {
		if !errors.Is(err, gesture.ErrClassifierUnavailable) {
			a.logger.Warn("classification failed", "err", err)
		}
		return false
	}
	if pred.Label == "" {
		return false
	}

	a.pipeline.OnClassification(translate.Sample{
		Label:      pred.Label,
		Confidence: pred.Confidence,
		ObservedAt: a.clock.Now(),
	})
	return true
}
