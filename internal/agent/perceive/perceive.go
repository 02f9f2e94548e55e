// Package perceive captures frames at an inspection node, runs the
// classifier on each, and folds the samples into one verdict.
package perceive

import (
	"context"
	"errors"
	"math"
	"time"

	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
)

// Frame is one captured camera image, JPEG-encoded.
type Frame []byte

// Detection is one labeled object found in a frame.
type Detection struct {
	Label v1.YoloResult
	Score float64
}

// FrameSource produces camera frames.
type FrameSource interface {
	Capture(ctx context.Context) (Frame, error)
}

// Classifier labels objects in a frame. An empty slice means the frame
// contained nothing recognizable; that is not an error.
type Classifier interface {
	Classify(ctx context.Context, frame Frame) ([]Detection, error)
}

// Reduce folds per-sample detections into one verdict. The label is the mode
// of observed labels, ties broken by the first-encountered label in sample
// order; the confidence is the mean score of samples carrying the winning
// label, rounded to three decimals. No detections at all yields (unknown, 0).
// Deterministic for identical inputs.
func Reduce(samples []Detection) v1.YoloVerdict {
	if len(samples) == 0 {
		return v1.YoloVerdict{Result: v1.ResultUnknown, Confidence: 0.0}
	}

	counts := make(map[v1.YoloResult]int, len(samples))
	for _, s := range samples {
		counts[s.Label]++
	}

	// Walking samples in order visits labels by first occurrence, so a tie
	// resolves to the earliest-seen label.
	var winner v1.YoloResult
	best := 0
	for _, s := range samples {
		if counts[s.Label] > best {
			best = counts[s.Label]
			winner = s.Label
		}
	}

	var sum float64
	for _, s := range samples {
		if s.Label == winner {
			sum += s.Score
		}
	}
	mean := sum / float64(best)

	return v1.YoloVerdict{
		Result:     winner,
		Confidence: math.Round(mean*1000) / 1000,
	}
}

// Collector runs the sample loop for one node.
type Collector struct {
	source     FrameSource
	classifier Classifier

	// samples is the number of capture+classify rounds per node; delay paces
	// the rounds so consecutive captures do not read the same buffered frame.
	samples int
	delay   time.Duration
}

func NewCollector(source FrameSource, classifier Classifier, samples int, delay time.Duration) *Collector {
	if samples < 1 {
		samples = 1
	}
	return &Collector{
		source:     source,
		classifier: classifier,
		samples:    samples,
		delay:      delay,
	}
}

// Observe captures and classifies the configured number of samples and
// reduces them. The last captured frame is returned as the evidentiary image
// even when it produced no detection. Failed captures are skipped; only a
// node where every capture failed is an error.
func (c *Collector) Observe(ctx context.Context) (Frame, v1.YoloVerdict, error) {
	var lastFrame Frame
	var detections []Detection

	for i := 0; i < c.samples; i++ {
		if i > 0 && c.delay > 0 {
			select {
			case <-time.After(c.delay):
			case <-ctx.Done():
				return nil, v1.YoloVerdict{}, ctx.Err()
			}
		}

		frame, err := c.source.Capture(ctx)
		if err != nil {
			continue
		}
		lastFrame = frame

		found, err := c.classifier.Classify(ctx, frame)
		if err != nil {
			return nil, v1.YoloVerdict{}, err
		}
		if len(found) == 0 {
			continue
		}
		// One detection per sample: the classifier's top box.
		detections = append(detections, found[0])
	}

	if lastFrame == nil {
		return nil, v1.YoloVerdict{}, errors.New("no frame captured")
	}
	return lastFrame, Reduce(detections), nil
}
