package agent

import (
	"context"
	"math/rand"
	"sync"

	"github.com/agrisight-io/agrisight/internal/agent/perceive"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
)

// Stand-in camera and classifier bindings used until the real capture and
// model integrations are linked in. They exercise the full pipeline shape:
// JPEG frames, occasional empty detections, varying confidences.

// minimalJPEG is a 1x1 gray JPEG, enough for the evidence pipeline.
var minimalJPEG = []byte{
	0xff, 0xd8, 0xff, 0xdb, 0x00, 0x43, 0x00, 0x08, 0x06, 0x06, 0x07, 0x06, 0x05, 0x08, 0x07, 0x07,
	0x07, 0x09, 0x09, 0x08, 0x0a, 0x0c, 0x14, 0x0d, 0x0c, 0x0b, 0x0b, 0x0c, 0x19, 0x12, 0x13, 0x0f,
	0x14, 0x1d, 0x1a, 0x1f, 0x1e, 0x1d, 0x1a, 0x1c, 0x1c, 0x20, 0x24, 0x2e, 0x27, 0x20, 0x22, 0x2c,
	0x23, 0x1c, 0x1c, 0x28, 0x37, 0x29, 0x2c, 0x30, 0x31, 0x34, 0x34, 0x34, 0x1f, 0x27, 0x39, 0x3d,
	0x38, 0x32, 0x3c, 0x2e, 0x33, 0x34, 0x32, 0xff, 0xc0, 0x00, 0x0b, 0x08, 0x00, 0x01, 0x00, 0x01,
	0x01, 0x01, 0x11, 0x00, 0xff, 0xc4, 0x00, 0x1f, 0x00, 0x00, 0x01, 0x05, 0x01, 0x01, 0x01, 0x01,
	0x01, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06,
	0x07, 0x08, 0x09, 0x0a, 0x0b, 0xff, 0xda, 0x00, 0x08, 0x01, 0x01, 0x00, 0x00, 0x3f, 0x00, 0x7f,
	0xff, 0xd9,
}

type simulatedSource struct{}

func newSimulatedSource() perceive.FrameSource { return simulatedSource{} }

func (simulatedSource) Capture(ctx context.Context) (perceive.Frame, error) {
	return perceive.Frame(minimalJPEG), nil
}

type simulatedClassifier struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSimulatedClassifier() perceive.Classifier {
	return &simulatedClassifier{rng: rand.New(rand.NewSource(1))}
}

func (c *simulatedClassifier) Classify(ctx context.Context, frame perceive.Frame) ([]perceive.Detection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	roll := c.rng.Float64()
	switch {
	case roll < 0.1:
		// No detection in this frame.
		return nil, nil
	case roll < 0.4:
		return []perceive.Detection{{Label: v1.ResultAbnormal, Score: 0.6 + 0.35*c.rng.Float64()}}, nil
	default:
		return []perceive.Detection{{Label: v1.ResultNormal, Score: 0.7 + 0.25*c.rng.Float64()}}, nil
	}
}
