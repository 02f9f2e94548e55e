package perceive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
)

func TestReduceModeAndMeanOfWinningLabel(t *testing.T) {
	verdict := Reduce([]Detection{
		{Label: v1.ResultAbnormal, Score: 0.9},
		{Label: v1.ResultNormal, Score: 0.4},
		{Label: v1.ResultAbnormal, Score: 0.7},
	})
	assert.Equal(t, v1.ResultAbnormal, verdict.Result)
	assert.InDelta(t, 0.8, verdict.Confidence, 1e-9, "mean of winning-label scores only")
}

func TestReduceTieBreaksOnFirstEncountered(t *testing.T) {
	verdict := Reduce([]Detection{
		{Label: v1.ResultNormal, Score: 0.6},
		{Label: v1.ResultAbnormal, Score: 0.9},
		{Label: v1.ResultAbnormal, Score: 0.7},
		{Label: v1.ResultNormal, Score: 0.8},
	})
	assert.Equal(t, v1.ResultNormal, verdict.Result, "ties resolve to the earliest-seen label")
	assert.InDelta(t, 0.7, verdict.Confidence, 1e-9)
}

func TestReduceEmptyIsUnknown(t *testing.T) {
	verdict := Reduce(nil)
	assert.Equal(t, v1.ResultUnknown, verdict.Result)
	assert.Zero(t, verdict.Confidence)
}

func TestReduceRoundsConfidence(t *testing.T) {
	verdict := Reduce([]Detection{
		{Label: v1.ResultNormal, Score: 0.1},
		{Label: v1.ResultNormal, Score: 0.2},
		{Label: v1.ResultNormal, Score: 0.2},
	})
	assert.Equal(t, 0.167, verdict.Confidence)
}

func TestReduceDeterministic(t *testing.T) {
	samples := []Detection{
		{Label: v1.ResultAbnormal, Score: 0.5},
		{Label: v1.ResultUnknown, Score: 0.5},
		{Label: v1.ResultAbnormal, Score: 0.6},
	}
	first := Reduce(samples)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Reduce(samples))
	}
}

// scriptedSource returns one frame per call, or an error if scripted.
type scriptedSource struct {
	frames []Frame
	errs   []error
	calls  int
}

func (s *scriptedSource) Capture(ctx context.Context) (Frame, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.frames) {
		return s.frames[i], nil
	}
	return Frame("frame"), nil
}

// scriptedClassifier returns detections per call.
type scriptedClassifier struct {
	results [][]Detection
	calls   int
}

func (s *scriptedClassifier) Classify(ctx context.Context, frame Frame) ([]Detection, error) {
	i := s.calls
	s.calls++
	if i < len(s.results) {
		return s.results[i], nil
	}
	return nil, nil
}

func TestCollectorObserve(t *testing.T) {
	source := &scriptedSource{
		frames: []Frame{Frame("f1"), Frame("f2"), Frame("f3")},
	}
	classifier := &scriptedClassifier{
		results: [][]Detection{
			{{Label: v1.ResultAbnormal, Score: 0.9}},
			{}, // empty frame contributes nothing
			{{Label: v1.ResultAbnormal, Score: 0.7}, {Label: v1.ResultNormal, Score: 0.2}},
		},
	}

	frame, verdict, err := NewCollector(source, classifier, 3, 0).Observe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Frame("f3"), frame, "last captured frame is the evidence")
	assert.Equal(t, v1.ResultAbnormal, verdict.Result)
	assert.InDelta(t, 0.8, verdict.Confidence, 1e-9, "only the top detection per sample counts")
}

func TestCollectorAllEmptyStillReturnsLastFrame(t *testing.T) {
	source := &scriptedSource{frames: []Frame{Frame("f1"), Frame("f2")}}
	classifier := &scriptedClassifier{}

	frame, verdict, err := NewCollector(source, classifier, 2, 0).Observe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Frame("f2"), frame)
	assert.Equal(t, v1.ResultUnknown, verdict.Result)
	assert.Zero(t, verdict.Confidence)
}

func TestCollectorSkipsFailedCaptures(t *testing.T) {
	source := &scriptedSource{
		frames: []Frame{nil, Frame("f2")},
		errs:   []error{errors.New("camera busy"), nil},
	}
	classifier := &scriptedClassifier{
		results: [][]Detection{{{Label: v1.ResultNormal, Score: 0.5}}},
	}

	frame, verdict, err := NewCollector(source, classifier, 2, 0).Observe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Frame("f2"), frame)
	assert.Equal(t, v1.ResultNormal, verdict.Result)
}

func TestCollectorErrorsWhenNothingCaptured(t *testing.T) {
	boom := errors.New("no camera")
	source := &scriptedSource{errs: []error{boom, boom}}

	_, _, err := NewCollector(source, &scriptedClassifier{}, 2, 0).Observe(context.Background())
	require.Error(t, err)
}
