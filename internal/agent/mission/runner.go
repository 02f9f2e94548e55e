package mission

import (
	"context"
	"fmt"
	"time"

	"github.com/agrisight-io/agrisight/internal/agent/hal"
	"github.com/agrisight-io/agrisight/internal/agent/perceive"
	"github.com/agrisight-io/agrisight/internal/pkg/cycleid"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/log"
)

// Uploader sends one completed cycle's observations and evidence images to
// the backend. Images align positionally with observations.
type Uploader interface {
	UploadObservations(ctx context.Context, cycleID, agvID, timestamp string, observations []v1.Observation, images []perceive.Frame) error
}

// Runner walks the inspection route for one cycle: drive to each node,
// sample and classify, and upload everything at the end of the lap.
type Runner struct {
	hal       hal.Subsystems
	collector *perceive.Collector
	uploader  Uploader
	machine   *Machine

	agvID string
	nodes []string

	// power reports whether the subsystems are powered. A power-off stops
	// the lap at the next checkpoint and finishes the mission, so restoring
	// power and sending start begins a fresh lap.
	power func() bool

	now func() time.Time
}

func NewRunner(subsystems hal.Subsystems, collector *perceive.Collector, uploader Uploader, machine *Machine, agvID string, nodes []string, power func() bool) *Runner {
	if power == nil {
		power = func() bool { return true }
	}
	return &Runner{
		hal:       subsystems,
		collector: collector,
		uploader:  uploader,
		machine:   machine,
		agvID:     agvID,
		nodes:     nodes,
		power:     power,
		now:       time.Now,
	}
}

// RunCycle executes one inspection lap. The mission state is checked before
// each node: a pause or power-off observed there stops the lap at that
// checkpoint, never mid-capture. A lap interrupted before the last node
// uploads nothing; the next start begins a fresh lap.
func (r *Runner) RunCycle(ctx context.Context, cycleID string) error {
	timestamp := cycleid.Timestamp(r.now())

	observations := make([]v1.Observation, 0, len(r.nodes))
	images := make([]perceive.Frame, 0, len(r.nodes))

	for _, node := range r.nodes {
		if !r.machine.Running() || !r.power() {
			log.Info("Mission interrupted at checkpoint", "cycle", cycleID, "node", node)
			return r.interrupted(ctx)
		}

		if err := r.hal.MoveTo(ctx, node); err != nil {
			r.abort(ctx)
			return fmt.Errorf("move to node %q: %w", node, err)
		}

		frame, verdict, err := r.collector.Observe(ctx)
		if err != nil {
			r.abort(ctx)
			return fmt.Errorf("observe node %q: %w", node, err)
		}

		observations = append(observations, v1.Observation{Node: node, Yolo: verdict})
		images = append(images, frame)
		log.Info("Observed node", "cycle", cycleID, "node", node, "result", verdict.Result, "confidence", verdict.Confidence)
	}

	if !r.machine.Running() || !r.power() {
		log.Info("Mission interrupted before upload", "cycle", cycleID)
		return r.interrupted(ctx)
	}

	if err := r.uploader.UploadObservations(ctx, cycleID, r.agvID, timestamp, observations, images); err != nil {
		r.abort(ctx)
		return fmt.Errorf("upload cycle %q: %w", cycleID, err)
	}

	log.Info("Cycle complete", "cycle", cycleID, "nodes", len(observations))
	return r.machine.Finish(ctx)
}

// interrupted wraps up a lap that stopped at a checkpoint. A power-off with
// the machine still running finishes the mission so the next start launches a
// fresh lap; a paused machine stays paused and resumes via start.
func (r *Runner) interrupted(ctx context.Context) error {
	if r.machine.Running() {
		return r.machine.Finish(ctx)
	}
	return nil
}

func (r *Runner) abort(ctx context.Context) {
	if err := r.machine.Finish(ctx); err != nil {
		log.Error(err, "Failed to reset mission state")
	}
}
