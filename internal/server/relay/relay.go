// Package relay translates accepted REST commands into broker publishes.
//
// A successful return means "command accepted for delivery", never "command
// executed": the backend has no channel to learn the robot's true state, so
// it only reports what it last told the robot to do.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/agrisight-io/agrisight/internal/pkg/apierr"
	"github.com/agrisight-io/agrisight/internal/pkg/cycleid"
	"github.com/agrisight-io/agrisight/internal/pkg/metrics"
	"github.com/agrisight-io/agrisight/internal/server/state"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/log"
	"github.com/agrisight-io/agrisight/pkg/mqtt"
	mqtttopic "github.com/agrisight-io/agrisight/pkg/mqtt/topic"
)

// qosAtLeastOnce: every command is published with delivery assurance level 1.
const qosAtLeastOnce = 1

// Relay publishes commands and maintains the last-known power intent cache.
type Relay struct {
	mc     mqtt.Client
	topics *mqtttopic.Builder
	state  state.Store

	now func() time.Time
}

// New creates a Relay. The state store is injected so it can be swapped for
// a persistent implementation without touching callers.
func New(mc mqtt.Client, topics *mqtttopic.Builder, st state.Store) *Relay {
	return &Relay{
		mc:     mc,
		topics: topics,
		state:  st,
		now:    time.Now,
	}
}

// SetRun overwrites the cached power state and publishes it to the robot's
// run topic. It returns without waiting for robot acknowledgment; a publish
// failure is fatal to this request and is not retried.
func (r *Relay) SetRun(ctx context.Context, agvID string, running bool) (string, error) {
	r.state.Set(agvID, running)

	topic := r.topics.Run(agvID)
	if err := r.publish(ctx, topic, mqtttopic.SegmentRun, &v1.PowerCommand{AGVID: agvID, Running: running}); err != nil {
		return topic, err
	}

	log.Info("Relayed power command", "agv", agvID, "running", running, "topic", topic)
	return topic, nil
}

// GetRun reads the cached power state; unknown ids read as not running.
func (r *Relay) GetRun(agvID string) bool {
	return r.state.Get(agvID)
}

// StartMission mints a cycle id, publishes a start command carrying it, and
// returns the id without confirming the robot received the command.
func (r *Relay) StartMission(ctx context.Context, agvID string) (cycleID, topic string, err error) {
	cycleID = cycleid.New(r.now())
	topic = r.topics.Cmd(agvID)

	cmd := &v1.MissionCommand{Type: v1.MissionStart, CycleID: cycleID}
	if err := r.publish(ctx, topic, mqtttopic.SegmentCmd, cmd); err != nil {
		return "", topic, err
	}

	log.Info("Relayed mission start", "agv", agvID, "cycle", cycleID, "topic", topic)
	return cycleID, topic, nil
}

// PauseMission publishes a pause command. It does not change the power state.
func (r *Relay) PauseMission(ctx context.Context, agvID string) (string, error) {
	topic := r.topics.Cmd(agvID)

	if err := r.publish(ctx, topic, mqtttopic.SegmentCmd, &v1.MissionCommand{Type: v1.MissionPause}); err != nil {
		return topic, err
	}

	log.Info("Relayed mission pause", "agv", agvID, "topic", topic)
	return topic, nil
}

// ManualMove relays a directional jog. The command is dropped (sent=false)
// when the cached power state says the robot is off.
func (r *Relay) ManualMove(ctx context.Context, agvID, direction string) (sent bool, topic string, err error) {
	if !r.state.Get(agvID) {
		log.Info("Dropping manual move, AGV not running", "agv", agvID, "direction", direction)
		return false, "", nil
	}

	topic = r.topics.Cmd(agvID)
	cmd := &v1.MissionCommand{Type: v1.MissionMove, Direction: direction}
	if err := r.publish(ctx, topic, mqtttopic.SegmentCmd, cmd); err != nil {
		return false, topic, err
	}

	return true, topic, nil
}

// PublishZoneActions publishes a derived per-node command batch. Like manual
// moves, the batch is dropped when the robot is not powered.
func (r *Relay) PublishZoneActions(ctx context.Context, agvID string, commands []v1.ZoneCommand) (sent bool, topic string, err error) {
	if !r.state.Get(agvID) {
		log.Info("Dropping zone actions, AGV not running", "agv", agvID)
		return false, "", nil
	}

	topic = r.topics.ZoneAction(agvID)
	payload := &v1.ZoneActionPayload{Commands: commands}
	if err := r.publish(ctx, topic, mqtttopic.SegmentZoneAction, payload); err != nil {
		return false, topic, err
	}

	log.Info("Relayed zone actions", "agv", agvID, "commands", len(commands), "topic", topic)
	return true, topic, nil
}

func (r *Relay) publish(ctx context.Context, topic, segment string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return apierr.Dependency(err, "failed to encode command")
	}

	if err := r.mc.Publish(ctx, topic, qosAtLeastOnce, false, payload); err != nil {
		metrics.CommandsPublished.WithLabelValues(segment, "failed").Inc()
		return apierr.Dependency(err, "broker publish failed")
	}

	metrics.CommandsPublished.WithLabelValues(segment, "success").Inc()
	return nil
}
