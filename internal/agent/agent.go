// Package agent is the on-vehicle runtime: it listens for backend commands
// on the broker, owns the mission state machine, and reports observations
// back over HTTP.
//
// Commands are processed strictly sequentially by one loop; only the mission
// lap itself runs on a separate goroutine so a pause can be observed while
// the robot is mid-route.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agrisight-io/agrisight/internal/agent/hal"
	"github.com/agrisight-io/agrisight/internal/agent/mission"
	"github.com/agrisight-io/agrisight/internal/agent/perceive"
	"github.com/agrisight-io/agrisight/internal/agent/upload"
	"github.com/agrisight-io/agrisight/internal/pkg/cycleid"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/log"
	"github.com/agrisight-io/agrisight/pkg/mqtt"
	mqtttopic "github.com/agrisight-io/agrisight/pkg/mqtt/topic"
	"github.com/agrisight-io/agrisight/pkg/options"
)

const qosAtLeastOnce = 1

// commandBuffer bounds queued broker messages. The loop drains fast; a full
// buffer means the agent is wedged and dropping (with a log) beats blocking
// the broker reader.
const commandBuffer = 16

type inbound struct {
	topic   string
	payload []byte
}

// Agent wires the broker listener, the mission runner, and the hardware.
type Agent struct {
	agvID string

	mc     mqtt.Client
	topics *mqtttopic.Builder

	subsystems hal.Subsystems
	machine    *mission.Machine
	runner     *mission.Runner

	powered  atomic.Bool
	commands chan inbound

	// missions tracks the in-flight lap goroutine for clean shutdown.
	missions sync.WaitGroup
}

// New assembles an Agent from explicit dependencies.
func New(agvID string, mc mqtt.Client, topics *mqtttopic.Builder, subsystems hal.Subsystems, collector *perceive.Collector, uploader mission.Uploader, nodes []string) *Agent {
	a := &Agent{
		agvID:      agvID,
		mc:         mc,
		topics:     topics,
		subsystems: subsystems,
		machine:    mission.NewMachine(),
		commands:   make(chan inbound, commandBuffer),
	}
	a.runner = mission.NewRunner(subsystems, collector, uploader, a.machine, agvID, nodes, a.powered.Load)
	return a
}

// NewFromOptions assembles an Agent with the default simulated camera and
// classifier bindings.
func NewFromOptions(o *options.AgentOptions, mqttOpts *options.MqttOptions) (*Agent, error) {
	mc, err := mqtt.NewClient(mqttOpts.ToClientConfig())
	if err != nil {
		return nil, fmt.Errorf("create mqtt client: %w", err)
	}

	collector := perceive.NewCollector(newSimulatedSource(), newSimulatedClassifier(), o.Samples, o.SampleDelay)
	uploader := upload.NewClient(o.ServerURL, o.UploadTimeout)

	return New(o.AGVID, mc, mqtttopic.NewBuilder(mqttOpts.TopicRoot), hal.NewSimulator(), collector, uploader, o.Nodes), nil
}

// Run connects to the broker, subscribes to this AGV's command topics, and
// processes messages until ctx is cancelled.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.mc.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.mc.Disconnect(disconnectCtx)
	}()

	if err := a.mc.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("await mqtt connection: %w", err)
	}

	for _, topic := range []string{
		a.topics.Run(a.agvID),
		a.topics.Cmd(a.agvID),
		a.topics.ZoneAction(a.agvID),
	} {
		if err := a.mc.Subscribe(ctx, topic, qosAtLeastOnce, a.enqueue); err != nil {
			return fmt.Errorf("subscribe %q: %w", topic, err)
		}
	}

	log.Info("Agent listening", "agv", a.agvID)

	for {
		select {
		case <-ctx.Done():
			a.missions.Wait()
			log.Info("Agent stopped", "agv", a.agvID)
			return nil
		case msg := <-a.commands:
			a.dispatch(ctx, msg)
		}
	}
}

// enqueue hands a broker message to the sequential command loop.
func (a *Agent) enqueue(_ context.Context, topic string, payload []byte) {
	select {
	case a.commands <- inbound{topic: topic, payload: payload}:
	default:
		log.Info("Dropping command, queue full", "topic", topic)
	}
}

// dispatch routes one message by topic. Malformed payloads are logged and
// dropped; they must never take down the listener loop.
func (a *Agent) dispatch(ctx context.Context, msg inbound) {
	switch msg.topic {
	case a.topics.Run(a.agvID):
		a.handlePower(ctx, msg.payload)
	case a.topics.Cmd(a.agvID):
		a.handleMission(ctx, msg.payload)
	case a.topics.ZoneAction(a.agvID):
		a.handleZoneActions(ctx, msg.payload)
	default:
		log.Info("Ignoring message on unexpected topic", "topic", msg.topic)
	}
}

// handlePower applies a power command. run=false stops an active lap at its
// next checkpoint; the runner finishes the mission there so a later start
// begins a fresh lap. A paused mission stays paused across a power drop.
func (a *Agent) handlePower(ctx context.Context, payload []byte) {
	cmd, err := v1.ParsePowerCommand(payload)
	if err != nil {
		log.Error(err, "Dropping malformed power command")
		return
	}

	a.powered.Store(cmd.Running)
	if cmd.Running {
		if err := a.subsystems.PowerOn(ctx); err != nil {
			log.Error(err, "Failed to power on subsystems")
		}
		return
	}
	if err := a.subsystems.PowerOff(ctx); err != nil {
		log.Error(err, "Failed to power off subsystems")
	}
}

func (a *Agent) handleMission(ctx context.Context, payload []byte) {
	cmd, err := v1.ParseMissionCommand(payload)
	if err != nil {
		var unknown *v1.ErrUnknownCommand
		if errors.As(err, &unknown) {
			log.Info("Dropping unknown mission command", "type", unknown.Type)
		} else {
			log.Error(err, "Dropping malformed mission command")
		}
		return
	}

	switch cmd.Type {
	case v1.MissionStart:
		a.startMission(ctx, cmd.CycleID)
	case v1.MissionPause:
		if err := a.machine.Pause(ctx); err != nil {
			log.Error(err, "Failed to pause mission")
		} else {
			log.Info("Mission pause requested", "agv", a.agvID)
		}
	case v1.MissionMove:
		if !a.powered.Load() {
			log.Info("Ignoring manual move, subsystems powered off", "direction", cmd.Direction)
			return
		}
		if err := a.subsystems.Drive(ctx, cmd.Direction); err != nil {
			log.Error(err, "Manual move failed", "direction", cmd.Direction)
		}
	}
}

// startMission starts the lap goroutine. Duplicate starts while a lap is
// running are no-ops.
func (a *Agent) startMission(ctx context.Context, cycleID string) {
	started, err := a.machine.Start(ctx)
	if err != nil {
		log.Error(err, "Failed to start mission")
		return
	}
	if !started {
		log.Info("Mission already running, ignoring duplicate start", "cycle", cycleID)
		return
	}

	if cycleID == "" {
		cycleID = cycleid.New(time.Now())
		log.Info("Start command carried no cycle id, minted one", "cycle", cycleID)
	}

	log.Info("Mission started", "agv", a.agvID, "cycle", cycleID)
	a.missions.Add(1)
	go func() {
		defer a.missions.Done()
		if err := a.runner.RunCycle(ctx, cycleID); err != nil {
			log.Error(err, "Mission cycle failed", "cycle", cycleID)
		}
	}()
}

// handleZoneActions performs a derived actuation batch sequentially.
func (a *Agent) handleZoneActions(ctx context.Context, payload []byte) {
	batch, err := v1.ParseZoneActionPayload(payload)
	if err != nil {
		log.Error(err, "Dropping malformed zone action payload")
		return
	}
	if !a.powered.Load() {
		log.Info("Ignoring zone actions, subsystems powered off", "commands", len(batch.Commands))
		return
	}

	for _, cmd := range batch.Commands {
		if cmd.Zone == "" || !cmd.Action.Valid() {
			log.Info("Skipping invalid zone command", "zone", cmd.Zone, "action", cmd.Action)
			continue
		}
		if err := a.subsystems.Actuate(ctx, cmd.Zone, cmd.Action); err != nil {
			log.Error(err, "Zone actuation failed", "zone", cmd.Zone, "action", cmd.Action)
		}
	}
}
