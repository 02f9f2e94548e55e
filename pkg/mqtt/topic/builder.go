package topic

import (
	"fmt"
)

// Segments of the AGV protocol. These are the contract between the backend
// and the robot agents; changing them breaks deployed robots.
const (
	// SegmentRun carries power on/off commands.
	// Pattern: {root}/{agvID}/run
	SegmentRun = "run"

	// SegmentCmd carries mission commands (start, pause, move).
	// Pattern: {root}/{agvID}/cmd
	SegmentCmd = "cmd"

	// SegmentZoneAction carries derived per-node actuation batches.
	// Pattern: {root}/{agvID}/zone_action
	SegmentZoneAction = "zone_action"
)

// Builder constructs topic strings for a single namespace root, keeping the
// topology definition in one place.
type Builder struct {
	root string
}

// NewBuilder creates a Builder with the specified root namespace (e.g. "agv").
func NewBuilder(root string) *Builder {
	return &Builder{root: root}
}

// Run returns the power-command topic for an AGV.
// Direction: backend -> robot.
func (b *Builder) Run(agvID string) string {
	return b.build(agvID, SegmentRun)
}

// Cmd returns the mission-command topic for an AGV.
// Direction: backend -> robot.
func (b *Builder) Cmd(agvID string) string {
	return b.build(agvID, SegmentCmd)
}

// ZoneAction returns the per-node action batch topic for an AGV.
// Direction: backend -> robot.
func (b *Builder) ZoneAction(agvID string) string {
	return b.build(agvID, SegmentZoneAction)
}

// build constructs the final topic string.
// Pattern: {root}/{agvID}/{segment}
func (b *Builder) build(agvID, segment string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, agvID, segment)
}
