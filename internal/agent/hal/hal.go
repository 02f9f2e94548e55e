// Package hal abstracts the vehicle hardware the mission layer drives:
// cameras, motors, and per-zone actuators. The real implementations live on
// the vehicle; this package ships a simulator for development and tests.
package hal

import (
	"context"

	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
)

// Subsystems is what the mission layer needs from the vehicle.
type Subsystems interface {
	// PowerOn brings up cameras and motor controllers. Idempotent.
	PowerOn(ctx context.Context) error

	// PowerOff releases all hardware. Idempotent.
	PowerOff(ctx context.Context) error

	// Drive performs a single manual jog in the given direction.
	Drive(ctx context.Context, direction string) error

	// MoveTo line-follows to the named inspection node and stops there.
	MoveTo(ctx context.Context, node string) error

	// Actuate performs one derived action at a zone (fertilizer, spray).
	Actuate(ctx context.Context, zone string, action v1.Action) error
}
