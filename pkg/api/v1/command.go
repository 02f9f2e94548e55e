package v1

import (
	"encoding/json"
	"fmt"
)

// PowerCommand is published on agv/{id}/run. The backend stores the same
// value as last-known intent; the robot applies it to its subsystems.
type PowerCommand struct {
	AGVID   string `json:"agv_id"`
	Running bool   `json:"running"`
}

// Mission command types carried on agv/{id}/cmd.
const (
	MissionStart = "start"
	MissionPause = "pause"
	MissionMove  = "move"
)

// MissionCommand is the tagged union published on agv/{id}/cmd.
type MissionCommand struct {
	Type      string `json:"type"`
	CycleID   string `json:"cycle_id,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// ZoneCommand is one derived actuation step for the robot.
type ZoneCommand struct {
	Zone   string `json:"zone"`
	Action Action `json:"action"`
}

// ZoneActionPayload is published on agv/{id}/zone_action.
type ZoneActionPayload struct {
	Commands []ZoneCommand `json:"commands"`
}

// ErrUnknownCommand is returned by ParseMissionCommand for payloads whose tag
// is not recognized. Listeners log and drop these; they must never crash the
// listener loop.
type ErrUnknownCommand struct {
	Type string
}

func (e *ErrUnknownCommand) Error() string {
	return fmt.Sprintf("unknown mission command type %q", e.Type)
}

// ParseMissionCommand decodes a cmd-topic payload with exhaustive tag
// matching. Unknown tags yield *ErrUnknownCommand so callers can distinguish
// "drop and log" from a malformed payload.
func ParseMissionCommand(payload []byte) (*MissionCommand, error) {
	var cmd MissionCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("malformed mission command: %w", err)
	}

	switch cmd.Type {
	case MissionStart, MissionPause, MissionMove:
		return &cmd, nil
	default:
		return nil, &ErrUnknownCommand{Type: cmd.Type}
	}
}

// ParsePowerCommand decodes a run-topic payload.
func ParsePowerCommand(payload []byte) (*PowerCommand, error) {
	var cmd PowerCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("malformed power command: %w", err)
	}
	return &cmd, nil
}

// ParseZoneActionPayload decodes a zone_action-topic payload.
func ParseZoneActionPayload(payload []byte) (*ZoneActionPayload, error) {
	var p ZoneActionPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("malformed zone action payload: %w", err)
	}
	return &p, nil
}
