package hal

import (
	"context"
	"sync"
	"time"

	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/log"
)

// Simulator is an in-process Subsystems implementation. Every operation
// succeeds after an optional delay; calls are recorded for inspection.
type Simulator struct {
	// MoveDelay is slept in MoveTo to mimic travel time.
	MoveDelay time.Duration

	mu      sync.Mutex
	powered bool
	calls   []string
}

var _ Subsystems = (*Simulator)(nil)

func NewSimulator() *Simulator {
	return &Simulator{}
}

func (s *Simulator) PowerOn(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.powered {
		s.powered = true
		log.Info("Subsystems powered on")
	}
	s.calls = append(s.calls, "power_on")
	return nil
}

func (s *Simulator) PowerOff(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.powered {
		s.powered = false
		log.Info("Subsystems powered off")
	}
	s.calls = append(s.calls, "power_off")
	return nil
}

func (s *Simulator) Drive(ctx context.Context, direction string) error {
	s.mu.Lock()
	s.calls = append(s.calls, "drive:"+direction)
	s.mu.Unlock()
	log.Info("Manual jog", "direction", direction)
	return nil
}

func (s *Simulator) MoveTo(ctx context.Context, node string) error {
	if s.MoveDelay > 0 {
		select {
		case <-time.After(s.MoveDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	s.calls = append(s.calls, "move_to:"+node)
	s.mu.Unlock()
	log.Info("Arrived at node", "node", node)
	return nil
}

func (s *Simulator) Actuate(ctx context.Context, zone string, action v1.Action) error {
	s.mu.Lock()
	s.calls = append(s.calls, "actuate:"+zone+":"+string(action))
	s.mu.Unlock()
	log.Info("Actuated zone", "zone", zone, "action", action)
	return nil
}

// Powered reports the simulated power state.
func (s *Simulator) Powered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.powered
}

// Calls returns a copy of the recorded call log.
func (s *Simulator) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}
