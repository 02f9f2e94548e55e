// Package query serves read access to stored cycles: latest cycle lookup,
// task lists with display labels, and documents with freshly signed evidence
// links.
package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/agrisight-io/agrisight/internal/pkg/apierr"
	"github.com/agrisight-io/agrisight/internal/server/storage"
	"github.com/agrisight-io/agrisight/internal/server/store"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
)

// Task list read statuses. Pending is a valid state, not an error: the cycle
// either has no analysis yet or does not exist at all.
const (
	StatusPending = "pending"
	StatusReady   = "ready"
)

// actionLabels maps machine-readable actions to the operator-facing label.
// Unmapped actions fall back to a manual-inspection label so a new action
// code never renders blank in the console.
var actionLabels = map[v1.Action]string{
	v1.ActionSupplyFertilizer: "Supply fertilizer (nutrient management)",
	v1.ActionSpray:            "Spray treatment (pest control)",
}

const fallbackLabel = "Inspection required"

// TaskView is one task prepared for display. RawAction keeps the machine
// code so robot-facing consumers read the same payload.
type TaskView struct {
	Node      string    `json:"node"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
	RawAction v1.Action `json:"raw_action"`
}

// TaskListResult is the outcome of a task-list read.
type TaskListResult struct {
	CycleID  string            `json:"cycle_id"`
	Status   string            `json:"status"`
	TaskList []TaskView        `json:"task_list"`
	Summary  map[string]string `json:"summary"`
}

// Service answers cycle reads.
type Service struct {
	cycles  store.Store
	storage storage.Provider
}

func New(cycles store.Store, storageProvider storage.Provider) *Service {
	return &Service{
		cycles:  cycles,
		storage: storageProvider,
	}
}

// LatestCycleID returns the most recent cycle id, or a not-found error when
// no cycle has been ingested yet.
func (s *Service) LatestCycleID(ctx context.Context) (string, error) {
	id, err := s.cycles.LatestCycleID(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return "", apierr.NotFound("no cycles stored")
	}
	if err != nil {
		return "", apierr.Dependency(err, "failed to query latest cycle")
	}
	return id, nil
}

// TaskList reads a cycle's analysis. A missing cycle and a cycle without
// analysis both degrade to pending with an empty list; this read never 404s.
func (s *Service) TaskList(ctx context.Context, cycleID string) (*TaskListResult, error) {
	result := &TaskListResult{
		CycleID:  cycleID,
		Status:   StatusPending,
		TaskList: []TaskView{},
		Summary:  map[string]string{},
	}

	doc, err := s.cycles.Get(ctx, cycleID)
	if errors.Is(err, store.ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, apierr.Dependency(err, "failed to read cycle")
	}
	if doc.LLM == nil {
		return result, nil
	}

	result.Status = StatusReady
	for _, task := range doc.LLM.TaskList {
		label, ok := actionLabels[task.Action]
		if !ok {
			label = fallbackLabel
		}
		result.TaskList = append(result.TaskList, TaskView{
			Node:      task.Node,
			Action:    label,
			Reason:    task.Reason,
			RawAction: task.Action,
		})
	}
	if doc.LLM.Summary != nil {
		result.Summary = doc.LLM.Summary
	}
	return result, nil
}

// Observations returns the cycle document with every stored evidence link
// replaced by a freshly signed one, so reads stay actionable no matter how
// old the cycle is. An empty cycleID selects the latest cycle.
func (s *Service) Observations(ctx context.Context, cycleID string) (*v1.CycleDocument, error) {
	if cycleID == "" {
		latest, err := s.LatestCycleID(ctx)
		if err != nil {
			return nil, err
		}
		cycleID = latest
	}

	doc, err := s.cycles.Get(ctx, cycleID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apierr.NotFound("cycle %q not found", cycleID)
	}
	if err != nil {
		return nil, apierr.Dependency(err, "failed to read cycle")
	}

	if doc.AGV != nil {
		for i := range doc.AGV.Observations {
			node := doc.AGV.Observations[i].Node
			signed, err := s.storage.PresignedURL(ctx, storage.ObjectKey(cycleID, node), storage.SignedURLTTL)
			if err != nil {
				return nil, apierr.Dependency(err, fmt.Sprintf("failed to sign image link for node %q", node))
			}
			doc.AGV.Observations[i].ImageURL = signed
		}
	}
	return doc, nil
}

// ImageURL returns one freshly signed evidence link, or a not-found error
// when the object was never stored.
func (s *Service) ImageURL(ctx context.Context, cycleID, node string) (string, error) {
	key := storage.ObjectKey(cycleID, node)

	ok, err := s.storage.Exists(ctx, key)
	if err != nil {
		return "", apierr.Dependency(err, "failed to check stored image")
	}
	if !ok {
		return "", apierr.NotFound("no image stored for cycle %q node %q", cycleID, node)
	}

	signed, err := s.storage.PresignedURL(ctx, key, storage.SignedURLTTL)
	if err != nil {
		return "", apierr.Dependency(err, "failed to sign image link")
	}
	return signed, nil
}
