package store

import (
	"context"
	"sync"

	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
)

type memoryStore struct {
	mu     sync.RWMutex
	cycles map[string]*v1.CycleDocument
}

// NewMemoryStore returns an in-process Store. Used in tests and as the
// default driver for single-node deployments without Postgres.
func NewMemoryStore() Store {
	return &memoryStore{
		cycles: make(map[string]*v1.CycleDocument),
	}
}

func (s *memoryStore) MergeReport(ctx context.Context, report *v1.CycleReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.cycles[report.CycleID]
	if !ok {
		doc = &v1.CycleDocument{}
		s.cycles[report.CycleID] = doc
	}
	doc.AGV = report
	return nil
}

func (s *memoryStore) MergeAnalysis(ctx context.Context, cycleID string, analysis *v1.Analysis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.cycles[cycleID]
	if !ok {
		doc = &v1.CycleDocument{}
		s.cycles[cycleID] = doc
	}
	doc.LLM = analysis
	return nil
}

func (s *memoryStore) Get(ctx context.Context, cycleID string) (*v1.CycleDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.cycles[cycleID]
	if !ok {
		return nil, ErrNotFound
	}

	// Deep copy so callers cannot mutate stored state through the returned
	// document, including its observation slice.
	return doc.Clone(), nil
}

func (s *memoryStore) LatestCycleID(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bestID, bestTS string
	for id, doc := range s.cycles {
		if doc.AGV == nil {
			continue
		}
		ts := doc.AGV.Timestamp
		if bestID == "" || ts > bestTS || (ts == bestTS && id > bestID) {
			bestID, bestTS = id, ts
		}
	}

	if bestID == "" {
		return "", ErrNotFound
	}
	return bestID, nil
}

func (s *memoryStore) Close() {}
