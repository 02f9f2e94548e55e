// Package store persists per-cycle documents. A document has two field
// groups written by independent pipelines: the robot's observation report
// and the completion-derived analysis. Merges touch only their own group so
// concurrent writers to the same cycle never clobber each other; there is no
// multi-group transaction.
package store

import (
	"context"
	"errors"

	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
)

// ErrNotFound is returned for cycle ids with no stored document.
var ErrNotFound = errors.New("cycle not found")

// Store is the cycle document store.
type Store interface {
	// MergeReport writes the observation field group of the report's cycle,
	// creating the document if needed and replacing any prior report.
	MergeReport(ctx context.Context, report *v1.CycleReport) error

	// MergeAnalysis writes the analysis field group for cycleID, creating
	// the document if needed and replacing any prior analysis. The two
	// groups merge in either order.
	MergeAnalysis(ctx context.Context, cycleID string, analysis *v1.Analysis) error

	// Get returns the full document for cycleID, or ErrNotFound.
	Get(ctx context.Context, cycleID string) (*v1.CycleDocument, error)

	// LatestCycleID returns the id of the cycle with the most recent report
	// timestamp, or ErrNotFound when nothing is stored. Equal timestamps are
	// broken deterministically: lexicographically greatest id wins.
	LatestCycleID(ctx context.Context) (string, error)

	// Close releases the store's resources.
	Close()
}
