package query

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisight-io/agrisight/internal/pkg/apierr"
	"github.com/agrisight-io/agrisight/internal/server/storage"
	"github.com/agrisight-io/agrisight/internal/server/store"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
)

func seedCycle(t *testing.T, cycles store.Store, provider storage.Provider, cycleID, timestamp string, nodes ...string) {
	t.Helper()

	report := &v1.CycleReport{
		CycleID:   cycleID,
		AGVID:     "AGV1",
		Timestamp: timestamp,
	}
	for _, node := range nodes {
		key := storage.ObjectKey(cycleID, node)
		err := provider.Put(context.Background(), key, bytes.NewReader([]byte{0xff, 0xd8}), 2, "image/jpeg")
		require.NoError(t, err)
		report.Observations = append(report.Observations, v1.Observation{
			Node:     node,
			ImageURL: provider.PublicURL(key),
			Yolo:     v1.YoloVerdict{Result: v1.ResultNormal, Confidence: 0.9},
		})
	}
	require.NoError(t, cycles.MergeReport(context.Background(), report))
}

func TestLatestCycleID(t *testing.T) {
	cycles := store.NewMemoryStore()
	provider := storage.NewMemoryProvider()
	s := New(cycles, provider)

	_, err := s.LatestCycleID(context.Background())
	require.Error(t, err)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))

	seedCycle(t, cycles, provider, "2025_12_09_1500_aaaaaaaa", "2025-12-09 15:00:00", "green")
	seedCycle(t, cycles, provider, "2025_12_09_1630_bbbbbbbb", "2025-12-09 16:30:00", "green")

	id, err := s.LatestCycleID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025_12_09_1630_bbbbbbbb", id)
}

func TestTaskListPendingStates(t *testing.T) {
	cycles := store.NewMemoryStore()
	provider := storage.NewMemoryProvider()
	s := New(cycles, provider)

	// Missing cycle: pending, never an error.
	result, err := s.TaskList(context.Background(), "2025_12_09_1630_missing0")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)
	assert.Empty(t, result.TaskList)
	assert.Empty(t, result.Summary)

	// Ingested but unanalyzed cycle: also pending.
	seedCycle(t, cycles, provider, "2025_12_09_1630_cafebabe", "2025-12-09 16:30:00", "green")
	result, err = s.TaskList(context.Background(), "2025_12_09_1630_cafebabe")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, result.Status)
	assert.Empty(t, result.TaskList)
}

func TestTaskListTranslatesActions(t *testing.T) {
	cycles := store.NewMemoryStore()
	provider := storage.NewMemoryProvider()
	s := New(cycles, provider)

	cycleID := "2025_12_09_1630_cafebabe"
	seedCycle(t, cycles, provider, cycleID, "2025-12-09 16:30:00", "green", "blue", "orange")
	analysis := &v1.Analysis{
		TaskList: []v1.TaskItem{
			{Node: "green", Action: v1.ActionSupplyFertilizer, Reason: "healthy growth"},
			{Node: "blue", Action: v1.ActionSpray, Reason: "leaf spotting"},
			{Node: "orange", Action: v1.ActionInspectManually, Reason: "no verdict"},
		},
		Summary: map[string]string{"green": "fine", "blue": "suspect", "orange": "unclear"},
	}
	require.NoError(t, cycles.MergeAnalysis(context.Background(), cycleID, analysis))

	result, err := s.TaskList(context.Background(), cycleID)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, result.Status)
	require.Len(t, result.TaskList, 3)

	assert.Equal(t, "Supply fertilizer (nutrient management)", result.TaskList[0].Action)
	assert.Equal(t, v1.ActionSupplyFertilizer, result.TaskList[0].RawAction)
	assert.Equal(t, "Spray treatment (pest control)", result.TaskList[1].Action)
	assert.Equal(t, fallbackLabel, result.TaskList[2].Action, "unmapped actions fall back to the inspection label")
	assert.Equal(t, v1.ActionInspectManually, result.TaskList[2].RawAction)
	assert.Equal(t, "suspect", result.Summary["blue"])
}

func TestObservationsResignsEveryRead(t *testing.T) {
	cycles := store.NewMemoryStore()
	provider := storage.NewMemoryProvider()
	s := New(cycles, provider)

	cycleID := "2025_12_09_1630_cafebabe"
	seedCycle(t, cycles, provider, cycleID, "2025-12-09 16:30:00", "green")

	first, err := s.Observations(context.Background(), cycleID)
	require.NoError(t, err)
	second, err := s.Observations(context.Background(), cycleID)
	require.NoError(t, err)

	require.Len(t, first.AGV.Observations, 1)
	require.Len(t, second.AGV.Observations, 1)
	a, b := first.AGV.Observations[0].ImageURL, second.AGV.Observations[0].ImageURL
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b, "every read derives a fresh signed link")
}

func TestObservationsKeepStoredLinksDurable(t *testing.T) {
	cycles := store.NewMemoryStore()
	provider := storage.NewMemoryProvider()
	s := New(cycles, provider)

	cycleID := "2025_12_09_1630_cafebabe"
	seedCycle(t, cycles, provider, cycleID, "2025-12-09 16:30:00", "green")

	_, err := s.Observations(context.Background(), cycleID)
	require.NoError(t, err)

	// The stored document must still hold the durable public URL, not the
	// expiring signed link handed to the reader.
	doc, err := cycles.Get(context.Background(), cycleID)
	require.NoError(t, err)
	require.Len(t, doc.AGV.Observations, 1)
	key := storage.ObjectKey(cycleID, "green")
	assert.Equal(t, provider.PublicURL(key), doc.AGV.Observations[0].ImageURL)
}

func TestObservationsEmptyIDSelectsLatest(t *testing.T) {
	cycles := store.NewMemoryStore()
	provider := storage.NewMemoryProvider()
	s := New(cycles, provider)

	_, err := s.Observations(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))

	seedCycle(t, cycles, provider, "2025_12_09_1500_aaaaaaaa", "2025-12-09 15:00:00", "green")
	seedCycle(t, cycles, provider, "2025_12_09_1630_bbbbbbbb", "2025-12-09 16:30:00", "green")

	doc, err := s.Observations(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "2025_12_09_1630_bbbbbbbb", doc.AGV.CycleID)
}

func TestImageURL(t *testing.T) {
	cycles := store.NewMemoryStore()
	provider := storage.NewMemoryProvider()
	s := New(cycles, provider)

	cycleID := "2025_12_09_1630_cafebabe"
	seedCycle(t, cycles, provider, cycleID, "2025-12-09 16:30:00", "green")

	url, err := s.ImageURL(context.Background(), cycleID, "green")
	require.NoError(t, err)
	assert.Contains(t, url, storage.ObjectKey(cycleID, "green"))

	_, err = s.ImageURL(context.Background(), cycleID, "purple")
	require.Error(t, err)
	assert.Equal(t, apierr.KindNotFound, apierr.KindOf(err))
}
