package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisight-io/agrisight/internal/pkg/apierr"
	"github.com/agrisight-io/agrisight/internal/server/state"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/mqtt"
	mqtttopic "github.com/agrisight-io/agrisight/pkg/mqtt/topic"
)

type published struct {
	topic   string
	qos     int
	payload []byte
}

// fakeClient records publishes and optionally fails them.
type fakeClient struct {
	published []published
	failWith  error
}

var _ mqtt.Client = (*fakeClient)(nil)

func (f *fakeClient) Start(ctx context.Context) error           { return nil }
func (f *fakeClient) Disconnect(ctx context.Context)            {}
func (f *fakeClient) AwaitConnection(ctx context.Context) error { return nil }
func (f *fakeClient) Unsubscribe(ctx context.Context, topic string) error {
	return nil
}
func (f *fakeClient) Subscribe(ctx context.Context, topic string, qos int, h mqtt.MessageHandler) error {
	return nil
}
func (f *fakeClient) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published = append(f.published, published{topic: topic, qos: qos, payload: payload})
	return nil
}

func newTestRelay(mc mqtt.Client) *Relay {
	return New(mc, mqtttopic.NewBuilder("agv"), state.NewMemoryStore())
}

func TestSetRunThenGetRun(t *testing.T) {
	mc := &fakeClient{}
	r := newTestRelay(mc)
	ctx := context.Background()

	topic, err := r.SetRun(ctx, "AGV1", true)
	require.NoError(t, err)
	assert.Equal(t, "agv/AGV1/run", topic)
	assert.True(t, r.GetRun("AGV1"))

	require.Len(t, mc.published, 1)
	assert.Equal(t, 1, mc.published[0].qos)

	var cmd v1.PowerCommand
	require.NoError(t, json.Unmarshal(mc.published[0].payload, &cmd))
	assert.Equal(t, v1.PowerCommand{AGVID: "AGV1", Running: true}, cmd)

	_, err = r.SetRun(ctx, "AGV1", false)
	require.NoError(t, err)
	assert.False(t, r.GetRun("AGV1"))
}

func TestGetRunUnknownID(t *testing.T) {
	r := newTestRelay(&fakeClient{})
	assert.False(t, r.GetRun("never-seen"))
}

func TestSetRunPublishFailure(t *testing.T) {
	mc := &fakeClient{failWith: errors.New("broker unreachable")}
	r := newTestRelay(mc)

	_, err := r.SetRun(context.Background(), "AGV1", true)
	require.Error(t, err)
	assert.Equal(t, apierr.KindDependency, apierr.KindOf(err))
}

func TestStartMission(t *testing.T) {
	mc := &fakeClient{}
	r := newTestRelay(mc)

	cycleID, topic, err := r.StartMission(context.Background(), "AGV1")
	require.NoError(t, err)
	assert.Equal(t, "agv/AGV1/cmd", topic)
	assert.NotEmpty(t, cycleID)

	var cmd v1.MissionCommand
	require.NoError(t, json.Unmarshal(mc.published[0].payload, &cmd))
	assert.Equal(t, v1.MissionStart, cmd.Type)
	assert.Equal(t, cycleID, cmd.CycleID)

	// Two starts in the same minute mint distinct cycles.
	second, _, err := r.StartMission(context.Background(), "AGV1")
	require.NoError(t, err)
	assert.NotEqual(t, cycleID, second)
}

func TestPauseMission(t *testing.T) {
	mc := &fakeClient{}
	r := newTestRelay(mc)

	topic, err := r.PauseMission(context.Background(), "AGV1")
	require.NoError(t, err)
	assert.Equal(t, "agv/AGV1/cmd", topic)

	var cmd v1.MissionCommand
	require.NoError(t, json.Unmarshal(mc.published[0].payload, &cmd))
	assert.Equal(t, v1.MissionPause, cmd.Type)
	assert.Empty(t, cmd.CycleID)
}

func TestManualMoveIgnoredWhenOff(t *testing.T) {
	mc := &fakeClient{}
	r := newTestRelay(mc)
	ctx := context.Background()

	sent, _, err := r.ManualMove(ctx, "AGV1", "left")
	require.NoError(t, err)
	assert.False(t, sent)
	assert.Empty(t, mc.published)

	_, err = r.SetRun(ctx, "AGV1", true)
	require.NoError(t, err)

	sent, topic, err := r.ManualMove(ctx, "AGV1", "left")
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "agv/AGV1/cmd", topic)
}

func TestPublishZoneActions(t *testing.T) {
	mc := &fakeClient{}
	r := newTestRelay(mc)
	ctx := context.Background()

	commands := []v1.ZoneCommand{
		{Zone: "green", Action: v1.ActionSupplyFertilizer},
		{Zone: "blue", Action: v1.ActionSpray},
	}

	sent, _, err := r.PublishZoneActions(ctx, "AGV1", commands)
	require.NoError(t, err)
	assert.False(t, sent, "must be dropped while powered off")

	_, err = r.SetRun(ctx, "AGV1", true)
	require.NoError(t, err)

	sent, topic, err := r.PublishZoneActions(ctx, "AGV1", commands)
	require.NoError(t, err)
	assert.True(t, sent)
	assert.Equal(t, "agv/AGV1/zone_action", topic)

	last := mc.published[len(mc.published)-1]
	assert.True(t, strings.HasSuffix(last.topic, "/zone_action"))

	var payload v1.ZoneActionPayload
	require.NoError(t, json.Unmarshal(last.payload, &payload))
	assert.Equal(t, commands, payload.Commands)
}
