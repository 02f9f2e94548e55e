package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrisight-io/agrisight/internal/server/storage"
	"github.com/agrisight-io/agrisight/internal/server/store"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/mqtt"
)

// fakeBroker records publishes instead of talking to a broker.
type fakeBroker struct {
	mu        sync.Mutex
	published []publishedMessage
}

type publishedMessage struct {
	topic   string
	payload []byte
}

func (f *fakeBroker) Start(ctx context.Context) error                { return nil }
func (f *fakeBroker) Disconnect(ctx context.Context)                 {}
func (f *fakeBroker) AwaitConnection(ctx context.Context) error      { return nil }
func (f *fakeBroker) Unsubscribe(ctx context.Context, t string) error { return nil }

func (f *fakeBroker) Subscribe(ctx context.Context, topic string, qos int, handler mqtt.MessageHandler) error {
	return nil
}

func (f *fakeBroker) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{topic: topic, payload: payload})
	return nil
}

func (f *fakeBroker) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.published))
	for i, m := range f.published {
		out[i] = m.topic
	}
	return out
}

// fakeCompleter answers with the action the instruction demands for the
// observation's verdict.
type fakeCompleter struct{}

func (fakeCompleter) Complete(ctx context.Context, system, user, imageURL string) (string, error) {
	var payload struct {
		Node            string        `json:"node"`
		DetectionResult v1.YoloResult `json:"detection_result"`
	}
	if err := json.Unmarshal([]byte(user), &payload); err != nil {
		return "", err
	}
	action := map[v1.YoloResult]v1.Action{
		v1.ResultNormal:   v1.ActionSupplyFertilizer,
		v1.ResultAbnormal: v1.ActionSpray,
		v1.ResultUnknown:  v1.ActionInspectManually,
	}[payload.DetectionResult]
	return fmt.Sprintf(`{"task_list":[{"node":%q,"action":%q,"reason":"verdict-based decision"}],"summary_report":"node %s assessed"}`,
		payload.Node, action, payload.Node), nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeBroker) {
	t.Helper()
	broker := &fakeBroker{}
	s := newServer("127.0.0.1:0", broker, storage.NewMemoryProvider(), store.NewMemoryStore(), fakeCompleter{}, "agv")
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return ts, broker
}

func doJSON(t *testing.T, method, url string, body io.Reader) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, body)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func uploadCycle(t *testing.T, ts *httptest.Server, cycleID string) map[string]any {
	t.Helper()

	payload := map[string]any{
		"cycle_id":  cycleID,
		"agv_id":    "AGV1",
		"timestamp": "2025-12-09 16:30:00",
		"observations": []map[string]any{
			{"node": "green", "yolo": map[string]any{"result": "normal", "confidence": 0.95}},
			{"node": "purple", "yolo": map[string]any{"result": "normal", "confidence": 0.88}},
			{"node": "blue", "yolo": map[string]any{"result": "abnormal", "confidence": 0.91}},
			{"node": "orange", "yolo": map[string]any{"result": "abnormal", "confidence": 0.84}},
		},
	}
	payloadBytes, err := json.Marshal(payload)
	require.NoError(t, err)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("payload", string(payloadBytes)))
	for _, node := range []string{"green", "purple", "blue", "orange"} {
		fw, err := mw.CreateFormFile("images", node+".jpg")
		require.NoError(t, err)
		_, err = fw.Write([]byte{0xff, 0xd8, 0xff})
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/agv/upload_observation", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func TestRunStateRoundTrip(t *testing.T) {
	ts, broker := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/agv/run?agv_id=AGV1", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["running"], "never-seen AGV defaults to stopped")

	status, body = doJSON(t, http.MethodPost, ts.URL+"/agv/run?agv_id=AGV1&running=true", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sent", body["status"])
	assert.Equal(t, "agv/AGV1/run", body["topic"])

	status, body = doJSON(t, http.MethodGet, ts.URL+"/agv/run?agv_id=AGV1", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["running"])

	assert.Contains(t, broker.topics(), "agv/AGV1/run")
}

func TestStartMissionMintsCycleID(t *testing.T) {
	ts, broker := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/agv/start?agv_id=AGV1", nil)
	require.Equal(t, http.StatusOK, status)
	first := body["cycle_id"].(string)
	assert.NotEmpty(t, first)

	_, body = doJSON(t, http.MethodPost, ts.URL+"/agv/start?agv_id=AGV1", nil)
	assert.NotEqual(t, first, body["cycle_id"], "each start mints a fresh cycle id")

	assert.Contains(t, broker.topics(), "agv/AGV1/cmd")
}

func TestStartMissionAcceptsJSONBody(t *testing.T) {
	ts, broker := newTestServer(t)

	status, body := doJSON(t, http.MethodPost, ts.URL+"/agv/start",
		strings.NewReader(`{"agv_id":"AGV2"}`))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "AGV2", body["agv_id"])
	assert.NotEmpty(t, body["cycle_id"])
	assert.Contains(t, broker.topics(), "agv/AGV2/cmd")

	// Neither query param nor body names the vehicle.
	status, body = doJSON(t, http.MethodPost, ts.URL+"/agv/start", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["detail"], "agv_id")
}

func TestManualMoveGatedByPower(t *testing.T) {
	ts, _ := newTestServer(t)

	move := func() map[string]any {
		_, body := doJSON(t, http.MethodPost, ts.URL+"/agv/manual_move",
			strings.NewReader(`{"agv_id":"AGV1","direction":"left"}`))
		return body
	}

	assert.Equal(t, "ignored", move()["status"])

	_, _ = doJSON(t, http.MethodPost, ts.URL+"/agv/run?agv_id=AGV1&running=true", nil)
	body := move()
	assert.Equal(t, "sent", body["status"])
	assert.Equal(t, "left", body["direction"])
}

func TestUploadObservationEndToEnd(t *testing.T) {
	ts, _ := newTestServer(t)
	cycleID := "2025_12_09_1630_0badf00d"

	body := uploadCycle(t, ts, cycleID)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, cycleID, body["cycle_id"])
	assert.Len(t, body["uploaded"], 4)
	assert.Len(t, body["llm_preview"], 4)

	// Task list is ready with all four nodes mapped per verdict.
	status, tasks := doJSON(t, http.MethodGet, ts.URL+"/agv/get_task_list?cycle_id="+cycleID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", tasks["status"])
	taskList := tasks["task_list"].([]any)
	require.Len(t, taskList, 4)

	byNode := map[string]string{}
	for _, raw := range taskList {
		task := raw.(map[string]any)
		byNode[task["node"].(string)] = task["raw_action"].(string)
	}
	assert.Equal(t, "supply_fertilizer", byNode["green"])
	assert.Equal(t, "supply_fertilizer", byNode["purple"])
	assert.Equal(t, "spray", byNode["blue"])
	assert.Equal(t, "spray", byNode["orange"])

	// Latest cycle resolves to the uploaded one.
	status, latest := doJSON(t, http.MethodGet, ts.URL+"/agv/latest_cycle", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, cycleID, latest["cycle_id"])
}

func TestGetTaskListPendingForUnknownCycle(t *testing.T) {
	ts, _ := newTestServer(t)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/agv/get_task_list?cycle_id=2025_12_09_1630_missing0", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", body["status"])
	assert.Empty(t, body["task_list"])
}

func TestUploadRejectsCountMismatch(t *testing.T) {
	ts, _ := newTestServer(t)

	payload := `{"cycle_id":"2025_12_09_1630_0badf00d","agv_id":"AGV1","timestamp":"2025-12-09 16:30:00","observations":[{"node":"green","yolo":{"result":"normal","confidence":0.9}}]}`

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("payload", payload))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.URL+"/agv/upload_observation", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetAGVDataResignsLinks(t *testing.T) {
	ts, _ := newTestServer(t)
	cycleID := "2025_12_09_1630_0badf00d"
	uploadCycle(t, ts, cycleID)

	read := func() string {
		status, body := doJSON(t, http.MethodGet, ts.URL+"/agv/get_agv_data?cycle_id="+cycleID, nil)
		require.Equal(t, http.StatusOK, status)
		agv := body["agv"].(map[string]any)
		obs := agv["observations"].([]any)
		return obs[0].(map[string]any)["image_url"].(string)
	}

	first, second := read(), read()
	assert.NotEqual(t, first, second, "each read derives a fresh signed link")
}

func TestGetImageURL(t *testing.T) {
	ts, _ := newTestServer(t)
	cycleID := "2025_12_09_1630_0badf00d"
	uploadCycle(t, ts, cycleID)

	status, body := doJSON(t, http.MethodGet, ts.URL+"/agv/get_image_url?cycle_id="+cycleID+"&node=green", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["image_url"])

	status, _ = doJSON(t, http.MethodGet, ts.URL+"/agv/get_image_url?cycle_id="+cycleID+"&node=red", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestPublishZoneActions(t *testing.T) {
	ts, broker := newTestServer(t)
	cycleID := "2025_12_09_1630_0badf00d"
	uploadCycle(t, ts, cycleID)

	url := ts.URL + "/agv/publish_zone_actions?agv_id=AGV1&cycle_id=" + cycleID

	// Powered-off AGV: ignored, no publish.
	status, body := doJSON(t, http.MethodPost, url, nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ignored", body["status"])
	assert.NotContains(t, broker.topics(), "agv/AGV1/zone_action")

	_, _ = doJSON(t, http.MethodPost, ts.URL+"/agv/run?agv_id=AGV1&running=true", nil)

	status, body = doJSON(t, http.MethodPost, url, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "sent", body["status"])
	assert.Equal(t, float64(4), body["sent"])
	assert.Contains(t, broker.topics(), "agv/AGV1/zone_action")

	// Unanalyzed cycle: pending, nothing published for it.
	status, body = doJSON(t, http.MethodPost, ts.URL+"/agv/publish_zone_actions?agv_id=AGV1&cycle_id=2025_12_09_1700_00000000", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", body["status"])
}
