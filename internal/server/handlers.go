package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agrisight-io/agrisight/internal/pkg/apierr"
	"github.com/agrisight-io/agrisight/internal/server/ingest"
	"github.com/agrisight-io/agrisight/internal/server/query"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/log"
)

// maxUploadBytes bounds an observation upload (payload plus images).
const maxUploadBytes = 64 << 20

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	agv := r.PathPrefix("/agv").Subrouter()
	agv.HandleFunc("/run", s.handleSetRun).Methods(http.MethodPost)
	agv.HandleFunc("/run", s.handleGetRun).Methods(http.MethodGet)
	agv.HandleFunc("/start", s.handleStartMission).Methods(http.MethodPost)
	agv.HandleFunc("/pause", s.handlePauseMission).Methods(http.MethodPost)
	agv.HandleFunc("/manual_move", s.handleManualMove).Methods(http.MethodPost)
	agv.HandleFunc("/publish_zone_actions", s.handlePublishZoneActions).Methods(http.MethodPost)
	agv.HandleFunc("/upload_observation", s.handleUploadObservation).Methods(http.MethodPost)
	agv.HandleFunc("/get_task_list", s.handleGetTaskList).Methods(http.MethodGet)
	agv.HandleFunc("/latest_cycle", s.handleLatestCycle).Methods(http.MethodGet)
	agv.HandleFunc("/get_agv_data", s.handleGetAGVData).Methods(http.MethodGet)
	agv.HandleFunc("/get_image_url", s.handleGetImageURL).Methods(http.MethodGet)

	r.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", handleHealthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleSetRun(w http.ResponseWriter, r *http.Request) {
	agvID := r.URL.Query().Get("agv_id")
	if agvID == "" {
		writeError(w, apierr.Client("agv_id is required"))
		return
	}
	running, err := strconv.ParseBool(r.URL.Query().Get("running"))
	if err != nil {
		writeError(w, apierr.Client("running must be a boolean"))
		return
	}

	topic, err := s.relay.SetRun(r.Context(), agvID, running)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "sent",
		"agv_id":  agvID,
		"running": running,
		"topic":   topic,
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	agvID := r.URL.Query().Get("agv_id")
	if agvID == "" {
		writeError(w, apierr.Client("agv_id is required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agv_id":  agvID,
		"running": s.relay.GetRun(agvID),
	})
}

func (s *Server) handleStartMission(w http.ResponseWriter, r *http.Request) {
	// agv_id arrives as a query param or an optional JSON body.
	agvID := r.URL.Query().Get("agv_id")
	if agvID == "" {
		var body struct {
			AGVID string `json:"agv_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			agvID = body.AGVID
		}
	}
	if agvID == "" {
		writeError(w, apierr.Client("agv_id is required"))
		return
	}

	cycleID, topic, err := s.relay.StartMission(r.Context(), agvID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "sent",
		"agv_id":   agvID,
		"cycle_id": cycleID,
		"topic":    topic,
	})
}

func (s *Server) handlePauseMission(w http.ResponseWriter, r *http.Request) {
	agvID := r.URL.Query().Get("agv_id")
	if agvID == "" {
		writeError(w, apierr.Client("agv_id is required"))
		return
	}

	topic, err := s.relay.PauseMission(r.Context(), agvID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "sent",
		"agv_id": agvID,
		"topic":  topic,
	})
}

func (s *Server) handleManualMove(w http.ResponseWriter, r *http.Request) {
	var cmd struct {
		AGVID     string `json:"agv_id"`
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeError(w, apierr.Client("invalid manual_move body: %v", err))
		return
	}
	if cmd.AGVID == "" || cmd.Direction == "" {
		writeError(w, apierr.Client("agv_id and direction are required"))
		return
	}

	sent, topic, err := s.relay.ManualMove(r.Context(), cmd.AGVID, cmd.Direction)
	if err != nil {
		writeError(w, err)
		return
	}
	if !sent {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ignored",
			"reason": "AGV STOPPED",
			"agv_id": cmd.AGVID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "sent",
		"agv_id":    cmd.AGVID,
		"direction": cmd.Direction,
		"topic":     topic,
	})
}

// handlePublishZoneActions turns a ready task list into per-zone actuation
// commands on the zone_action topic. Machine codes go to the robot; display
// labels never leave the query layer.
func (s *Server) handlePublishZoneActions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	agvID, cycleID := q.Get("agv_id"), q.Get("cycle_id")
	if agvID == "" || cycleID == "" {
		writeError(w, apierr.Client("agv_id and cycle_id are required"))
		return
	}

	if !s.relay.GetRun(agvID) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ignored",
			"reason": "AGV STOPPED",
			"agv_id": agvID,
		})
		return
	}

	tasks, err := s.query.TaskList(r.Context(), cycleID)
	if err != nil {
		writeError(w, err)
		return
	}
	if tasks.Status != query.StatusReady {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "pending",
			"cycle_id":  cycleID,
			"task_list": []any{},
		})
		return
	}

	commands := make([]v1.ZoneCommand, 0, len(tasks.TaskList))
	for _, task := range tasks.TaskList {
		if task.Node == "" || task.RawAction == "" {
			continue
		}
		commands = append(commands, v1.ZoneCommand{Zone: task.Node, Action: task.RawAction})
	}
	if len(commands) == 0 {
		writeError(w, apierr.Client("task list has no publishable commands"))
		return
	}

	sent, topic, err := s.relay.PublishZoneActions(r.Context(), agvID, commands)
	if err != nil {
		writeError(w, err)
		return
	}
	if !sent {
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "ignored",
			"reason": "AGV STOPPED",
			"agv_id": agvID,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "sent",
		"topic":    topic,
		"sent":     len(commands),
		"commands": commands,
	})
}

// handleUploadObservation ingests a cycle's observations and, if storage
// succeeds, runs analysis on the just-merged report.
func (s *Server) handleUploadObservation(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, apierr.Client("invalid multipart body: %v", err))
		return
	}

	payload := r.FormValue("payload")
	if payload == "" {
		writeError(w, apierr.Client("payload form field is required"))
		return
	}
	var req ingest.Request
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		writeError(w, apierr.Client("invalid payload JSON: %v", err))
		return
	}

	var images []ingest.Image
	if r.MultipartForm != nil {
		for _, header := range r.MultipartForm.File["images"] {
			file, err := header.Open()
			if err != nil {
				writeError(w, apierr.Client("cannot open image %q: %v", header.Filename, err))
				return
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				writeError(w, apierr.Client("cannot read image %q: %v", header.Filename, err))
				return
			}
			images = append(images, ingest.Image{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        data,
			})
		}
	}

	result, err := s.ingest.Ingest(r.Context(), &req, images)
	if err != nil {
		writeError(w, err)
		return
	}

	previews, err := s.analysis.Analyze(r.Context(), result.Report, result.SignedURLs)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"cycle_id":    result.CycleID,
		"uploaded":    result.Uploaded,
		"llm_preview": previews,
	})
}

func (s *Server) handleGetTaskList(w http.ResponseWriter, r *http.Request) {
	cycleID := r.URL.Query().Get("cycle_id")
	if cycleID == "" {
		writeError(w, apierr.Client("cycle_id is required"))
		return
	}

	result, err := s.query.TaskList(r.Context(), cycleID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleLatestCycle(w http.ResponseWriter, r *http.Request) {
	id, err := s.query.LatestCycleID(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cycle_id": id})
}

func (s *Server) handleGetAGVData(w http.ResponseWriter, r *http.Request) {
	doc, err := s.query.Observations(r.Context(), r.URL.Query().Get("cycle_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGetImageURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cycleID, node := q.Get("cycle_id"), q.Get("node")
	if cycleID == "" || node == "" {
		writeError(w, apierr.Client("cycle_id and node are required"))
		return
	}

	url, err := s.query.ImageURL(r.Context(), cycleID, node)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"image_url": url})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error(err, "Failed to encode response body")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := apierr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error(err, "Request failed")
	} else {
		log.Info("Request rejected", "status", status, "reason", err.Error())
	}
	writeJSON(w, status, map[string]any{"detail": err.Error()})
}
