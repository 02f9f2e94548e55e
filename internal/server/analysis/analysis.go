// Package analysis runs each cycle's observations through the completion
// endpoint and persists the resulting task list.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/agrisight-io/agrisight/internal/pkg/apierr"
	"github.com/agrisight-io/agrisight/internal/pkg/metrics"
	"github.com/agrisight-io/agrisight/internal/server/store"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/log"
)

// Reply is the schema every completion call must satisfy.
type Reply struct {
	TaskList      []v1.TaskItem `json:"task_list"`
	SummaryReport string        `json:"summary_report"`
}

// observationPayload is the grounded request body for one completion call.
type observationPayload struct {
	CycleID         string            `json:"cycle_id"`
	Node            string            `json:"node"`
	ImageURL        string            `json:"image_url"`
	DetectionResult v1.YoloResult     `json:"detection_result"`
	Confidence      float64           `json:"confidence"`
	Prompt          string            `json:"prompt"`
	Metadata        map[string]string `json:"metadata"`
}

// Pipeline turns a cycle's observations into a persisted analysis.
type Pipeline struct {
	completer Completer
	cycles    store.Store
}

func New(completer Completer, cycles store.Store) *Pipeline {
	return &Pipeline{
		completer: completer,
		cycles:    cycles,
	}
}

// Analyze issues one completion call per observation, validates every reply,
// and replaces the cycle's analysis with the aggregate. Any failed or invalid
// reply aborts the whole cycle; the prior analysis, if any, stays untouched.
// Signed image links come from signedURLs so the endpoint can fetch evidence
// without storage credentials.
func (p *Pipeline) Analyze(ctx context.Context, report *v1.CycleReport, signedURLs map[string]string) ([]Reply, error) {
	previews := make([]Reply, 0, len(report.Observations))
	taskList := make([]v1.TaskItem, 0, len(report.Observations))
	summary := make(map[string]string, len(report.Observations))

	for _, obs := range report.Observations {
		signed, ok := signedURLs[obs.Node]
		if !ok {
			metrics.AnalysisRuns.WithLabelValues("failed").Inc()
			return nil, apierr.Validation("no signed image link for node %q", obs.Node)
		}

		reply, err := p.analyzeObservation(ctx, report, obs, signed)
		if err != nil {
			metrics.AnalysisRuns.WithLabelValues("failed").Inc()
			return nil, err
		}

		previews = append(previews, *reply)
		taskList = append(taskList, reply.TaskList...)
		summary[obs.Node] = reply.SummaryReport
	}

	analysis := &v1.Analysis{TaskList: taskList, Summary: summary}
	if err := p.cycles.MergeAnalysis(ctx, report.CycleID, analysis); err != nil {
		metrics.AnalysisRuns.WithLabelValues("failed").Inc()
		return nil, apierr.Dependency(err, "failed to merge cycle analysis")
	}

	metrics.AnalysisRuns.WithLabelValues("success").Inc()
	log.Info("Analyzed cycle", "cycle", report.CycleID, "tasks", len(taskList))
	return previews, nil
}

func (p *Pipeline) analyzeObservation(ctx context.Context, report *v1.CycleReport, obs v1.Observation, signedURL string) (*Reply, error) {
	payload := observationPayload{
		CycleID:         report.CycleID,
		Node:            obs.Node,
		ImageURL:        obs.ImageURL,
		DetectionResult: obs.Yolo.Result,
		Confidence:      obs.Yolo.Confidence,
		Prompt:          userPrompt,
		Metadata: map[string]string{
			"agv_id":    report.AGVID,
			"timestamp": report.Timestamp,
			"position":  obs.Node,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal completion payload: %w", err)
	}

	text, err := p.completer.Complete(ctx, systemPrompt, string(body), signedURL)
	if err != nil {
		return nil, apierr.Dependency(err, fmt.Sprintf("completion call for node %q failed", obs.Node))
	}

	reply, err := parseReply(text)
	if err != nil {
		return nil, apierr.Validation("node %q: %v", obs.Node, err)
	}
	return reply, nil
}

// parseReply extracts and schema-validates one completion reply.
func parseReply(text string) (*Reply, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var reply Reply
	if err := json.Unmarshal([]byte(raw), &reply); err != nil {
		return nil, fmt.Errorf("completion reply is not the expected shape: %w", err)
	}

	if reply.SummaryReport == "" {
		return nil, fmt.Errorf("completion reply missing summary_report")
	}
	if len(reply.TaskList) == 0 {
		return nil, fmt.Errorf("completion reply has an empty task_list")
	}
	for i, task := range reply.TaskList {
		if task.Node == "" {
			return nil, fmt.Errorf("task %d missing node", i)
		}
		if !task.Action.Valid() {
			return nil, fmt.Errorf("task %d has invalid action %q", i, task.Action)
		}
	}
	return &reply, nil
}
