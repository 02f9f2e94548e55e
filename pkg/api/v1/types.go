package v1

import (
	"fmt"
)

// YoloResult is the reduced per-node classifier verdict.
type YoloResult string

const (
	ResultNormal   YoloResult = "normal"
	ResultAbnormal YoloResult = "abnormal"
	ResultUnknown  YoloResult = "unknown"
)

// Valid reports whether r is one of the known verdicts.
func (r YoloResult) Valid() bool {
	switch r {
	case ResultNormal, ResultAbnormal, ResultUnknown:
		return true
	}
	return false
}

// Action is a machine-readable task action produced by the analysis pipeline.
type Action string

const (
	ActionSupplyFertilizer Action = "supply_fertilizer"
	ActionSpray            Action = "spray"
	ActionInspectManually  Action = "inspect_manually"
)

// Valid reports whether a is one of the known actions.
func (a Action) Valid() bool {
	switch a {
	case ActionSupplyFertilizer, ActionSpray, ActionInspectManually:
		return true
	}
	return false
}

// YoloVerdict carries a verdict with its confidence score.
type YoloVerdict struct {
	Result     YoloResult `json:"result"`
	Confidence float64    `json:"confidence"`
}

// Observation is one node's record within a cycle. ImageURL holds the durable
// storage reference; readers obtain fresh short-lived links separately.
type Observation struct {
	Node     string      `json:"node"`
	ImageURL string      `json:"image_url"`
	Yolo     YoloVerdict `json:"yolo"`
}

// Validate checks the invariants every stored observation must satisfy.
func (o *Observation) Validate() error {
	if o.Node == "" {
		return fmt.Errorf("observation node is required")
	}
	if !o.Yolo.Result.Valid() {
		return fmt.Errorf("unknown yolo result %q for node %q", o.Yolo.Result, o.Node)
	}
	if o.Yolo.Confidence < 0 || o.Yolo.Confidence > 1 {
		return fmt.Errorf("confidence %v for node %q outside [0,1]", o.Yolo.Confidence, o.Node)
	}
	return nil
}

// CycleReport is the robot-produced half of a cycle document.
type CycleReport struct {
	CycleID      string        `json:"cycle_id"`
	AGVID        string        `json:"agv_id"`
	Timestamp    string        `json:"timestamp"`
	Observations []Observation `json:"observations"`
}

// TaskItem is one node's recommended action.
type TaskItem struct {
	Node   string `json:"node"`
	Action Action `json:"action"`
	Reason string `json:"reason"`
}

// Analysis is the completion-derived half of a cycle document: one task per
// observed node plus a per-node summary.
type Analysis struct {
	TaskList []TaskItem        `json:"task_list"`
	Summary  map[string]string `json:"summary"`
}

// CycleDocument is the persisted per-cycle record. The two field groups are
// merged independently: ingest writes AGV, analysis writes LLM. Either may be
// nil while the other is populated.
type CycleDocument struct {
	AGV *CycleReport `json:"agv,omitempty"`
	LLM *Analysis    `json:"llm,omitempty"`
}

// Clone returns a deep copy. Readers that rewrite evidence links work on the
// copy and never touch the stored document.
func (d *CycleDocument) Clone() *CycleDocument {
	if d == nil {
		return nil
	}
	out := &CycleDocument{}
	if d.AGV != nil {
		report := *d.AGV
		report.Observations = append([]Observation(nil), d.AGV.Observations...)
		out.AGV = &report
	}
	if d.LLM != nil {
		analysis := *d.LLM
		analysis.TaskList = append([]TaskItem(nil), d.LLM.TaskList...)
		if d.LLM.Summary != nil {
			analysis.Summary = make(map[string]string, len(d.LLM.Summary))
			for node, text := range d.LLM.Summary {
				analysis.Summary[node] = text
			}
		}
		out.LLM = &analysis
	}
	return out
}
