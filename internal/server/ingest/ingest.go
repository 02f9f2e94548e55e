// Package ingest receives one cycle's observations and evidence images from
// the robot and persists them.
package ingest

import (
	"bytes"
	"context"
	"fmt"

	"github.com/agrisight-io/agrisight/internal/pkg/apierr"
	"github.com/agrisight-io/agrisight/internal/pkg/metrics"
	"github.com/agrisight-io/agrisight/internal/server/storage"
	"github.com/agrisight-io/agrisight/internal/server/store"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/log"
)

// Image is one uploaded evidence file, positionally aligned to the
// observation with the same index.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Request is the decoded multipart payload of an observation upload.
type Request struct {
	CycleID      string           `json:"cycle_id"`
	AGVID        string           `json:"agv_id"`
	Timestamp    string           `json:"timestamp"`
	Observations []v1.Observation `json:"observations"`
}

// Uploaded describes one stored evidence image in the response.
type Uploaded struct {
	Node     string `json:"node"`
	ImageURL string `json:"image_url"`
}

// Result is the outcome of a successful ingest.
type Result struct {
	CycleID  string
	Uploaded []Uploaded

	// Report is the merged report with stored image references filled in.
	Report *v1.CycleReport

	// SignedURLs maps node to a fresh short-lived link for each stored
	// image, for immediate downstream use (the analysis pipeline).
	SignedURLs map[string]string
}

// Pipeline stores evidence images and merges the cycle document.
type Pipeline struct {
	storage storage.Provider
	cycles  store.Store
}

func New(storage storage.Provider, cycles store.Store) *Pipeline {
	return &Pipeline{
		storage: storage,
		cycles:  cycles,
	}
}

// Ingest validates the request, stores every image, then merges the cycle
// document. All images are durably stored before the document is written so
// a reader can never observe an image_ref pointing at a missing object. If
// any upload fails the whole call fails and no document is written.
func (p *Pipeline) Ingest(ctx context.Context, req *Request, images []Image) (*Result, error) {
	if err := p.validate(req, images); err != nil {
		metrics.IngestRequests.WithLabelValues("client_error").Inc()
		return nil, err
	}

	result := &Result{
		CycleID:    req.CycleID,
		SignedURLs: make(map[string]string, len(images)),
	}

	observations := make([]v1.Observation, len(req.Observations))
	copy(observations, req.Observations)

	for i, img := range images {
		node := observations[i].Node
		key := storage.ObjectKey(req.CycleID, node)

		contentType := img.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}

		if err := p.storage.Put(ctx, key, bytes.NewReader(img.Data), int64(len(img.Data)), contentType); err != nil {
			metrics.IngestRequests.WithLabelValues("failed").Inc()
			return nil, apierr.Dependency(err, fmt.Sprintf("failed to store image for node %q", node))
		}

		observations[i].ImageURL = p.storage.PublicURL(key)

		signed, err := p.storage.PresignedURL(ctx, key, storage.SignedURLTTL)
		if err != nil {
			metrics.IngestRequests.WithLabelValues("failed").Inc()
			return nil, apierr.Dependency(err, fmt.Sprintf("failed to sign image link for node %q", node))
		}
		result.SignedURLs[node] = signed

		result.Uploaded = append(result.Uploaded, Uploaded{Node: node, ImageURL: observations[i].ImageURL})
	}

	report := &v1.CycleReport{
		CycleID:      req.CycleID,
		AGVID:        req.AGVID,
		Timestamp:    req.Timestamp,
		Observations: observations,
	}
	if err := p.cycles.MergeReport(ctx, report); err != nil {
		metrics.IngestRequests.WithLabelValues("failed").Inc()
		return nil, apierr.Dependency(err, "failed to merge cycle report")
	}
	result.Report = report

	metrics.IngestRequests.WithLabelValues("success").Inc()
	log.Info("Ingested cycle observations", "cycle", req.CycleID, "agv", req.AGVID, "nodes", len(observations))
	return result, nil
}

// validate rejects malformed requests before any side effect.
func (p *Pipeline) validate(req *Request, images []Image) error {
	if req.CycleID == "" {
		return apierr.Client("cycle_id is required")
	}
	if req.AGVID == "" {
		return apierr.Client("agv_id is required")
	}
	if len(images) != len(req.Observations) {
		return apierr.Client("image count %d does not match observation count %d", len(images), len(req.Observations))
	}
	if len(req.Observations) == 0 {
		return apierr.Client("at least one observation is required")
	}
	for i := range req.Observations {
		if err := req.Observations[i].Validate(); err != nil {
			return apierr.Client("observation %d: %v", i, err)
		}
	}
	return nil
}
