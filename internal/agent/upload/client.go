// Package upload sends completed cycle observations to the backend as a
// multipart request: one JSON payload field plus positionally aligned
// evidence images.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/agrisight-io/agrisight/internal/agent/perceive"
	v1 "github.com/agrisight-io/agrisight/pkg/api/v1"
	"github.com/agrisight-io/agrisight/pkg/log"
)

const defaultTimeout = 30 * time.Second

// Client posts observation uploads to the backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UploadObservations posts one cycle's payload and images to
// /agv/upload_observation. A non-2xx response is an error; the caller owns
// any re-invocation.
func (c *Client) UploadObservations(ctx context.Context, cycleID, agvID, timestamp string, observations []v1.Observation, images []perceive.Frame) error {
	if len(images) != len(observations) {
		return fmt.Errorf("image count %d does not match observation count %d", len(images), len(observations))
	}

	payload, err := json.Marshal(map[string]any{
		"cycle_id":     cycleID,
		"agv_id":       agvID,
		"timestamp":    timestamp,
		"observations": observations,
	})
	if err != nil {
		return fmt.Errorf("marshal upload payload: %w", err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("payload", string(payload)); err != nil {
		return fmt.Errorf("write payload field: %w", err)
	}
	for i, frame := range images {
		fw, err := createImagePart(mw, observations[i].Node+".jpg")
		if err != nil {
			return fmt.Errorf("create image part: %w", err)
		}
		if _, err := fw.Write(frame); err != nil {
			return fmt.Errorf("write image part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("finish multipart body: %w", err)
	}

	url := c.baseURL + "/agv/upload_observation"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post observations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("upload rejected with status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	log.Info("Uploaded cycle observations", "cycle", cycleID, "nodes", len(observations))
	return nil
}

// createImagePart adds an images file part with an explicit JPEG content
// type; CreateFormFile would label it application/octet-stream.
func createImagePart(mw *multipart.Writer, filename string) (io.Writer, error) {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename=%q`, filename))
	header.Set("Content-Type", "image/jpeg")
	return mw.CreatePart(header)
}
