// Package apiclient talks to a running pipeline server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/adapters/primary/http/dto"
)

const pipelineJobsPath = "/api/v1/pipeline-jobs"

type Client struct {
	httpClient  *http.Client
	upstreamURL string
}

func NewClient(upstreamURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		upstreamURL: strings.TrimRight(upstreamURL, "/"),
	}
}

// StatusError is a non-2xx answer from the server.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// SubmitJob creates a pipeline job.
func (c *Client) SubmitJob(ctx context.Context, req *dto.CreatePipelineJobRequest) (*dto.PipelineJobResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "encode pipeline job")
	}
	var job dto.PipelineJobResponse
	if err := c.do(ctx, http.MethodPost, pipelineJobsPath, bytes.NewReader(body), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// GetJob fetches a pipeline job by its run id.
func (c *Client) GetJob(ctx context.Context, id string) (*dto.PipelineJobResponse, error) {
	var job dto.PipelineJobResponse
	if err := c.do(ctx, http.MethodGet, pipelineJobsPath+"/"+id, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	url := c.upstreamURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return errors.Wrap(err, "create upstream request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	log.WithFields(log.Fields{
		"method": method,
		"url":    url,
	}).Debug("sending request to pipeline server")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "upstream request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode upstream response")
	}
	return nil
}
