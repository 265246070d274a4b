// Package remote implements triage.Classifier against a model-server
// sidecar speaking the /v1/predict JSON protocol.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/linnemanlabs/acuity/internal/triage"
)

// Client calls a remote model server. It is safe for concurrent use.
type Client struct {
	endpoint   string
	modelID    atomic.Value // string, updated from the response header
	httpClient *http.Client
}

// New creates a client for the model server at endpoint. The advertised
// model ID is refined from the server's response header on each call.
func New(endpoint string) *Client {
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	c.modelID.Store("remote")
	return c
}

// request is the payload sent to the model server.
type request struct {
	SchemaVersion string    `json:"schema_version"`
	Names         []string  `json:"names"`
	Values        []float64 `json:"values"`
}

// response is the payload received from the model server.
type response struct {
	Risk          string             `json:"risk_level"`
	Probabilities map[string]float64 `json:"probabilities"`
	Departments   []string           `json:"departments"`
	Contributions []struct {
		Feature string  `json:"feature"`
		Weight  float64 `json:"weight"`
	} `json:"contributions,omitempty"`
}

// ModelID reports the identifier of the last model version seen, or
// "remote" before the first successful call.
func (c *Client) ModelID() string {
	return c.modelID.Load().(string)
}

// Predict scores one feature vector. All transport and protocol failures
// are wrapped in triage.ErrModelUnavailable so the engine can fail safe.
func (c *Client) Predict(ctx context.Context, fv *triage.FeatureVector) (*triage.ModelOutput, error) {
	body, err := json.Marshal(request{
		SchemaVersion: fv.SchemaVersion,
		Names:         fv.Names,
		Values:        fv.Values,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.endpoint+"/v1/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: send request: %v", triage.ErrModelUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", triage.ErrModelUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: model server error %d: %s",
			triage.ErrModelUnavailable, resp.StatusCode, string(respBody))
	}

	if v := resp.Header.Get("X-Model-Version"); v != "" {
		c.modelID.Store(v)
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", triage.ErrModelUnavailable, err)
	}

	mo := &triage.ModelOutput{
		Risk:          triage.RiskLevel(out.Risk),
		Probabilities: make(map[triage.RiskLevel]float64, len(out.Probabilities)),
		Departments:   out.Departments,
	}
	for label, p := range out.Probabilities {
		mo.Probabilities[triage.RiskLevel(label)] = p
	}
	for _, contrib := range out.Contributions {
		mo.Contributions = append(mo.Contributions, triage.Contribution{
			Feature: contrib.Feature,
			Weight:  contrib.Weight,
		})
	}
	return mo, nil
}
