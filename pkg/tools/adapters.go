package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentcore/orchestrator/pkg/httpclient"
)

// MLAdapter dispatches a ml_model catalog tool to a prediction service.
type MLAdapter interface {
	Predict(ctx context.Context, modelID, endpoint string, input map[string]interface{}) (map[string]interface{}, error)
}

// WarehouseAdapter dispatches a data_api catalog tool to a data warehouse.
type WarehouseAdapter interface {
	QueryTemplate(ctx context.Context, template string, args map[string]interface{}) (map[string]interface{}, error)
	QueryTable(ctx context.Context, table string, args map[string]interface{}) (map[string]interface{}, error)
}

// ExternalAdapter dispatches an external_api catalog tool to an arbitrary
// HTTP endpoint named by the tool's own service_config.
type ExternalAdapter interface {
	Call(ctx context.Context, url, method string, headers map[string]string, data map[string]interface{}) (map[string]interface{}, error)
}

// Adapters bundles the three service adapters a Catalog dispatches through.
// A nil field falls back to that kind's mock adapter, matching the
// mock-mode fallback every adapter in the original system carries when it
// has no credentials or endpoint for the real backend.
type Adapters struct {
	ML        MLAdapter
	Warehouse WarehouseAdapter
	External  ExternalAdapter
}

func (a *Adapters) ml() MLAdapter {
	if a != nil && a.ML != nil {
		return a.ML
	}
	return MockMLAdapter{}
}

func (a *Adapters) warehouse() WarehouseAdapter {
	if a != nil && a.Warehouse != nil {
		return a.Warehouse
	}
	return MockWarehouseAdapter{}
}

func (a *Adapters) external() ExternalAdapter {
	if a != nil && a.External != nil {
		return a.External
	}
	return MockExternalAdapter{}
}

// MockMLAdapter fabricates predictions keyed off the model id, the same
// branching the reference prediction service used before a real model
// endpoint was wired in.
type MockMLAdapter struct{}

func (MockMLAdapter) Predict(_ context.Context, modelID, endpoint string, input map[string]interface{}) (map[string]interface{}, error) {
	if modelID == "" && endpoint == "" {
		return nil, fmt.Errorf("ml_model tool requires a model_id or endpoint")
	}
	switch {
	case contains(modelID, "credit-score"):
		return map[string]interface{}{"score": 720, "rating": "good"}, nil
	case contains(modelID, "fraud-detection"):
		return map[string]interface{}{"is_fraud": false, "fraud_probability": 0.02}, nil
	case contains(modelID, "loan-approval"):
		return map[string]interface{}{"approved": true, "max_amount": 50000}, nil
	default:
		return map[string]interface{}{"prediction": "mock_result", "confidence": 0.85}, nil
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return substr == ""
}

// MockWarehouseAdapter returns a synthetic row set shaped by the query's
// own arguments, for use before a real warehouse endpoint is configured.
type MockWarehouseAdapter struct{}

func (MockWarehouseAdapter) QueryTemplate(_ context.Context, template string, args map[string]interface{}) (map[string]interface{}, error) {
	if template == "" {
		return nil, fmt.Errorf("data_api tool requires a query_template")
	}
	return map[string]interface{}{
		"query_template": template,
		"params":         args,
		"rows":           []map[string]interface{}{},
		"row_count":      0,
	}, nil
}

func (MockWarehouseAdapter) QueryTable(_ context.Context, table string, args map[string]interface{}) (map[string]interface{}, error) {
	if table == "" {
		return nil, fmt.Errorf("data_api tool requires a table_name")
	}
	return map[string]interface{}{
		"table":     table,
		"filters":   args,
		"rows":      []map[string]interface{}{},
		"row_count": 0,
	}, nil
}

// MockExternalAdapter echoes the call it would have made, for use before a
// real external endpoint is configured.
type MockExternalAdapter struct{}

func (MockExternalAdapter) Call(_ context.Context, url, method string, headers map[string]string, data map[string]interface{}) (map[string]interface{}, error) {
	if url == "" {
		return nil, fmt.Errorf("external_api tool requires a url")
	}
	return map[string]interface{}{
		"url":    url,
		"method": method,
		"data":   data,
		"status": "mocked",
	}, nil
}

// HTTPExternalAdapter calls a real external_api tool over HTTP, reusing the
// retrying client WebRequestTool is built on.
type HTTPExternalAdapter struct {
	client *httpclient.Client
}

func NewHTTPExternalAdapter(client *http.Client, maxRetries int) *HTTPExternalAdapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPExternalAdapter{
		client: httpclient.New(
			httpclient.WithHTTPClient(client),
			httpclient.WithMaxRetries(maxRetries),
		),
	}
}

func (a *HTTPExternalAdapter) Call(ctx context.Context, url, method string, headers map[string]string, data map[string]interface{}) (map[string]interface{}, error) {
	if url == "" {
		return nil, fmt.Errorf("external_api tool requires a url")
	}
	if method == "" {
		method = http.MethodPost
	}

	var body io.Reader
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", url, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, string(respBody))
	}

	var decoded map[string]interface{}
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			decoded = map[string]interface{}{"raw": string(respBody)}
		}
	}
	return decoded, nil
}
