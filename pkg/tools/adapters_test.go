package tools

import (
	"context"
	"testing"
)

func TestMockMLAdapter_Predict(t *testing.T) {
	adapter := MockMLAdapter{}

	cases := []struct {
		modelID string
		wantKey string
	}{
		{"credit-score-v2", "score"},
		{"fraud-detection-v1", "is_fraud"},
		{"loan-approval-v3", "approved"},
		{"unrelated-model", "prediction"},
	}

	for _, tc := range cases {
		out, err := adapter.Predict(context.Background(), tc.modelID, "", nil)
		if err != nil {
			t.Fatalf("Predict(%s) error = %v", tc.modelID, err)
		}
		if _, ok := out[tc.wantKey]; !ok {
			t.Fatalf("Predict(%s) = %+v, want key %q", tc.modelID, out, tc.wantKey)
		}
	}
}

func TestMockMLAdapter_RequiresModelIDOrEndpoint(t *testing.T) {
	adapter := MockMLAdapter{}
	if _, err := adapter.Predict(context.Background(), "", "", nil); err == nil {
		t.Fatal("expected error when both model_id and endpoint are empty")
	}
}

func TestMockWarehouseAdapter_QueryTemplateRequiresTemplate(t *testing.T) {
	adapter := MockWarehouseAdapter{}
	if _, err := adapter.QueryTemplate(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty query_template")
	}
	out, err := adapter.QueryTemplate(context.Background(), "select 1", map[string]interface{}{"id": 1})
	if err != nil {
		t.Fatalf("QueryTemplate() error = %v", err)
	}
	if out["query_template"] != "select 1" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestMockWarehouseAdapter_QueryTableRequiresTable(t *testing.T) {
	adapter := MockWarehouseAdapter{}
	if _, err := adapter.QueryTable(context.Background(), "", nil); err == nil {
		t.Fatal("expected error for empty table_name")
	}
}

func TestMockExternalAdapter_CallRequiresURL(t *testing.T) {
	adapter := MockExternalAdapter{}
	if _, err := adapter.Call(context.Background(), "", "GET", nil, nil); err == nil {
		t.Fatal("expected error for empty url")
	}
	out, err := adapter.Call(context.Background(), "https://example.com", "GET", nil, map[string]interface{}{"q": "x"})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if out["url"] != "https://example.com" {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestAdaptersFallBackToMocksWhenNil(t *testing.T) {
	var a *Adapters
	if _, ok := a.ml().(MockMLAdapter); !ok {
		t.Fatal("expected nil Adapters to fall back to MockMLAdapter")
	}
	if _, ok := a.warehouse().(MockWarehouseAdapter); !ok {
		t.Fatal("expected nil Adapters to fall back to MockWarehouseAdapter")
	}
	if _, ok := a.external().(MockExternalAdapter); !ok {
		t.Fatal("expected nil Adapters to fall back to MockExternalAdapter")
	}
}
