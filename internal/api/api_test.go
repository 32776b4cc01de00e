package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dB-Digital-Fox/XAI/internal/domain"
	"github.com/dB-Digital-Fox/XAI/internal/model"
	"github.com/dB-Digital-Fox/XAI/internal/triage"
)

// createTestServer wires a server around a small logistic model that scores
// only on severity, so the fortigate fixture lands in the high band.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := domain.DefaultConfig()
	cfg.Server.Host = "localhost"
	cfg.Server.Port = 8080
	cfg.FeatureMapPath = ""
	cfg.PolicyPath = ""

	weights := make([]float64, 20)
	weights[1] = 0.5 // severity_ord
	m, err := model.NewLinear(model.Artifact{Type: "linear", Weights: weights, Bias: -0.5})
	if err != nil {
		t.Fatalf("NewLinear failed: %v", err)
	}

	service, err := triage.New(triage.Config{Model: m})
	if err != nil {
		t.Fatalf("triage.New failed: %v", err)
	}

	return NewServer(cfg, service, nil, nil, nil, "test-v1")
}

func testAlertBody() ExplainRequest {
	return ExplainRequest{
		AlertID: "alert-001",
		Alert: domain.RawAlert{
			"rule": map[string]any{
				"level":       float64(14),
				"description": "Remote access attempt",
			},
			"decoder": map[string]any{"name": "fortigate"},
			"data": map[string]any{
				"srcip":   "10.0.0.5",
				"dstip":   "10.0.0.9",
				"dstport": "3389",
				"proto":   "6",
				"action":  "allow",
				"service": "RDP",
			},
		},
	}
}

func TestExplainEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("SuccessfulExplain", func(t *testing.T) {
		body, _ := json.Marshal(testAlertBody())
		req := httptest.NewRequest(http.MethodPost, "/explain", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp ExplainResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.ExplanationID == "" {
			t.Error("expected explanationId in response")
		}
		if resp.AlertID != "alert-001" {
			t.Errorf("expected alertId 'alert-001', got %s", resp.AlertID)
		}
		if resp.Source != "network" {
			t.Errorf("expected source 'network', got %s", resp.Source)
		}
		if resp.Label != domain.LabelMalicious {
			t.Errorf("expected malicious label, got %s", resp.Label)
		}
		if resp.Decision.Tag != domain.TagHigh {
			t.Errorf("expected high tag, got %s", resp.Decision.Tag)
		}
		if resp.AttributionMethod != "exact" {
			t.Errorf("expected exact attribution, got %q", resp.AttributionMethod)
		}
		if len(resp.TopFeatures) == 0 || resp.TopFeatures[0].Feature != "severity_ord" {
			t.Errorf("expected severity_ord as top feature, got %+v", resp.TopFeatures)
		}
		if resp.Metadata.EngineVersion != triage.EngineVersion {
			t.Errorf("expected engine version %s, got %s", triage.EngineVersion, resp.Metadata.EngineVersion)
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/explain", bytes.NewBufferString("{}"))
		req.Header.Set("Content-Type", "application/json")
		// No X-Tenant-ID header

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/explain", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingAlert", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/explain", bytes.NewBufferString(`{"alertId":"a-1"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("NegativeTopK", func(t *testing.T) {
		body := testAlertBody()
		body.TopK = -2
		data, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/explain", bytes.NewBuffer(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("TopKOverrideNarrows", func(t *testing.T) {
		body := testAlertBody()
		body.TopK = 11
		data, _ := json.Marshal(body)
		req := httptest.NewRequest(http.MethodPost, "/explain", bytes.NewBuffer(data))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var resp ExplainResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if len(resp.TopFeatures) > 11 {
			t.Errorf("expected at most 11 features, got %d", len(resp.TopFeatures))
		}
	})

	t.Run("ResponseHeaders", func(t *testing.T) {
		body, _ := json.Marshal(testAlertBody())
		req := httptest.NewRequest(http.MethodPost, "/explain", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", "tenant-001")

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID header in response")
		}
		if rr.Header().Get("X-Trace-ID") == "" {
			t.Error("expected X-Trace-ID header in response")
		}
		if rr.Header().Get("Content-Type") != "application/json" {
			t.Error("expected Content-Type: application/json")
		}
	})
}

func TestFeaturesEndpoint(t *testing.T) {
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/features", nil)
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp struct {
		Features []string `json:"features"`
		Count    int      `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Count != 20 {
		t.Errorf("expected 20 features, got %d", resp.Count)
	}
	if len(resp.Features) == 0 || resp.Features[0] != "rule_level" {
		t.Errorf("expected rule_level first, got %v", resp.Features)
	}
}

func TestFeedbackEndpointUnavailable(t *testing.T) {
	// No feedback manager wired: the endpoint reports unavailability rather
	// than silently dropping analyst input.
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/feedback", bytes.NewBufferString(`{"alertId":"a-1","trustScore":4}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestReloadEndpoint(t *testing.T) {
	// Empty document paths mean nothing to reload; the current documents are
	// kept and the call succeeds.
	server := createTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/config/reload", nil)
	req.Header.Set("X-Tenant-ID", "tenant-001")

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
