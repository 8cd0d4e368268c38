package wire

import (
	"encoding/json"
	"testing"
)

func TestResponseRoundTrip(t *testing.T) {
	content := &ResponseContent{
		Kind:   ContentWorkers,
		Workers: []WorkerInfo{{ID: 0, PID: 4242, RunState: RunStateRunning}},
	}
	resp := OkResponse("req-1", "workers listed", content)

	data, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded Response
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if decoded.ID != resp.ID {
		t.Errorf("response id did not round-trip: got %q, want %q", decoded.ID, resp.ID)
	}
	if decoded.ID == "generic-response-id-to-be-removed" {
		t.Errorf("response id must echo the request id, not a placeholder")
	}
	if decoded.Status != ResponseOk {
		t.Errorf("status = %v, want Ok", decoded.Status)
	}
	if len(decoded.Content.Workers) != 1 || decoded.Content.Workers[0].PID != 4242 {
		t.Errorf("workers content did not round-trip: %+v", decoded.Content)
	}
}

func TestPathRuleDefault(t *testing.T) {
	var p PathRule
	if !p.IsDefault() {
		t.Errorf("zero-value PathRule should be the default prefix rule")
	}
	if got := PrefixRule("/api"); got.IsDefault() {
		t.Errorf("PrefixRule(%q) should not be the default", got.Pattern)
	}
}

func TestBackendOrdering(t *testing.T) {
	weight := func(w int) *LoadBalancingParams { return &LoadBalancingParams{Weight: w} }

	backends := []Backend{
		{ClusterID: "web", BackendID: "b2", Address: "10.0.0.2:80"},
		{ClusterID: "web", BackendID: "b1", Address: "10.0.0.1:80", LoadBalancingParameters: weight(5)},
	}

	if !backends[1].Less(backends[0]) {
		t.Errorf("backend b1 should sort before b2")
	}
}

func TestHttpFrontendRouteKeyStability(t *testing.T) {
	a := HttpFrontend{Route: ClusterRoute("web"), Address: "0.0.0.0:80", Hostname: "example.com", Position: RulePositionTree}
	b := HttpFrontend{Route: DenyRoute(), Address: "0.0.0.0:80", Hostname: "example.com", Position: RulePositionTree}

	if a.RouteKey() != b.RouteKey() {
		t.Errorf("RouteKey should be independent of Route, only the match key")
	}
}
