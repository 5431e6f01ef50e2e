package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/engine"
	"github.com/corint-sh/corint/yamlload"
)

const approveOnlyRuleYAML = `
id: big_amount
name: Big amount
when: "event.amount >= 1000"
score: 50
`

const approveOnlyRulesetYAML = `
id: approve_ruleset
name: Approve ruleset
rules:
  - big_amount
conclusion:
  - condition: "total_score >= 50"
    signal: review
  - default: true
    signal: approve
`

const approveOnlyPipelineYAML = `
id: approve_pipeline
name: Approve pipeline
entry: run_ruleset
metadata:
  event_type: "transaction"
steps:
  - step:
      id: run_ruleset
      type: ruleset
      ruleset_id: approve_ruleset
      next: "end"
`

func testHTTPAPI(t *testing.T) *HTTPAPI {
	t.Helper()

	rule, err := yamlload.LoadRule("big_amount.yaml", []byte(approveOnlyRuleYAML))
	require.NoError(t, err)
	ruleset, err := yamlload.LoadRuleset("approve_ruleset.yaml", []byte(approveOnlyRulesetYAML))
	require.NoError(t, err)
	pipeline, err := yamlload.LoadPipeline("approve_pipeline.yaml", []byte(approveOnlyPipelineYAML))
	require.NoError(t, err)

	repo := &engine.Repository{
		Rules:         map[string]*ast.Rule{rule.ID: rule},
		Rulesets:      map[string]*ast.Ruleset{ruleset.ID: ruleset},
		Pipelines:     map[string]*ast.Pipeline{pipeline.ID: pipeline},
		PipelineOrder: []string{pipeline.ID},
	}

	eng := engine.NewEngine(nil, nil)
	require.NoError(t, eng.Reload(context.Background(), repo))

	return NewHTTPAPI(eng, nil, nil)
}

func TestHandleHealthReportsGeneration(t *testing.T) {
	api := testHTTPAPI(t)
	api.MarkReloaded()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	api.handleHealth(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["generation"])
}

func TestHandleDecideApprovesLowRiskEvent(t *testing.T) {
	api := testHTTPAPI(t)

	body := bytes.NewBufferString(`{"event":{"event_type":"transaction","amount":100}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/decide", body)
	w := httptest.NewRecorder()
	api.handleDecide(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp engine.DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "APPROVE", resp.Decision.Result)
	assert.Equal(t, int32(0), resp.Decision.Scores.Raw)
}

func TestHandleDecideReviewsHighRiskEvent(t *testing.T) {
	api := testHTTPAPI(t)

	body := bytes.NewBufferString(`{"event":{"event_type":"transaction","amount":5000}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/decide", body)
	w := httptest.NewRecorder()
	api.handleDecide(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp engine.DecisionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "REVIEW", resp.Decision.Result)
	assert.Equal(t, int32(50), resp.Decision.Scores.Raw)
	assert.Equal(t, []string{"big_amount"}, resp.Decision.Evidence.TriggeredRules)
}

func TestHandleDecideRejectsReservedEventKey(t *testing.T) {
	api := testHTTPAPI(t)

	body := bytes.NewBufferString(`{"event":{"event_type":"transaction","total_score":1}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/decide", body)
	w := httptest.NewRecorder()
	api.handleDecide(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleDecideRejectsMalformedJSON(t *testing.T) {
	api := testHTTPAPI(t)

	body := bytes.NewBufferString(`{not valid json`)
	req := httptest.NewRequest(http.MethodPost, "/v1/decide", body)
	w := httptest.NewRecorder()
	api.handleDecide(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleProgramInfoUnknownID(t *testing.T) {
	api := testHTTPAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/programs/nonexistent", nil)
	req.SetPathValue("id", "nonexistent")
	w := httptest.NewRecorder()
	api.handleProgramInfo(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleProgramInfoKnownPipeline(t *testing.T) {
	api := testHTTPAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/programs/approve_pipeline", nil)
	req.SetPathValue("id", "approve_pipeline")
	w := httptest.NewRecorder()
	api.handleProgramInfo(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "approve_pipeline", body["id"])
}
