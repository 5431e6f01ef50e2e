package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/yamlload"
)

// TestDecideFraudScenarios exercises the concrete end-to-end scenarios
// spec §8 pins literally (S1-S6): one ruleset of four independent
// fraud patterns feeding a three-tier conclusion table, driven through
// the full compiler → VM → orchestrator path with no registry (so
// pipeline routing falls back to the metadata event_type match, spec
// §4.7 step 2 / §9's resolved open question).
func TestDecideFraudScenarios(t *testing.T) {
	repo := fraudTestRepository(t)

	eng := NewEngine(nil, nil)
	require.NoError(t, eng.Reload(context.Background(), repo))

	base := map[string]any{
		"event_type":              "transaction",
		"ip_device_count":         2.0,
		"ip_user_count":           1.0,
		"new_device_indicator":    false,
		"failed_login_count_1h":   0.0,
		"country_changed":         false,
		"transaction_count_24h":   3.0,
		"velocity_ratio":          1.0,
		"amount_zscore":           0.5,
		"is_amount_outlier":       false,
		"transaction_amount":      150.0,
		"user_age_days":           365.0,
		"new_payment_method":      false,
		"user_verified":           true,
	}

	clone := func(overrides map[string]any) map[string]any {
		m := make(map[string]any, len(base)+len(overrides))
		for k, v := range base {
			m[k] = v
		}
		for k, v := range overrides {
			m[k] = v
		}
		return m
	}

	cases := []struct {
		name      string
		event     map[string]any
		signal    string
		score     int32
		triggered []string
	}{
		{
			name:   "S1_no_rules_fire",
			event:  clone(nil),
			signal: "APPROVE",
			score:  0,
		},
		{
			name: "S2_fraud_farm_pattern",
			event: clone(map[string]any{
				"ip_device_count": 15.0, "ip_user_count": 8.0, "transaction_amount": 500.0,
			}),
			signal:    "DECLINE",
			score:     100,
			triggered: []string{"fraud_farm_pattern"},
		},
		{
			name: "S3_account_takeover_pattern",
			event: clone(map[string]any{
				"new_device_indicator": true, "failed_login_count_1h": 5.0,
				"country_changed": true, "transaction_amount": 1000.0,
			}),
			signal:    "REVIEW",
			score:     85,
			triggered: []string{"account_takeover_pattern"},
		},
		{
			name: "S4_velocity_abuse_pattern",
			event: clone(map[string]any{
				"transaction_count_24h": 25.0, "velocity_ratio": 8.0,
			}),
			signal:    "REVIEW",
			score:     70,
			triggered: []string{"velocity_abuse_pattern"},
		},
		{
			name: "S5_amount_outlier_pattern",
			event: clone(map[string]any{
				"amount_zscore": 4.5, "is_amount_outlier": true, "transaction_amount": 8000.0,
			}),
			signal:    "REVIEW",
			score:     75,
			triggered: []string{"amount_outlier_pattern"},
		},
		{
			name: "S6_multi_pattern_critical",
			event: clone(map[string]any{
				"ip_device_count": 15.0, "ip_user_count": 8.0,
				"transaction_count_24h": 25.0, "velocity_ratio": 8.0,
				"amount_zscore": 4.5, "is_amount_outlier": true,
			}),
			signal: "DECLINE",
			score:  245,
			triggered: []string{
				"fraud_farm_pattern", "velocity_abuse_pattern", "amount_outlier_pattern",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := eng.Decide(context.Background(), DecisionRequest{
				Event:   tc.event,
				Options: Options{EnableTrace: true},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.signal, resp.Decision.Result)
			assert.Equal(t, tc.score, resp.Decision.Scores.Raw)
			assert.ElementsMatch(t, tc.triggered, resp.Decision.Evidence.TriggeredRules)

			require.NotNil(t, resp.Trace)
			found := false
			for _, rs := range resp.Trace.Rulesets {
				if rs.RulesetID != "fraud_ruleset" {
					continue
				}
				found = true
				seen := map[string]bool{}
				for _, rt := range rs.Rules {
					seen[rt.RuleID] = rt.Triggered
				}
				for _, wantID := range tc.triggered {
					assert.True(t, seen[wantID], "expected %s to be recorded as triggered in the trace", wantID)
				}
			}
			assert.True(t, found, "expected a rulesets trace entry for fraud_ruleset")
		})
	}
}

const fraudFarmRuleYAML = `
id: fraud_farm_pattern
name: Fraud farm pattern
when: "event.ip_device_count >= 10 && event.ip_user_count >= 5"
score: 100
`

const accountTakeoverRuleYAML = `
id: account_takeover_pattern
name: Account takeover pattern
when: "event.new_device_indicator == true && event.failed_login_count_1h >= 3 && event.country_changed == true"
score: 85
`

const velocityAbuseRuleYAML = `
id: velocity_abuse_pattern
name: Velocity abuse pattern
when: "event.transaction_count_24h >= 20 && event.velocity_ratio >= 5"
score: 70
`

const amountOutlierRuleYAML = `
id: amount_outlier_pattern
name: Amount outlier pattern
when: "event.amount_zscore >= 4 && event.is_amount_outlier == true"
score: 75
`

const fraudRulesetYAML = `
id: fraud_ruleset
name: Fraud ruleset
rules:
  - fraud_farm_pattern
  - account_takeover_pattern
  - velocity_abuse_pattern
  - amount_outlier_pattern
conclusion:
  - condition: "total_score >= 100"
    signal: decline
    reason: "critical multi-pattern or farm-scale fraud risk"
  - condition: "total_score >= 70"
    signal: review
    reason: "elevated risk requiring manual review"
  - default: true
    signal: approve
`

const fraudPipelineYAML = `
id: fraud_pipeline
name: Fraud decision pipeline
entry: run_fraud_ruleset
metadata:
  event_type: "transaction"
steps:
  - step:
      id: run_fraud_ruleset
      type: ruleset
      ruleset_id: fraud_ruleset
      next: "end"
`

func fraudTestRepository(t *testing.T) *Repository {
	t.Helper()

	rule1, err := yamlload.LoadRule("fraud_farm_pattern.yaml", []byte(fraudFarmRuleYAML))
	require.NoError(t, err)
	rule2, err := yamlload.LoadRule("account_takeover_pattern.yaml", []byte(accountTakeoverRuleYAML))
	require.NoError(t, err)
	rule3, err := yamlload.LoadRule("velocity_abuse_pattern.yaml", []byte(velocityAbuseRuleYAML))
	require.NoError(t, err)
	rule4, err := yamlload.LoadRule("amount_outlier_pattern.yaml", []byte(amountOutlierRuleYAML))
	require.NoError(t, err)

	ruleset, err := yamlload.LoadRuleset("fraud_ruleset.yaml", []byte(fraudRulesetYAML))
	require.NoError(t, err)

	pipeline, err := yamlload.LoadPipeline("fraud_pipeline.yaml", []byte(fraudPipelineYAML))
	require.NoError(t, err)

	return &Repository{
		Rules: map[string]*ast.Rule{
			rule1.ID: rule1,
			rule2.ID: rule2,
			rule3.ID: rule3,
			rule4.ID: rule4,
		},
		Rulesets: map[string]*ast.Ruleset{
			ruleset.ID: ruleset,
		},
		Pipelines: map[string]*ast.Pipeline{
			pipeline.ID: pipeline,
		},
		PipelineOrder: []string{pipeline.ID},
	}
}
