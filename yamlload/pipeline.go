// SPDX-License-Identifier: Apache-2.0

// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package yamlload

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/corint-sh/corint/ast"
	"github.com/corint-sh/corint/parser"
)

type routeDoc struct {
	Next string  `yaml:"next"`
	When whenDoc `yaml:"when"`
}

type featureCallDoc struct {
	Type          string `yaml:"type"`
	Field         string `yaml:"field"`
	Filter        string `yaml:"filter"`
	WindowSeconds int64  `yaml:"window_seconds"`
}

func (f *featureCallDoc) toAST() (*ast.FeatureCall, error) {
	if f == nil {
		return nil, nil
	}
	fc := &ast.FeatureCall{
		Type:   f.Type,
		Field:  f.Field,
		Window: time.Duration(f.WindowSeconds) * time.Second,
	}
	if f.Filter != "" {
		expr, err := parser.Parse(f.Filter)
		if err != nil {
			return nil, errors.Wrap(err, "feature.filter")
		}
		fc.Filter = expr
	}
	return fc, nil
}

type serviceCallDoc struct {
	Service string            `yaml:"service"`
	Op      string            `yaml:"op"`
	Params  map[string]string `yaml:"params"`
}

func (s *serviceCallDoc) toAST() (*ast.ServiceCall, error) {
	if s == nil {
		return nil, nil
	}
	params, err := compileParamExprs(s.Params)
	if err != nil {
		return nil, errors.Wrap(err, "service.params")
	}
	return &ast.ServiceCall{Service: s.Service, Op: s.Op, Params: params}, nil
}

type externalCallDoc struct {
	API       string            `yaml:"api"`
	Endpoint  string            `yaml:"endpoint"`
	Params    map[string]string `yaml:"params"`
	TimeoutMS int64             `yaml:"timeout_ms"`
	Fallback  string            `yaml:"fallback"`
}

func (e *externalCallDoc) toAST() (*ast.ExternalCall, error) {
	if e == nil {
		return nil, nil
	}
	params, err := compileParamExprs(e.Params)
	if err != nil {
		return nil, errors.Wrap(err, "api.params")
	}
	ec := &ast.ExternalCall{
		API:      e.API,
		Endpoint: e.Endpoint,
		Params:   params,
		Timeout:  time.Duration(e.TimeoutMS) * time.Millisecond,
	}
	if e.Fallback != "" {
		expr, err := parser.Parse(e.Fallback)
		if err != nil {
			return nil, errors.Wrap(err, "api.fallback")
		}
		ec.Fallback = expr
	}
	return ec, nil
}

// stepDoc is the explicit, "new format" step shape (spec §4.2): every
// field permitted for any step type, strictly validated per type by
// validateStepFields once decoded.
type stepDoc struct {
	ID            string            `yaml:"id"`
	Type          string            `yaml:"type"`
	Next          string            `yaml:"next"`
	Routes        []routeDoc        `yaml:"routes"`
	Default       string            `yaml:"default"`
	RuleIDs       []string          `yaml:"rules"`
	RulesetID     string            `yaml:"ruleset_id"`
	SubPipelineID string            `yaml:"pipeline_id"`
	Feature       *featureCallDoc   `yaml:"feature"`
	Service       *serviceCallDoc   `yaml:"service"`
	External      *externalCallDoc  `yaml:"api"`
	Extract       map[string]string `yaml:"extract"`
	StoreAs       string            `yaml:"store_as"`
}

// permittedFields lists, per step type, which of the above YAML keys
// may be set — spec §4.2's "loader strictly validates the set of
// permitted fields... to catch typos early".
var permittedFields = map[ast.StepType]map[string]bool{
	ast.StepRouter:   {"routes": true, "default": true},
	ast.StepFunction: {"feature": true, "store_as": true, "next": true},
	ast.StepRule:     {"rules": true, "next": true},
	ast.StepRuleset:  {"ruleset_id": true, "next": true},
	ast.StepPipeline: {"pipeline_id": true, "next": true},
	ast.StepService:  {"service": true, "store_as": true, "next": true},
	ast.StepAPI:      {"api": true, "store_as": true, "next": true},
	ast.StepTrigger:  {"service": true, "api": true, "next": true},
	ast.StepExtract:  {"extract": true, "next": true},
}

func (s stepDoc) validateFields() error {
	allowed, ok := permittedFields[ast.StepType(s.Type)]
	if !ok {
		return errors.Errorf("step %q: unknown type %q", s.ID, s.Type)
	}
	check := func(name string, set bool) error {
		if set && !allowed[name] {
			return errors.Errorf("step %q: field %q is not permitted for type %q", s.ID, name, s.Type)
		}
		return nil
	}
	checks := []error{
		check("routes", len(s.Routes) > 0),
		check("default", s.Default != ""),
		check("rules", len(s.RuleIDs) > 0),
		check("ruleset_id", s.RulesetID != ""),
		check("pipeline_id", s.SubPipelineID != ""),
		check("feature", s.Feature != nil),
		check("service", s.Service != nil),
		check("api", s.External != nil),
		check("extract", len(s.Extract) > 0),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

func (s stepDoc) toAST() (ast.PipelineStep, error) {
	if err := s.validateFields(); err != nil {
		return ast.PipelineStep{}, err
	}
	feature, err := s.Feature.toAST()
	if err != nil {
		return ast.PipelineStep{}, errors.Wrapf(err, "step %q", s.ID)
	}
	service, err := s.Service.toAST()
	if err != nil {
		return ast.PipelineStep{}, errors.Wrapf(err, "step %q", s.ID)
	}
	external, err := s.External.toAST()
	if err != nil {
		return ast.PipelineStep{}, errors.Wrapf(err, "step %q", s.ID)
	}

	routes := make([]ast.Route, 0, len(s.Routes))
	for _, r := range s.Routes {
		routes = append(routes, ast.Route{Next: r.Next, When: r.When.WhenBlock})
	}

	var extract map[string]ast.Expression
	if len(s.Extract) > 0 {
		extract = make(map[string]ast.Expression, len(s.Extract))
		for name, src := range s.Extract {
			expr, err := parser.Parse(src)
			if err != nil {
				return ast.PipelineStep{}, errors.Wrapf(err, "step %q extract.%s", s.ID, name)
			}
			extract[name] = expr
		}
	}

	return ast.PipelineStep{
		ID:            s.ID,
		Type:          ast.StepType(s.Type),
		Next:          s.Next,
		Routes:        routes,
		Default:       s.Default,
		RuleIDs:       s.RuleIDs,
		RulesetID:     s.RulesetID,
		SubPipelineID: s.SubPipelineID,
		Feature:       feature,
		Service:       service,
		External:      external,
		Extract:       extract,
		StoreAs:       s.StoreAs,
	}, nil
}

type decisionBlockDoc = decisionRuleDoc

type pipelineDoc struct {
	ID          string             `yaml:"id"`
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Entry       string             `yaml:"entry"`
	When        whenDoc            `yaml:"when"`
	Steps       []yaml.Node        `yaml:"steps"`
	Decision    []decisionBlockDoc `yaml:"decision"`
	Metadata    map[string]string  `yaml:"metadata"`
	Version     string             `yaml:"version"`
}

// LoadPipeline decodes a single Pipeline artifact (spec §3, §4.2),
// accepting both the explicit "new" step format (`- step: {...}`) and
// the flat "legacy" format, which it normalises to the new shape.
func LoadPipeline(source string, data []byte) (*ast.Pipeline, error) {
	_, body, err := decodeDocuments(source, data)
	if err != nil {
		return nil, err
	}
	body = unwrapDocument(body)

	var doc pipelineDoc
	if err := body.Decode(&doc); err != nil {
		return nil, wrapErr(source, body.Line, err)
	}
	if doc.ID == "" {
		return nil, wrapErr(source, body.Line, errors.New("pipeline: missing id"))
	}

	steps, err := decodeSteps(doc.Steps)
	if err != nil {
		return nil, wrapErr(source, body.Line, err)
	}

	astSteps := make([]ast.PipelineStep, 0, len(steps))
	for _, s := range steps {
		step, err := s.toAST()
		if err != nil {
			return nil, wrapErr(source, body.Line, err)
		}
		astSteps = append(astSteps, step)
	}

	decision := make([]ast.PipelineDecisionRule, 0, len(doc.Decision))
	for i, d := range doc.Decision {
		row, err := d.toAST()
		if err != nil {
			return nil, wrapErr(source, body.Line, errors.Wrapf(err, "decision[%d]", i))
		}
		decision = append(decision, ast.PipelineDecisionRule{
			Condition: row.Condition,
			Default:   row.Default,
			Signal:    row.Signal,
			Actions:   row.Actions,
			Reason:    row.Reason,
		})
	}

	entry := doc.Entry
	if entry == "" && len(astSteps) > 0 {
		entry = astSteps[0].ID
	}

	if doc.Version == "" {
		doc.Version = "0.1"
	}
	if err := validateVersion(source, doc.Version); err != nil {
		return nil, err
	}

	var whenBlock *ast.WhenBlock
	if doc.When.ConditionGroup != nil || doc.When.EventType != "" {
		wb := doc.When.WhenBlock
		whenBlock = &wb
	}

	return &ast.Pipeline{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Entry:       entry,
		When:        whenBlock,
		Steps:       astSteps,
		Decision:    decision,
		Metadata:    doc.Metadata,
		Version:     doc.Version,
	}, nil
}

// decodeSteps distinguishes each list entry as new-format
// (`{step: {...}}`) or legacy, normalising legacy entries to stepDoc.
func decodeSteps(nodes []yaml.Node) ([]stepDoc, error) {
	legacy := make([]yaml.Node, 0, len(nodes))
	out := make([]stepDoc, 0, len(nodes))

	for i := range nodes {
		n := &nodes[i]
		if n.Kind != yaml.MappingNode {
			return nil, errors.Errorf("steps[%d]: expected a mapping", i)
		}
		var m map[string]yaml.Node
		if err := n.Decode(&m); err != nil {
			return nil, err
		}
		if inner, ok := m["step"]; ok {
			var sd stepDoc
			if err := inner.Decode(&sd); err != nil {
				return nil, errors.Wrapf(err, "steps[%d]", i)
			}
			out = append(out, sd)
			continue
		}
		legacy = append(legacy, *n)
		out = append(out, stepDoc{})
	}

	// Normalise legacy entries in a second pass so that auto-generated
	// ids/next-links can be assigned positionally.
	legacyIdx := 0
	for i := range nodes {
		if out[i].ID != "" || out[i].Type != "" {
			continue // already populated from a `step:` wrapper above
		}
		sd, err := decodeLegacyStep(&legacy[legacyIdx], i, len(nodes))
		if err != nil {
			return nil, err
		}
		out[i] = sd
		legacyIdx++
	}

	return out, nil
}

// decodeLegacyStep normalises one flat legacy step entry (spec §4.2:
// "flat step array with type: or shorthand keys branch:, include:,
// parallel:") into the new stepDoc shape, synthesising a sequential
// next link when the entry doesn't specify one.
func decodeLegacyStep(node *yaml.Node, index, total int) (stepDoc, error) {
	var m map[string]yaml.Node
	if err := node.Decode(&m); err != nil {
		return stepDoc{}, err
	}

	autoID := fmt.Sprintf("step_%d", index)
	autoNext := "end"
	if index < total-1 {
		autoNext = fmt.Sprintf("step_%d", index+1)
	}

	if branch, ok := m["branch"]; ok {
		return decodeLegacyBranch(&branch, autoID, autoNext)
	}
	if include, ok := m["include"]; ok {
		var subID string
		if err := include.Decode(&subID); err != nil {
			return stepDoc{}, errors.Wrapf(err, "steps[%d].include", index)
		}
		return stepDoc{ID: autoID, Type: string(ast.StepPipeline), SubPipelineID: subID, Next: autoNext}, nil
	}
	if _, ok := m["parallel"]; ok {
		// The VM is single-threaded cooperative (spec §5); a legacy
		// "parallel" shorthand has no true concurrent execution to
		// normalise to, so it degrades to a sequential no-op marker
		// step that simply advances to the next link.
		return stepDoc{ID: autoID, Type: string(ast.StepExtract), Next: autoNext}, nil
	}

	var sd stepDoc
	if err := node.Decode(&sd); err != nil {
		return stepDoc{}, errors.Wrapf(err, "steps[%d]", index)
	}
	if sd.ID == "" {
		sd.ID = autoID
	}
	if sd.Next == "" && sd.Type != string(ast.StepRouter) {
		sd.Next = autoNext
	}
	return sd, nil
}

// decodeLegacyBranch maps the legacy `branch: {when, then, else}`
// shorthand onto a single-route router step.
func decodeLegacyBranch(branch *yaml.Node, autoID, autoNext string) (stepDoc, error) {
	var b struct {
		When whenDoc `yaml:"when"`
		Then string  `yaml:"then"`
		Else string  `yaml:"else"`
	}
	if err := branch.Decode(&b); err != nil {
		return stepDoc{}, errors.Wrap(err, "branch")
	}
	def := b.Else
	if def == "" {
		def = autoNext
	}
	return stepDoc{
		ID:      autoID,
		Type:    string(ast.StepRouter),
		Routes:  []routeDoc{{Next: b.Then, When: b.When}},
		Default: def,
	}, nil
}
