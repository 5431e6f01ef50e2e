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

package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// MockLLMClient is a deterministic LLMClient for tests and local
// development, mirroring the original Rust source's MockProvider
// (original_source/crates/corint-runtime/src/llm/provider.rs):
// fixed response text plus optional thinking-trace text, gated on
// LLMRequest.EnableThinking.
type MockLLMClient struct {
	Response string
	Thinking string
}

// NewMockLLMClient builds a MockLLMClient with the original's default
// canned response.
func NewMockLLMClient() *MockLLMClient {
	return &MockLLMClient{Response: "Mock LLM response", Thinking: "Mock thinking process..."}
}

func (m *MockLLMClient) Call(_ context.Context, req LLMRequest) (LLMResponse, error) {
	resp := LLMResponse{Text: m.Response, Tokens: 10}
	if req.EnableThinking {
		resp.Thinking = m.Thinking
	}
	return resp, nil
}

// HTTPLLMClient calls an OpenAI-compatible chat completions endpoint
// (OpenAI, DeepSeek, and most self-hosted gateways share this shape;
// the original's provider-per-vendor split collapses to one transport
// here since spec.md commits only to the generic `llm` namespace, not
// to a specific vendor).
type HTTPLLMClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewHTTPLLMClient builds a client against baseURL (e.g.
// "https://api.openai.com/v1") authenticating with apiKey.
func NewHTTPLLMClient(baseURL, apiKey string) *HTTPLLMClient {
	return &HTTPLLMClient{client: &http.Client{Timeout: 30 * time.Second}, baseURL: baseURL, apiKey: apiKey}
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *HTTPLLMClient) Call(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	model := req.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	body, err := json.Marshal(chatCompletionRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return LLMResponse{}, errors.Wrap(err, "marshal llm request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return LLMResponse{}, errors.Wrap(err, "build llm request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return LLMResponse{}, errors.Wrap(err, "call llm provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return LLMResponse{}, errors.Errorf("llm provider returned %d", resp.StatusCode)
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return LLMResponse{}, errors.Wrap(err, "decode llm response")
	}
	if len(parsed.Choices) == 0 {
		return LLMResponse{}, errors.New("llm provider returned no choices")
	}

	out := LLMResponse{Text: parsed.Choices[0].Message.Content, Tokens: parsed.Usage.TotalTokens}
	if req.EnableThinking {
		out.Thinking = parsed.Choices[0].Message.Reasoning
	}
	return out, nil
}
