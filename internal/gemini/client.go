// Package gemini synthesizes README section content through the Gemini
// generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"time"

	apperrors "git.home.luguber.info/inful/readmegen/internal/errors"
	"git.home.luguber.info/inful/readmegen/internal/observability"
)

// Client is a minimal Gemini REST client. The API key travels in a request
// header, never in the URL, so it cannot leak into access logs.
type Client struct {
	httpClient      *http.Client
	apiURL          string
	apiKey          string
	textModel       string
	structuredModel string
}

// NewClient creates a Gemini client. Empty apiURL and model names fall back
// to the public endpoint and the documented defaults.
func NewClient(apiURL, apiKey, textModel, structuredModel string) *Client {
	if apiURL == "" {
		apiURL = "https://generativelanguage.googleapis.com"
	}
	if textModel == "" {
		textModel = "gemini-2.5-flash"
	}
	if structuredModel == "" {
		structuredModel = "gemini-2.5-pro"
	}
	return &Client{
		httpClient:      &http.Client{Timeout: 120 * time.Second},
		apiURL:          apiURL,
		apiKey:          apiKey,
		textModel:       textModel,
		structuredModel: structuredModel,
	}
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

var stringArraySchema = json.RawMessage(`{"type":"ARRAY","items":{"type":"STRING"}}`)

// generateText runs one generateContent call and returns the concatenated
// candidate text. An empty response yields "".
func (c *Client) generateText(ctx context.Context, model, systemPrompt, prompt string, cfg *generationConfig) (string, error) {
	reqBody := generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: cfg,
	}
	if systemPrompt != "" {
		reqBody.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	u, err := url.Parse(c.apiURL)
	if err != nil {
		return "", err
	}
	u.Path = path.Join(u.Path, fmt.Sprintf("/v1beta/models/%s:generateContent", model))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.RecordUpstreamRequest("gemini", "error")
		return "", apperrors.WrapError(err, apperrors.CategoryGeneration, "content provider unreachable").
			Retryable().
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		observability.RecordUpstreamRequest("gemini", fmt.Sprintf("%d", resp.StatusCode))
		return "", apperrors.GenerationError(fmt.Sprintf("content provider returned status %d", resp.StatusCode)).
			WithContext("model", model).
			WithContext("status", resp.StatusCode).
			Build()
	}
	observability.RecordUpstreamRequest("gemini", "ok")

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", apperrors.WrapError(err, apperrors.CategoryGeneration, "malformed content provider response").
			Retryable().
			WithContext("model", model).
			Build()
	}

	if len(gr.Candidates) == 0 {
		return "", nil
	}
	var out string
	for _, p := range gr.Candidates[0].Content.Parts {
		out += p.Text
	}
	return out, nil
}
