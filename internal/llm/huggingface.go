package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHuggingFaceURL   = "https://router.huggingface.co/hf-inference"
	defaultHuggingFaceModel = "TinyLlama/TinyLlama-1.1B-Chat-v1.0"
	defaultNewTokens        = 512
)

// chatTemplate is the Zephyr-style turn format TinyLlama-Chat was tuned on.
// Generated text keeps the prompt, so callers strip up to the answer marker.
const chatTemplate = "<|user|>\n%s</s>\n<|assistant|>\n"

// HuggingFace calls the text-generation task of the inference API.
type HuggingFace struct {
	baseURL     string
	token       string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

func NewHuggingFace(cfg Config) *HuggingFace {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultHuggingFaceURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultHuggingFaceModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultNewTokens
	}
	t := cfg.Timeout
	if t == 0 {
		t = 120 * time.Second
	}
	return &HuggingFace{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		token:       apiKey(cfg.APIKeyEnv, "HUGGINGFACEHUB_ACCESS_TOKEN"),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: t},
	}
}

func (c *HuggingFace) Name() string { return "huggingface:" + c.model }

func (c *HuggingFace) Generate(ctx context.Context, prompt string) (string, error) {
	params := map[string]any{
		"max_new_tokens":   c.maxTokens,
		"return_full_text": true,
	}
	if c.temperature > 0 {
		params["temperature"] = c.temperature
		params["do_sample"] = true
	}
	body, err := json.Marshal(map[string]any{
		"inputs":     fmt.Sprintf(chatTemplate, prompt),
		"parameters": params,
		"options":    map[string]any{"wait_for_model": true},
	})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/models/%s", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("huggingface generate: %w", err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("huggingface generate: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("huggingface generate failed: %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return decodeGenerated(payload)
}

// decodeGenerated accepts both the list form and the single-object form.
func decodeGenerated(payload []byte) (string, error) {
	var list []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(payload, &list); err == nil {
		if len(list) == 0 {
			return "", fmt.Errorf("no response from huggingface")
		}
		return list[0].GeneratedText, nil
	}
	var single struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(payload, &single); err != nil {
		return "", fmt.Errorf("decode huggingface response: %w", err)
	}
	return single.GeneratedText, nil
}
