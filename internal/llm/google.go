package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// googleProvider implements Provider using the Gemini generateContent REST API.
type googleProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  http.Client
}

type googleRequest struct {
	Contents          []googleContent  `json:"contents"`
	SystemInstruction *googleContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *googleGenConfig `json:"generationConfig,omitempty"`
}

type googleContent struct {
	Parts []googlePart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type googlePart struct {
	Text string `json:"text"`
}

type googleGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata,omitempty"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *googleProvider) Name() string {
	return "google/" + g.model
}

func (g *googleProvider) Complete(ctx context.Context, prompt string, opts CompletionOpts) (Completion, error) {
	model := firstNonEmpty(opts.Model, g.model)

	req := googleRequest{
		GenerationConfig: &googleGenConfig{
			MaxOutputTokens: opts.MaxTokens,
			Temperature:     opts.Temperature,
		},
	}
	for _, m := range opts.History {
		role := "user"
		if m.Role == RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, googleContent{Parts: []googlePart{{Text: m.Text}}, Role: role})
	}
	req.Contents = append(req.Contents, googleContent{Parts: []googlePart{{Text: prompt}}, Role: "user"})

	if opts.System != "" {
		req.SystemInstruction = &googleContent{Parts: []googlePart{{Text: opts.System}}}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return Completion{}, fmt.Errorf("marshaling request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, model, url.QueryEscape(g.apiKey))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Completion{}, fmt.Errorf("google API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var gResp googleResponse
	if err := json.Unmarshal(respBody, &gResp); err != nil {
		return Completion{}, fmt.Errorf("parsing response: %w", err)
	}
	if gResp.Error != nil {
		return Completion{}, fmt.Errorf("google API error: %s (code %d)", gResp.Error.Message, gResp.Error.Code)
	}

	var out Completion
	if u := gResp.UsageMetadata; u != nil {
		out.Usage = Usage{PromptTokens: u.PromptTokenCount, CompletionTokens: u.CandidatesTokenCount}
	}

	// A blocked prompt comes back with no candidates; that is an answer the
	// guard should replace, not a transport failure.
	if len(gResp.Candidates) == 0 {
		if gResp.PromptFeedback != nil && gResp.PromptFeedback.BlockReason != "" {
			out.FinishReason = FinishSafety
			return out, nil
		}
		return Completion{}, fmt.Errorf("empty response from google API")
	}

	cand := gResp.Candidates[0]
	texts := make([]string, 0, len(cand.Content.Parts))
	for _, p := range cand.Content.Parts {
		texts = append(texts, p.Text)
	}
	out.Text = strings.TrimSpace(strings.Join(texts, ""))
	out.FinishReason = normalizeFinish(cand.FinishReason)
	return out, nil
}
