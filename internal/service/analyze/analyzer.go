package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"inboxintel/internal/model"
	"inboxintel/pkg/config"
	"inboxintel/pkg/metrics"
)

// EmailContent is one decoded message handed to the analyzer.
type EmailContent struct {
	From    string
	Subject string
	Body    string
}

// GeminiAnalyzer summarizes a single email and proposes at most one
// follow-up action by calling the Gemini generateContent endpoint. The
// caller's open task texts ride along in the prompt so the model suppresses
// actions that duplicate an existing task; there is no local similarity
// check behind it.
type GeminiAnalyzer struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewGeminiAnalyzer(cfg config.GeminiConfig, logger *zap.Logger) *GeminiAnalyzer {
	return &GeminiAnalyzer{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second, // model calls can be slow
		},
		logger: logger,
	}
}

type generateRequest struct {
	Contents []requestContent `json:"contents"`
}

type requestContent struct {
	Parts []requestPart `json:"parts"`
}

type requestPart struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func buildPrompt(email EmailContent, existingTasks []string) string {
	if existingTasks == nil {
		existingTasks = []string{}
	}
	existingJSON, _ := json.Marshal(existingTasks)
	return fmt.Sprintf(`Analyze the following email from %q with the subject %q.
Provide a response as a single, valid JSON object with three keys:
1. "sender": The name of the sender.
2. "summary": A very brief, one-sentence summary of the email.
3. "action": A string containing the single most important actionable item. Carefully check if an action that is semantically identical to this one already exists in the list of existing to-do items below. You must consider minor variations in wording (e.g., "Reply to John" is the same as "Send a reply to John"). If a semantically identical match is found, you MUST set the value to null. Otherwise, provide the action text.

Existing to-do items: %s

Email Content:
%s`, email.From, email.Subject, existingJSON, email.Body)
}

// Analyze runs one synchronous model call for one email. Any transport
// failure, non-200 status, or unparseable output is returned as an error;
// the sync pipeline drops that message rather than retrying.
func (a *GeminiAnalyzer) Analyze(ctx context.Context, email EmailContent, existingTasks []string) (*model.AnalysisResult, error) {
	prompt := buildPrompt(email, existingTasks)

	body, err := json.Marshal(generateRequest{
		Contents: []requestContent{{Parts: []requestPart{{Text: prompt}}}},
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		a.baseURL, a.model, url.QueryEscape(a.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.httpClient.Do(req)
	if err != nil {
		metrics.RecordModelCallLatency(a.model, "error", time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordModelCallLatency(a.model, strconv.Itoa(resp.StatusCode), time.Since(start))
		return nil, fmt.Errorf("model endpoint returned %d", resp.StatusCode)
	}
	metrics.RecordModelCallLatency(a.model, "success", time.Since(start))

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return nil, fmt.Errorf("failed to decode model response: %w", err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("model response has no candidates")
	}

	raw := gr.Candidates[0].Content.Parts[0].Text
	cleaned := strings.TrimSpace(
		strings.ReplaceAll(strings.ReplaceAll(raw, "```json", ""), "```", ""))

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		a.logger.Warn("Model output was not valid JSON",
			zap.String("from", email.From),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to parse model output: %w", err)
	}
	return &result, nil
}
