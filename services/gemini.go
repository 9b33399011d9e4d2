// services/gemini.go
package services

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"eco-quest-system/models"
	"eco-quest-system/utils"
)

const (
	defaultGeminiModel   = "gemini-2.5-flash-lite"
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultInlineLimit   = 12 * 1024 * 1024 // inline proof ceiling for the model
	defaultMaxAttempts   = 3
)

// GeminiDecision is the model's judgement of one submission's proof. Raw
// keeps the untouched response text so ambiguous verdicts can be audited.
type GeminiDecision struct {
	Verdict    string   `json:"verdict"`
	Confidence *float64 `json:"confidence,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Model      string   `json:"model,omitempty"`
	Raw        string   `json:"raw,omitempty"`
}

// GeminiConfig carries everything the verification client needs. Explicit
// struct instead of scattered env reads so tests can point it at a fake
// endpoint with a zero backoff.
type GeminiConfig struct {
	APIKey      string
	ModelID     string
	BaseURL     string
	InlineLimit int64
	MaxAttempts int
	Backoff     utils.Backoff
}

// GeminiConfigFromEnv reads the deployment configuration. Defaults are filled
// in by NewGeminiClient.
func GeminiConfigFromEnv() GeminiConfig {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("GOOGLE_GEMINI_API_KEY")
	}
	return GeminiConfig{
		APIKey:  key,
		ModelID: os.Getenv("GEMINI_MODEL_ID"),
	}
}

// GeminiClient calls the generateContent endpoint to judge proof validity.
type GeminiClient struct {
	cfg    GeminiConfig
	client *http.Client
}

func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	if cfg.ModelID == "" {
		cfg.ModelID = defaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultGeminiBaseURL
	}
	if cfg.InlineLimit <= 0 {
		cfg.InlineLimit = defaultInlineLimit
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.Backoff == nil {
		cfg.Backoff = utils.LinearBackoff(600 * time.Millisecond)
	}
	return &GeminiClient{cfg: cfg, client: utils.HTTPClient}
}

// ProofValidationInput describes one submission for the model to judge.
type ProofValidationInput struct {
	ProofURL string
	TaskID   *string
	Task     *models.Task
	UserID   string
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

// ValidateProof asks Gemini whether the proof matches the task. Failures
// never surface as errors: a missing key, an exhausted retry budget, a
// non-2xx status or an unparseable reply all come back as an "unknown"
// decision so the submission pipeline still persists an auditable record.
// Rate limiting (429) and transport failures are retried with linear backoff;
// any other upstream error returns immediately.
func (g *GeminiClient) ValidateProof(input ProofValidationInput) GeminiDecision {
	if g.cfg.APIKey == "" {
		return GeminiDecision{Verdict: VerdictUnknown, Reason: "gemini api key missing"}
	}

	payload := g.buildPayload(input)
	body, err := json.Marshal(payload)
	if err != nil {
		return GeminiDecision{Verdict: VerdictUnknown, Reason: "failed to encode gemini request", Model: g.cfg.ModelID}
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.cfg.BaseURL, g.cfg.ModelID, g.cfg.APIKey)

	var decision GeminiDecision
	err = utils.WithRetry(g.cfg.MaxAttempts, g.cfg.Backoff, func(attempt int) (bool, error) {
		resp, err := g.client.Post(endpoint, "application/json", bytes.NewReader(body))
		if err != nil {
			return true, fmt.Errorf("gemini request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			log.Printf("⏳ [GEMINI] rate limited, attempt %d", attempt)
			return true, fmt.Errorf("gemini error %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			// hard upstream error: reported as a verdict, no retry
			decision = GeminiDecision{
				Verdict: VerdictUnknown,
				Reason:  fmt.Sprintf("gemini error %d", resp.StatusCode),
				Model:   g.cfg.ModelID,
			}
			return false, nil
		}

		var modelResp struct {
			Candidates []struct {
				Content struct {
					Parts []struct {
						Text string `json:"text"`
					} `json:"parts"`
				} `json:"content"`
			} `json:"candidates"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&modelResp); err != nil {
			decision = GeminiDecision{
				Verdict: VerdictUnknown,
				Reason:  "gemini response unreadable",
				Model:   g.cfg.ModelID,
			}
			return false, nil
		}

		var texts []string
		for _, cand := range modelResp.Candidates {
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					texts = append(texts, part.Text)
				}
			}
		}
		decision = g.decisionFromText(strings.TrimSpace(strings.Join(texts, "")))
		return false, nil
	})
	if err != nil {
		return GeminiDecision{Verdict: VerdictUnknown, Reason: err.Error(), Model: g.cfg.ModelID}
	}
	return decision
}

func (g *GeminiClient) decisionFromText(rawText string) GeminiDecision {
	parsed := ParseModelOutput(rawText)
	if parsed == nil {
		return GeminiDecision{
			Verdict: VerdictUnknown,
			Reason:  "gemini response not json",
			Model:   g.cfg.ModelID,
			Raw:     rawText,
		}
	}
	return GeminiDecision{
		Verdict:    NormalizeVerdict(parsed.Verdict),
		Confidence: parsed.Confidence,
		Reason:     parsed.Reason,
		Model:      g.cfg.ModelID,
		Raw:        rawText,
	}
}

func (g *GeminiClient) buildPayload(input ProofValidationInput) map[string]interface{} {
	var details []string
	if input.Task != nil && input.Task.Name != "" {
		details = append(details, "Task: "+input.Task.Name)
	}
	if input.Task != nil && input.Task.Desc != "" {
		details = append(details, "Task description: "+input.Task.Desc)
	}
	if input.TaskID != nil {
		details = append(details, "Task ID: "+*input.TaskID)
	}

	instructions := strings.Join([]string{
		"You validate sustainability challenge proofs.",
		`Return strict JSON: { "verdict": "valid|invalid|needs_review", "reason": string, "confidence": number }.`,
		"Use needs_review when unsure.",
	}, " ")

	prompt := fmt.Sprintf("%s\n\nUser ID: %s\nProof URL: %s\n%s",
		instructions, input.UserID, input.ProofURL, strings.Join(details, "\n"))

	parts := []geminiPart{{Text: prompt}}
	if inline := g.fetchInlineProof(input.ProofURL); inline != nil {
		parts = append(parts, geminiPart{InlineData: inline})
	}

	return map[string]interface{}{
		"contents": []map[string]interface{}{
			{"role": "user", "parts": parts},
		},
	}
}

// fetchInlineProof downloads the proof and returns it base64-encoded when the
// model can inspect it directly: images and PDFs under the inline ceiling.
// Any failure just means the model judges the URL string alone.
func (g *GeminiClient) fetchInlineProof(proofURL string) *geminiInlineData {
	resp, err := g.client.Get(proofURL)
	if err != nil {
		log.Printf("⚠️ [GEMINI] inline proof fetch error: %v", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("⚠️ [GEMINI] proof fetch failed: %d", resp.StatusCode)
		return nil
	}

	mimeType := strings.TrimSpace(strings.Split(resp.Header.Get("Content-Type"), ";")[0])
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if !strings.HasPrefix(mimeType, "image/") && mimeType != "application/pdf" {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, g.cfg.InlineLimit+1))
	if err != nil {
		return nil
	}
	if int64(len(data)) > g.cfg.InlineLimit {
		log.Printf("⚠️ [GEMINI] proof too big for inline pass")
		return nil
	}

	return &geminiInlineData{
		MimeType: mimeType,
		Data:     base64.StdEncoding.EncodeToString(data),
	}
}
