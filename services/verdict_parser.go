// services/verdict_parser.go
package services

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"eco-quest-system/models"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Verdict kinds produced by the parser and the Gemini client.
const (
	VerdictValid       = "valid"
	VerdictInvalid     = "invalid"
	VerdictNeedsReview = "needs_review"
	VerdictUnknown     = "unknown"
)

// ModelVerdict is what the parser recovers from raw model output, before the
// verdict string is normalized onto the canonical kinds.
type ModelVerdict struct {
	Verdict    string
	Reason     string
	Confidence *float64
}

type modelJSON struct {
	Verdict    string   `json:"verdict"`
	Reason     string   `json:"reason"`
	Confidence *float64 `json:"confidence"`
}

var (
	labeledVerdictPattern = regexp.MustCompile(`(?i)(?:ai karari|verdict)\s*[:\-]\s*([a-z_\s]+)`)
	confidencePattern     = regexp.MustCompile(`(?i)(?:guven|confidence)\s*[:\-]\s*(\d+(?:\.\d+)?)\s*%?`)
)

// The model sometimes answers in Turkish ("AI kararı: ...", "güven: 0.9").
// Lowercase with Turkish casing rules first, then fold diacritics so every
// keyword scan below can stay plain ASCII.
var turkishLower = cases.Lower(language.Turkish)

func lowerFold(s string) string {
	return unidecode.Unidecode(turkishLower.String(s))
}

// ParseModelOutput turns raw model text into a ModelVerdict, or nil when the
// text carries no recognizable signal. It never fails: strategies run in
// order (strict JSON → fenced JSON → labeled text → keyword scan) and the
// first hit wins. A nil result is a normal outcome, not an error.
func ParseModelOutput(raw string) *ModelVerdict {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if v := tryStrictJSON(trimmed); v != nil {
		return v
	}
	if v := tryFencedJSON(trimmed); v != nil {
		return v
	}
	return tryFreeText(trimmed)
}

func tryStrictJSON(text string) *ModelVerdict {
	var out modelJSON
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil
	}
	if out.Verdict == "" && out.Reason == "" && out.Confidence == nil {
		return nil
	}
	return &ModelVerdict{Verdict: out.Verdict, Reason: out.Reason, Confidence: out.Confidence}
}

// tryFencedJSON recovers JSON wrapped in markdown fencing by slicing from the
// first { to the last }.
func tryFencedJSON(text string) *ModelVerdict {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil
	}
	return tryStrictJSON(text[start : end+1])
}

// tryFreeText handles plain-prose replies: a labeled verdict if present,
// otherwise broad keyword presence. Strong negative phrases force the verdict
// to invalid regardless of other signals — wrongly approving bad proof costs
// more than sending good proof to review.
func tryFreeText(text string) *ModelVerdict {
	verdict := tryLabeledVerdict(text)
	if verdict == VerdictUnknown {
		verdict = tryKeywordScan(text)
	}
	if verdict != VerdictInvalid && containsStrongNegativeSignals(text) {
		verdict = VerdictInvalid
	}
	if verdict == VerdictUnknown {
		return nil
	}
	return &ModelVerdict{
		Verdict:    verdict,
		Reason:     text,
		Confidence: extractConfidence(text),
	}
}

func tryLabeledVerdict(text string) string {
	match := labeledVerdictPattern.FindStringSubmatch(lowerFold(text))
	if match == nil || strings.TrimSpace(match[1]) == "" {
		return VerdictUnknown
	}
	return NormalizeVerdict(match[1])
}

func tryKeywordScan(text string) string {
	folded := lowerFold(text)
	switch {
	case containsStrongNegativeSignals(folded):
		return VerdictInvalid
	case strings.Contains(folded, "invalid"), strings.Contains(folded, "reject"):
		return VerdictInvalid
	case strings.Contains(folded, "valid"), strings.Contains(folded, "approve"), strings.Contains(folded, "uygun"):
		return VerdictValid
	case strings.Contains(folded, "review"), strings.Contains(folded, "incele"),
		strings.Contains(folded, "unsure"), strings.Contains(folded, "belirsiz"):
		return VerdictNeedsReview
	default:
		return VerdictUnknown
	}
}

var strongNegativePhrases = []string{
	"does not",
	"no evidence",
	"not evidence",
	"unrelated",
	"irrelevant",
	"cannot see",
	"missing proof",
	"fails to",
}

func containsStrongNegativeSignals(text string) bool {
	lowered := lowerFold(text)
	for _, phrase := range strongNegativePhrases {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}

// extractConfidence pulls a labeled numeric confidence out of free text.
// With a percent sign the value stays on a 0–100 scale (capped); without one,
// values above 1 are treated as percentages and divided down. A bare
// "confidence: 1" is therefore ambiguous (1% vs 100%) — known limitation,
// kept until product clarifies the intended scale.
func extractConfidence(text string) *float64 {
	match := confidencePattern.FindStringSubmatch(lowerFold(text))
	if match == nil {
		return nil
	}
	value, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return nil
	}
	if strings.Contains(match[0], "%") {
		if value > 100 {
			value = 100
		}
	} else if value > 1 {
		value = value / 100
	}
	return &value
}

// NormalizeVerdict folds arbitrary verdict phrasing onto the four canonical
// kinds. Rejection keywords are checked before approval ones so "invalid"
// never matches on its "valid" substring.
func NormalizeVerdict(verdict string) string {
	lowered := lowerFold(verdict)
	switch {
	case strings.Contains(lowered, "invalid"), strings.Contains(lowered, "reject"):
		return VerdictInvalid
	case strings.Contains(lowered, "valid"), strings.Contains(lowered, "approve"):
		return VerdictValid
	case strings.Contains(lowered, "review"), strings.Contains(lowered, "pending"):
		return VerdictNeedsReview
	default:
		return VerdictUnknown
	}
}

// MapVerdictToStatus derives the submission lifecycle status from a verdict.
// Total and pure: every verdict kind maps, anything unrecognized stays
// "submitted" so a human can pick it up later.
func MapVerdictToStatus(verdict string) string {
	switch verdict {
	case VerdictValid:
		return models.StatusApproved
	case VerdictInvalid:
		return models.StatusRejected
	case VerdictNeedsReview:
		return models.StatusPendingReview
	default:
		return models.StatusSubmitted
	}
}
