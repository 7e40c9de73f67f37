// Package classify turns a business profile plus homepage text into a
// structured Classification via the Anthropic API.
package classify

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"

	"github.com/SyedAaraiz0050/territory-intel/internal/model"
	"github.com/SyedAaraiz0050/territory-intel/pkg/anthropic"
)

// Classifier produces a classification for one business. Implementations must
// be safe for concurrent use.
type Classifier interface {
	Classify(ctx context.Context, in Input) (*model.Classification, anthropic.TokenUsage, error)
}

// Input is everything the model sees about one business.
type Input struct {
	Name         string
	Address      string
	Category     string
	Website      string
	HomepageText string
}

// SchemaViolationError reports classifier output that parsed as JSON but
// failed schema validation even after repair. Callers treat it as a permanent
// failure for the record, not a transient one.
type SchemaViolationError struct {
	Err error
	Raw string
}

func (e *SchemaViolationError) Error() string {
	return "classify: output violates schema: " + e.Err.Error()
}

func (e *SchemaViolationError) Unwrap() error { return e.Err }

const systemPrompt = `You classify local businesses for a telecom territory sales team.
Return ONLY valid JSON. No markdown. No extra text.
Keys required:
industry_bucket, mobility_fit, security_fit, voip_fit, fleet_attach,
signal_after_hours, signal_dispatch, signal_field_work, rationale.
Rules:
- fits are integers 0-5 (0 = no fit, 5 = ideal customer)
- fleet_attach and the signal_* keys are booleans
- rationale <= 400 chars
- Mobility is the highest priority product; then Security, then VoIP, then Fleet.`

var validate = validator.New()

type anthropicClassifier struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropic builds a Classifier on top of the Anthropic messages API.
func NewAnthropic(client anthropic.Client, modelID string, maxTokens int) Classifier {
	if maxTokens <= 0 {
		maxTokens = 512
	}
	return &anthropicClassifier{client: client, model: modelID, maxTokens: int64(maxTokens)}
}

func (c *anthropicClassifier) Classify(ctx context.Context, in Input) (*model.Classification, anthropic.TokenUsage, error) {
	profile, err := json.Marshal(map[string]string{
		"name":          in.Name,
		"address":       in.Address,
		"category":      in.Category,
		"website":       in.Website,
		"homepage_text": in.HomepageText,
	})
	if err != nil {
		return nil, anthropic.TokenUsage{}, eris.Wrap(err, "classify: marshal profile")
	}

	temp := 0.2
	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System: []anthropic.SystemBlock{{
			Text:         systemPrompt,
			CacheControl: &anthropic.CacheControl{TTL: "5m"},
		}},
		Messages: []anthropic.Message{{
			Role:    "user",
			Content: "Business:\n" + string(profile),
		}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, anthropic.TokenUsage{}, err
	}

	cls, err := Parse(resp.Text())
	if err != nil {
		return nil, resp.Usage, err
	}
	return cls, resp.Usage, nil
}

// Parse extracts a Classification from raw model output. It tries a strict
// decode first, then a repair pass that coerces loose numerics and booleans
// before validating.
func Parse(raw string) (*model.Classification, error) {
	raw = extractJSONObject(raw)

	var cls model.Classification
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cls); err == nil {
		if err := validate.Struct(&cls); err == nil {
			cls.Rationale = truncate(strings.TrimSpace(cls.Rationale), 400)
			return &cls, nil
		}
	}

	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		return nil, eris.Wrapf(err, "classify: output not parseable as JSON: %s", truncate(raw, 500))
	}

	repaired := repair(loose)
	if err := validate.Struct(repaired); err != nil {
		return nil, &SchemaViolationError{Err: err, Raw: truncate(raw, 500)}
	}
	return repaired, nil
}

// extractJSONObject strips markdown fences and pulls the first {...} span
// when the model wraps the JSON in extra prose.
func extractJSONObject(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func repair(obj map[string]any) *model.Classification {
	bucket := strings.TrimSpace(asString(obj["industry_bucket"]))
	if bucket == "" {
		bucket = "Unknown"
	}

	rationale := strings.TrimSpace(asString(obj["rationale"]))
	if rationale == "" {
		rationale = "No rationale provided."
	}

	return &model.Classification{
		IndustryBucket:   truncate(bucket, 80),
		MobilityFit:      asFit(obj["mobility_fit"]),
		SecurityFit:      asFit(obj["security_fit"]),
		VoIPFit:          asFit(obj["voip_fit"]),
		FleetAttach:      asBool(obj["fleet_attach"]),
		SignalAfterHours: asBool(obj["signal_after_hours"]),
		SignalDispatch:   asBool(obj["signal_dispatch"]),
		SignalFieldWork:  asBool(obj["signal_field_work"]),
		Rationale:        truncate(rationale, 400),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

// asFit coerces numbers, numeric strings, and booleans onto the 0-5 ordinal
// scale, clamping out-of-range values.
func asFit(v any) int {
	n := 0
	switch t := v.(type) {
	case bool:
		if t {
			n = 5
		}
	case float64:
		n = int(t + 0.5)
	case string:
		n = firstInt(t)
	}
	if n < 0 {
		return 0
	}
	if n > 5 {
		return 5
	}
	return n
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t >= 0.5
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		return s == "true" || s == "yes" || s == "1"
	default:
		return false
	}
}

// firstInt pulls the first integer out of strings like "4", "4/5", or "80%".
func firstInt(s string) int {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			start = i
			break
		}
	}
	if start < 0 {
		return 0
	}
	end := start
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n := 0
	for _, c := range s[start:end] {
		n = n*10 + int(c-'0')
	}
	return n
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
