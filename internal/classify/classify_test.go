package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SyedAaraiz0050/territory-intel/pkg/anthropic"
)

const goodJSON = `{
	"industry_bucket": "Trades",
	"mobility_fit": 4,
	"security_fit": 2,
	"voip_fit": 3,
	"fleet_attach": true,
	"signal_after_hours": false,
	"signal_dispatch": true,
	"signal_field_work": true,
	"rationale": "Field crews with dispatch needs."
}`

func TestParse_StrictJSON(t *testing.T) {
	cls, err := Parse(goodJSON)
	require.NoError(t, err)

	assert.Equal(t, "Trades", cls.IndustryBucket)
	assert.Equal(t, 4, cls.MobilityFit)
	assert.True(t, cls.FleetAttach)
	assert.True(t, cls.SignalDispatch)
}

func TestParse_StripsMarkdownFences(t *testing.T) {
	cls, err := Parse("```json\n" + goodJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "Trades", cls.IndustryBucket)
}

func TestParse_ExtractsObjectFromProse(t *testing.T) {
	cls, err := Parse("Here is the classification you asked for:\n" + goodJSON + "\nHope that helps!")
	require.NoError(t, err)
	assert.Equal(t, "Trades", cls.IndustryBucket)
}

func TestParse_RepairsLooseTypes(t *testing.T) {
	raw := `{
		"industry_bucket": "  Logistics  ",
		"mobility_fit": "4/5",
		"security_fit": 7,
		"voip_fit": 2.6,
		"fleet_attach": "yes",
		"signal_after_hours": 1,
		"signal_dispatch": "false",
		"signal_field_work": true,
		"rationale": "Trucks on the road all day."
	}`

	cls, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "Logistics", cls.IndustryBucket)
	assert.Equal(t, 4, cls.MobilityFit)
	assert.Equal(t, 5, cls.SecurityFit) // clamped from 7
	assert.Equal(t, 3, cls.VoIPFit)     // rounded from 2.6
	assert.True(t, cls.FleetAttach)
	assert.True(t, cls.SignalAfterHours)
	assert.False(t, cls.SignalDispatch)
}

func TestParse_RepairFillsDefaults(t *testing.T) {
	cls, err := Parse(`{"mobility_fit": 3, "extra_key": "ignored"}`)
	require.NoError(t, err)

	assert.Equal(t, "Unknown", cls.IndustryBucket)
	assert.Equal(t, 3, cls.MobilityFit)
	assert.Equal(t, "No rationale provided.", cls.Rationale)
}

func TestParse_TruncatesLongRationale(t *testing.T) {
	long := strings.Repeat("x", 600)
	cls, err := Parse(`{"industry_bucket": "Trades", "rationale": "` + long + `"}`)
	require.NoError(t, err)
	assert.Len(t, cls.Rationale, 400)
}

func TestParse_NotJSONFails(t *testing.T) {
	_, err := Parse("I could not classify this business.")
	assert.Error(t, err)
}

// fakeClient returns a canned response and records requests.
type fakeClient struct {
	response string
	requests []anthropic.MessageRequest
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.requests = append(f.requests, req)
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.response}},
		Usage:   anthropic.TokenUsage{InputTokens: 100, OutputTokens: 50},
	}, nil
}

func TestAnthropicClassifier_Classify(t *testing.T) {
	fake := &fakeClient{response: goodJSON}
	c := NewAnthropic(fake, "claude-haiku-4-5-20251001", 512)

	cls, usage, err := c.Classify(context.Background(), Input{
		Name:         "Avalon Plumbing",
		Address:      "12 Water St, St. John's",
		Category:     "plumber",
		Website:      "https://avalonplumbing.example",
		HomepageText: "We fix pipes across the Avalon.",
	})

	require.NoError(t, err)
	assert.Equal(t, "Trades", cls.IndustryBucket)
	assert.Equal(t, int64(100), usage.InputTokens)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "claude-haiku-4-5-20251001", req.Model)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "Avalon Plumbing")
}
