package redact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/scholar/services/llm"
)

func TestRedactor_Redact(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	tests := []struct {
		name         string
		input        string
		want         string
		wantPatterns []string
		wantClass    string
	}{
		{
			name:      "student question untouched",
			input:     "Summarize student 689cef602490264c7f2dd235 and show G1 G2 G3",
			want:      "Summarize student 689cef602490264c7f2dd235 and show G1 G2 G3",
			wantClass: Public,
		},
		{
			name:         "email",
			input:        "email jdoe@example.com about 689cef602490264c7f2dd235",
			want:         "email [REDACTED:EMAIL_ADDRESS] about 689cef602490264c7f2dd235",
			wantPatterns: []string{"EMAIL_ADDRESS"},
			wantClass:    "pii",
		},
		{
			name:         "aws key outranks phone",
			input:        "key AKIA1234567890123456 call 555-123-4567",
			want:         "key [REDACTED:AWS_ACCESS_KEY_ID] call [REDACTED:PHONE_NUMBER]",
			wantPatterns: []string{"AWS_ACCESS_KEY_ID", "PHONE_NUMBER"},
			wantClass:    "secret",
		},
		{
			name:         "ssn is not a phone",
			input:        "ssn 123-45-6789",
			want:         "ssn [REDACTED:US_SSN]",
			wantPatterns: []string{"US_SSN"},
			wantClass:    "pii",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, findings := r.Redact(tt.input)
			assert.Equal(t, tt.want, got)

			var ids []string
			for _, f := range findings {
				ids = append(ids, f.PatternID)
			}
			assert.Equal(t, tt.wantPatterns, ids)
			assert.Equal(t, tt.wantClass, r.Classify(tt.input))
		})
	}
}

func TestRedactor_CountsRepeats(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	_, findings := r.Redact("a@example.com, b@example.org")
	require.Len(t, findings, 1)
	assert.Equal(t, 2, findings[0].Count)
	assert.Equal(t, High, findings[0].Confidence)
}

func TestFromYAML_Errors(t *testing.T) {
	_, err := FromYAML([]byte("classifications:\n  - name: x\n    patterns:\n      - id: BAD\n        regex: '('\n        confidence: high\n"))
	assert.ErrorContains(t, err, "BAD")

	_, err = FromYAML([]byte("classifications:\n  - name: x\n    patterns:\n      - id: A\n        regex: 'a'\n        confidence: extreme\n"))
	assert.ErrorContains(t, err, "invalid value for confidence")
}

type recordingLLM struct {
	prompt string
}

func (r *recordingLLM) Generate(_ context.Context, prompt string, _ llm.GenerationParams) (*llm.Completion, error) {
	r.prompt = prompt
	return &llm.Completion{Text: "ok", Model: "rec"}, nil
}

func (r *recordingLLM) Model() string { return "rec" }

func TestClient_RedactsBeforeDelegating(t *testing.T) {
	r, err := New()
	require.NoError(t, err)
	next := &recordingLLM{}
	c := NewClient(next, r, nil)

	out, err := c.Generate(context.Background(), "my key is gsk_abcdefghijklmnopqrstuvwx", llm.GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Text)
	assert.Equal(t, "my key is [REDACTED:GROQ_API_KEY]", next.prompt)
	assert.Equal(t, "rec", c.Model())
}
