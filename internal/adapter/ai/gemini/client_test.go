package gemini

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/fairyhunter13/ai-talent-ranker/internal/domain"
)

type fakeModels struct {
	genResp   *genai.GenerateContentResponse
	genErr    error
	embedResp *genai.EmbedContentResponse
	embedErr  error

	gotModel    string
	gotContents []*genai.Content
	gotGenCfg   *genai.GenerateContentConfig
	gotEmbedCfg *genai.EmbedContentConfig
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel, f.gotContents, f.gotGenCfg = model, contents, config
	return f.genResp, f.genErr
}

func (f *fakeModels) EmbedContent(_ context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error) {
	f.gotModel, f.gotContents, f.gotEmbedCfg = model, contents, config
	return f.embedResp, f.embedErr
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	ps := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		ps = append(ps, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: ps}}}}
}

func TestGenerate_JoinsParts(t *testing.T) {
	fm := &fakeModels{genResp: textResponse(`{"experience":`, ` 9}`)}
	c := NewClient(fm, "")

	out, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"experience": 9}`, out)
	assert.Equal(t, defaultModel, fm.gotModel)
	require.Len(t, fm.gotContents, 1)
	assert.Equal(t, "prompt", fm.gotContents[0].Parts[0].Text)
}

func TestGenerate_SafetyBlockNone(t *testing.T) {
	fm := &fakeModels{genResp: textResponse("ok")}
	_, err := NewClient(fm, "gemini-1.5-flash").Generate(context.Background(), "p")
	require.NoError(t, err)

	require.NotNil(t, fm.gotGenCfg)
	require.Len(t, fm.gotGenCfg.SafetySettings, 4)
	for _, s := range fm.gotGenCfg.SafetySettings {
		assert.Equal(t, genai.HarmBlockThresholdBlockNone, s.Threshold)
	}
}

func TestGenerate_EmptyResponse(t *testing.T) {
	fm := &fakeModels{genResp: &genai.GenerateContentResponse{}}
	out, err := NewClient(fm, "").Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGenerate_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"429", genai.APIError{Code: http.StatusTooManyRequests, Message: "quota"}, domain.ErrUpstreamRateLimit},
		{"resource exhausted", genai.APIError{Code: 400, Status: "RESOURCE_EXHAUSTED"}, domain.ErrUpstreamRateLimit},
		{"deadline", context.DeadlineExceeded, domain.ErrUpstreamTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := &fakeModels{genErr: tt.err}
			_, err := NewClient(fm, "").Generate(context.Background(), "p")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestGenerate_OtherErrorNotRateLimit(t *testing.T) {
	fm := &fakeModels{genErr: genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED"}}
	_, err := NewClient(fm, "").Generate(context.Background(), "p")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrUpstreamRateLimit))
}

func TestNewModels_RequiresKey(t *testing.T) {
	_, err := NewModels(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
