package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/genai"
)

type modelsCall struct {
	model    string
	contents []*genai.Content
	config   *genai.GenerateContentConfig
}

type fakeModels struct {
	calls []modelsCall
	resp  *genai.GenerateContentResponse
	err   error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.calls = append(f.calls, modelsCall{model: model, contents: contents, config: config})
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates:    []*genai.Candidate{{Content: content}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{PromptTokenCount: 120, CandidatesTokenCount: 45},
	}
}

func TestGeneratorSendsSystemInstruction(t *testing.T) {
	models := &fakeModels{resp: textResponse(`{"scores": []}`, "  ")}
	g := &Generator{models: models, model: "gemini-test"}

	out, err := g.GenerateContent(context.Background(), Request{System: "system", Prompt: "message", MaxOutputTokens: 2048})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if out.Text != `{"scores": []}` {
		t.Fatalf("unexpected output: %q", out.Text)
	}
	if out.InputTokens != 120 || out.OutputTokens != 45 {
		t.Fatalf("unexpected usage: %+v", out)
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(models.calls))
	}

	call := models.calls[0]
	if call.model != "gemini-test" {
		t.Fatalf("unexpected model %q", call.model)
	}
	if call.config == nil || call.config.SystemInstruction == nil {
		t.Fatalf("expected system instruction to be set")
	}
	if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
		t.Fatalf("unexpected system instruction: %q", got)
	}
	if call.config.MaxOutputTokens != 2048 {
		t.Fatalf("unexpected max output tokens: %d", call.config.MaxOutputTokens)
	}
	if call.config.ResponseMIMEType != "application/json" {
		t.Fatalf("expected json response type, got %q", call.config.ResponseMIMEType)
	}
	if len(call.contents) != 1 || call.contents[0].Parts[0].Text != "message" {
		t.Fatalf("unexpected contents: %+v", call.contents)
	}
}

func TestGeneratorJoinsPartsAndSkipsThoughts(t *testing.T) {
	resp := textResponse("first", "second")
	resp.Candidates[0].Content.Parts = append(resp.Candidates[0].Content.Parts, &genai.Part{Text: "hidden", Thought: true})

	g := &Generator{models: &fakeModels{resp: resp}, model: "m"}
	out, err := g.GenerateContent(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Text != "first\nsecond" {
		t.Fatalf("unexpected joined text %q", out.Text)
	}
}

func TestGeneratorDoesNotRetry(t *testing.T) {
	apiErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	models := &fakeModels{err: apiErr}
	g := &Generator{models: models, model: "m"}

	_, err := g.GenerateContent(context.Background(), Request{System: "sys", Prompt: "msg"})
	if err == nil {
		t.Fatal("expected error")
	}

	var target genai.APIError
	if !errors.As(err, &target) || target.Code != http.StatusInternalServerError {
		t.Fatalf("expected wrapped api error, got %v", err)
	}

	if len(models.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(models.calls))
	}
}

func TestGeneratorRejectsEmptyInputAndOutput(t *testing.T) {
	var nilGen *Generator
	if _, err := nilGen.GenerateContent(context.Background(), Request{Prompt: "x"}); err == nil {
		t.Fatal("expected error for nil generator")
	}

	g := &Generator{models: &fakeModels{resp: textResponse("  ")}, model: "m"}
	if _, err := g.GenerateContent(context.Background(), Request{Prompt: "  "}); err == nil {
		t.Fatal("expected error for empty prompt")
	}

	_, err := g.GenerateContent(context.Background(), Request{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "empty response") {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestNewGeneratorRequiresKey(t *testing.T) {
	if _, err := NewGenerator(context.Background(), " ", ""); err == nil {
		t.Fatal("expected error without api key")
	}
}
