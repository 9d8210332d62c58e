package ai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"doc-analysis-platform/internal/logger"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
)

type scriptedAnalyzer struct {
	errs  []error
	text  string
	calls int
}

func (s *scriptedAnalyzer) Analyze(ctx context.Context, prompt string) (string, error) {
	s.calls++
	if s.calls <= len(s.errs) {
		return "", s.errs[s.calls-1]
	}
	return s.text, nil
}

func TestComposePrompt(t *testing.T) {
	if got := ComposePrompt("Summarize", "body"); got != "Summarize\n\nbody" {
		t.Errorf("ComposePrompt() = %q", got)
	}
	if got := ComposePrompt("", ""); got != "\n\n" {
		t.Errorf("ComposePrompt(empty) = %q", got)
	}
}

func TestWithRetry(t *testing.T) {
	transient := errors.New("503 unavailable")

	tests := []struct {
		name      string
		errs      []error
		retries   int
		wantCalls int
		wantErr   error
	}{
		{"first try", nil, 2, 1, nil},
		{"recovers", []error{transient, transient}, 2, 3, nil},
		{"exhausted", []error{transient, transient, transient}, 2, 3, transient},
		{"breaker open not retried", []error{gobreaker.ErrOpenState}, 3, 1, gobreaker.ErrOpenState},
		{"rate limit not retried", []error{ErrRateLimited}, 3, 1, ErrRateLimited},
		{"no retries", []error{transient}, 0, 1, transient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &scriptedAnalyzer{errs: tt.errs, text: "ok"}
			a := WithRetry(fake, tt.retries, time.Millisecond, logger.Discard())

			got, err := a.Analyze(context.Background(), "p")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Analyze() error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != "ok" {
				t.Errorf("Analyze() = %q, want ok", got)
			}
			if fake.calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", fake.calls, tt.wantCalls)
			}
		})
	}
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	fake := &scriptedAnalyzer{errs: []error{errors.New("boom"), errors.New("boom")}, text: "ok"}
	a := WithRetry(fake, 5, time.Hour, logger.Discard())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := a.Analyze(ctx, "p"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Analyze() error = %v, want deadline exceeded", err)
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
}

func TestQuota(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	q := NewQuota(Limits{RequestsPerMinute: 2, TokensPerMinute: 100, RequestsPerDay: 3})
	q.now = func() time.Time { return now }

	if !q.Allow(50) {
		t.Fatal("fresh quota should allow a request")
	}
	q.Record(60)
	if q.Allow(50) {
		t.Error("token budget should be exhausted for this minute")
	}
	if !q.Allow(40) {
		t.Error("remaining token budget should allow a small request")
	}
	q.Record(10)
	if q.Allow(1) {
		t.Error("request budget should be exhausted for this minute")
	}

	now = now.Add(time.Minute)
	if !q.Allow(50) {
		t.Error("minute window should have reset")
	}
	q.Record(1)
	if q.Allow(1) {
		t.Error("daily request budget should be exhausted")
	}

	now = now.Add(24 * time.Hour)
	if !q.Allow(1) {
		t.Error("day window should have reset")
	}
}

func TestLimitsForTier(t *testing.T) {
	if got := limitsForTier("tier2"); got.RequestsPerMinute != 2000 {
		t.Errorf("tier2 RequestsPerMinute = %d", got.RequestsPerMinute)
	}
	if got := limitsForTier("unknown"); got != limitsForTier("free") {
		t.Errorf("unknown tier = %+v, want free limits", got)
	}
}

func TestResponseText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("# Title\n"), genai.Text("body")}},
		}},
	}
	if got := responseText(resp); got != "# Title\nbody" {
		t.Errorf("responseText() = %q", got)
	}
	if got := responseText(&genai.GenerateContentResponse{}); got != "" {
		t.Errorf("responseText(empty) = %q", got)
	}
	if got := extractTokenUsage(&genai.GenerateContentResponse{UsageMetadata: &genai.UsageMetadata{TotalTokenCount: 42}}); got != 42 {
		t.Errorf("extractTokenUsage() = %d, want 42", got)
	}
}

func TestOpenAIClient(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-test",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  ## Result  "}}],
			"usage":{"prompt_tokens":3,"completion_tokens":2,"total_tokens":5}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "gpt-test", srv.URL, logger.Discard())
	got, err := c.Analyze(context.Background(), "Summarize\n\ntext")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got != "## Result" {
		t.Errorf("Analyze() = %q, want %q", got, "## Result")
	}
	if !strings.Contains(gotBody, `"model":"gpt-test"`) || !strings.Contains(gotBody, `Summarize\n\ntext`) {
		t.Errorf("request body = %s", gotBody)
	}
}

func TestOpenAIClientEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"m","choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("sk-test", "m", srv.URL, logger.Discard())
	if _, err := c.Analyze(context.Background(), "p"); !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("Analyze() error = %v, want ErrEmptyResponse", err)
	}
}

func TestGeminiClientLive(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	c, err := NewGeminiClient(context.Background(), key, "gemini-2.5-flash", "free", logger.Discard())
	if err != nil {
		t.Fatalf("NewGeminiClient() error = %v", err)
	}
	defer c.Close()

	got, err := c.Analyze(context.Background(), ComposePrompt("Reply with the single word OK.", "nothing"))
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got == "" {
		t.Error("Analyze() returned empty text")
	}
}
