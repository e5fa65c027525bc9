package historyquiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

const questionsPayload = `{"questions":[
 {"id":"1","type":"multiple_choice","content":"규장각을 설치한 왕은?","options":["세종","태종","정조","영조"],"answer":"정조","explanation":"정조는 1776년 규장각을 설치했다.","era":"joseon_late","difficulty":"medium","source":"고등 한국사"},
 {"id":"2","type":"ox","content":"고려는 918년에 건국되었다.","answer":"O","explanation":"왕건이 918년에 건국했다.","era":"goryeo","difficulty":"easy"}
]}`

// fakeChatServer answers /v1/chat/completions with content and records the
// last request it saw.
func fakeChatServer(t *testing.T, content string, last *openai.ChatCompletionRequest, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if last != nil {
			if err := json.NewDecoder(r.Body).Decode(last); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}

		resp := openai.ChatCompletionResponse{
			ID:     "chatcmpl-test",
			Object: "chat.completion",
			Model:  "test",
			Choices: []openai.ChatCompletionChoice{{
				Index:        0,
				Message:      openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: content},
				FinishReason: openai.FinishReasonStop,
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestQuestionMakerGenerate(t *testing.T) {
	var req openai.ChatCompletionRequest
	var auth string
	srv := fakeChatServer(t, questionsPayload, &req, &auth)

	qm := &QuestionMaker{BaseURL: srv.URL + "/v1"}
	questions, err := qm.Generate(context.Background(), testConfig(), testLLM)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(questions))
	}
	if questions[0].Answer != "정조" || len(questions[0].Options) != 4 || questions[1].Type != TypeOX {
		t.Errorf("unexpected questions: %+v", questions)
	}

	if auth != "Bearer sk-test" {
		t.Errorf("Authorization = %q", auth)
	}
	if req.Model != DefaultOpenAIModel {
		t.Errorf("model = %q, want %q", req.Model, DefaultOpenAIModel)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != openai.ChatCompletionResponseFormatTypeJSONObject {
		t.Errorf("response format = %+v", req.ResponseFormat)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("messages = %+v", req.Messages)
	}
	if !strings.Contains(req.Messages[1].Content, "3개") {
		t.Errorf("prompt does not carry the count: %s", req.Messages[1].Content)
	}
}

func TestQuestionMakerGrok(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := fakeChatServer(t, questionsPayload, &req, nil)

	qm := &QuestionMaker{BaseURL: srv.URL + "/v1"}
	_, err := qm.Generate(context.Background(), testConfig(), LLMConfig{Provider: ProviderGrok, APIKey: "xai-test"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if req.Model != DefaultGrokModel {
		t.Errorf("model = %q, want %q", req.Model, DefaultGrokModel)
	}
	if !strings.Contains(req.Messages[0].Content, "JSON") {
		t.Errorf("grok system message lacks JSON instruction: %q", req.Messages[0].Content)
	}
}

func TestQuestionMakerCustomModel(t *testing.T) {
	var req openai.ChatCompletionRequest
	srv := fakeChatServer(t, questionsPayload, &req, nil)

	qm := &QuestionMaker{BaseURL: srv.URL + "/v1"}
	llm := testLLM
	llm.Model = "gpt-4o-mini"
	if _, err := qm.Generate(context.Background(), testConfig(), llm); err != nil {
		t.Fatal(err)
	}
	if req.Model != "gpt-4o-mini" {
		t.Errorf("model = %q", req.Model)
	}
}

func TestQuestionMakerAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	qm := &QuestionMaker{BaseURL: srv.URL + "/v1"}
	_, err := qm.Generate(context.Background(), testConfig(), testLLM)
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) || apiErr.HTTPStatusCode != http.StatusUnauthorized {
		t.Errorf("err = %v, want wrapped 401 APIError", err)
	}
}

func TestQuestionMakerEmptyResponse(t *testing.T) {
	srv := fakeChatServer(t, "", nil, nil)

	qm := &QuestionMaker{BaseURL: srv.URL + "/v1"}
	_, err := qm.Generate(context.Background(), testConfig(), testLLM)
	if !errors.Is(err, ErrNoResponse) {
		t.Errorf("err = %v, want ErrNoResponse", err)
	}
}

func TestQuestionMakerWritesTranscript(t *testing.T) {
	srv := fakeChatServer(t, questionsPayload, nil, nil)
	dir := t.TempDir()

	qm := &QuestionMaker{BaseURL: srv.URL + "/v1", LogDir: dir}
	if _, err := qm.Generate(context.Background(), testConfig(), testLLM); err != nil {
		t.Fatal(err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.log"))
	if err != nil || len(files) != 1 {
		t.Fatalf("transcripts = %v, %v", files, err)
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"LLM REQUEST (openai)", "LLM RESPONSE (openai)", "Generated 2 questions"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("transcript lacks %q", want)
		}
	}
}

func TestParseQuestions(t *testing.T) {
	if _, err := parseQuestions("  ", "OpenAI"); !errors.Is(err, ErrNoResponse) {
		t.Errorf("blank content: %v", err)
	}
	if _, err := parseQuestions(`{"questions": []}`, "Grok"); !errors.Is(err, ErrNoResponse) {
		t.Errorf("empty list: %v", err)
	}
	_, err := parseQuestions("Sure! Here are your questions:", "Grok")
	if err == nil || !strings.Contains(err.Error(), "failed to parse Grok response") {
		t.Errorf("malformed content: %v", err)
	}
}

func TestParseQuestionsRepairsIDs(t *testing.T) {
	content := `{"questions":[
		{"id":"1","type":"ox","content":"a","answer":"O"},
		{"id":"1","type":"ox","content":"b","answer":"X"},
		{"id":"","type":"ox","content":"c","answer":"O"}
	]}`

	questions, err := parseQuestions(content, "OpenAI")
	if err != nil {
		t.Fatal(err)
	}
	if questions[0].ID != "1" {
		t.Errorf("first id rewritten to %q", questions[0].ID)
	}
	seen := map[string]bool{}
	for _, q := range questions {
		if q.ID == "" || seen[q.ID] {
			t.Errorf("id %q is blank or duplicated", q.ID)
		}
		seen[q.ID] = true
	}
}

func TestBuildPrompt(t *testing.T) {
	cfg := QuizConfig{
		Count:      7,
		Difficulty: DifficultyHard,
		Eras:       []Era{EraGoryeo, EraModern},
		Types:      []QuestionType{TypeShortAnswer, TypeOX},
		Title:      "t",
	}
	prompt := buildPrompt(cfg)

	for _, want := range []string{
		"7개",
		EraDescription(EraGoryeo),
		EraDescription(EraModern),
		TypeDescription(TypeShortAnswer),
		TypeDescription(TypeOX),
		"hard",
		"joseon_late",
		`"questions"`,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt lacks %q", want)
		}
	}

	cfg.Difficulty = DifficultyMixed
	if !strings.Contains(buildPrompt(cfg), "혼합") {
		t.Error("mixed difficulty not described")
	}
}
