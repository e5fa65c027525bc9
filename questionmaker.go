package historyquiz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// Provider defaults.
const (
	DefaultOpenAIModel = "gpt-5.2"
	DefaultGrokModel   = "grok-3-latest"
	GrokBaseURL        = "https://api.x.ai/v1"
)

// Generator produces a question set for a configuration
type Generator interface {
	Generate(ctx context.Context, cfg QuizConfig, llm LLMConfig) ([]Question, error)
}

// QuestionMaker generates questions through an OpenAI-compatible chat API
type QuestionMaker struct {
	// BaseURL overrides the provider endpoint when set.
	BaseURL string
	// LogDir receives one transcript per run; empty disables transcripts.
	LogDir string
}

// NewQuestionMaker creates a question maker writing transcripts to logDir
func NewQuestionMaker(logDir string) *QuestionMaker {
	return &QuestionMaker{LogDir: logDir}
}

func (qm *QuestionMaker) client(llm LLMConfig) (*openai.Client, string) {
	cfg := openai.DefaultConfig(llm.APIKey)
	model := llm.Model

	switch llm.Provider {
	case ProviderGrok:
		cfg.BaseURL = GrokBaseURL
		if model == "" {
			model = DefaultGrokModel
		}
	default:
		if model == "" {
			model = DefaultOpenAIModel
		}
	}
	if qm.BaseURL != "" {
		cfg.BaseURL = qm.BaseURL
	}
	return openai.NewClientWithConfig(cfg), model
}

// Generate sends one prompt built from cfg and parses the returned question list
func (qm *QuestionMaker) Generate(ctx context.Context, cfg QuizConfig, llm LLMConfig) ([]Question, error) {
	logger.Info().
		Int("count", cfg.Count).
		Str("difficulty", string(cfg.Difficulty)).
		Str("provider", string(llm.Provider)).
		Msg("Generating questions")

	var transcript *GenerationLog
	if qm.LogDir != "" {
		runID := time.Now().Format("20060102-150405") + "-" + uuid.NewString()[:8]
		gl, err := NewGenerationLog(qm.LogDir, runID, cfg, llm)
		if err != nil {
			// Continue without a transcript rather than failing
			logger.Warn().Err(err).Msg("Failed to create generation log")
		} else {
			transcript = gl
			defer transcript.Close()
		}
	}

	prompt := buildPrompt(cfg)
	if transcript != nil {
		transcript.LogLLMRequest(string(llm.Provider), prompt)
	}

	client, model := qm.client(llm)
	systemMsg := "당신은 한국 역사 교육 전문가입니다. 정확하고 교육적인 역사 문제를 생성합니다."
	if llm.Provider == ProviderGrok {
		systemMsg += " 반드시 요청한 JSON 형식으로만 응답하세요."
	}

	resp, err := client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: systemMsg,
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
		},
	)
	if err != nil {
		err = fmt.Errorf("failed to generate questions: %w", err)
		if transcript != nil {
			transcript.LogOutcome(0, err)
		}
		return nil, err
	}

	content := ""
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}
	if transcript != nil {
		transcript.LogLLMResponse(string(llm.Provider), content)
	}

	questions, err := parseQuestions(content, providerName(llm.Provider))
	if transcript != nil {
		transcript.LogOutcome(len(questions), err)
	}
	if err != nil {
		return nil, err
	}

	logger.Info().Int("questions", len(questions)).Msg("Generated questions")
	return questions, nil
}

func providerName(p LLMProvider) string {
	if p == ProviderGrok {
		return "Grok"
	}
	return "OpenAI"
}

// parseQuestions decodes a {"questions": [...]} payload. An empty or
// malformed payload is an error, never an empty set.
func parseQuestions(content, provider string) ([]Question, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w from %s", ErrNoResponse, provider)
	}

	var payload struct {
		Questions []Question `json:"questions"`
	}
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", provider, err)
	}
	if len(payload.Questions) == 0 {
		return nil, fmt.Errorf("%w: %s returned no questions", ErrNoResponse, provider)
	}

	repairIDs(payload.Questions)
	return payload.Questions, nil
}

// repairIDs makes question ids unique within the set
func repairIDs(questions []Question) {
	seen := make(map[string]bool, len(questions))
	for i := range questions {
		id := strings.TrimSpace(questions[i].ID)
		if id == "" || seen[id] {
			id = uuid.NewString()
		}
		questions[i].ID = id
		seen[id] = true
	}
}

func buildPrompt(cfg QuizConfig) string {
	eras := make([]string, 0, len(cfg.Eras))
	for _, e := range cfg.Eras {
		eras = append(eras, EraDescription(e))
	}
	types := make([]string, 0, len(cfg.Types))
	for _, t := range cfg.Types {
		types = append(types, TypeDescription(t))
	}
	difficulty := string(cfg.Difficulty)
	if cfg.Difficulty == DifficultyMixed {
		difficulty = "쉬움/중간/어려움 적절히 혼합"
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("당신은 한국 역사 전문가입니다. 다음 조건에 맞는 한국사 문제를 %d개 생성해주세요.\n\n", cfg.Count))

	sb.WriteString("[출제 조건]\n")
	sb.WriteString(fmt.Sprintf("- 시대: %s\n", strings.Join(eras, ", ")))
	sb.WriteString(fmt.Sprintf("- 문제 유형: %s\n", strings.Join(types, ", ")))
	sb.WriteString(fmt.Sprintf("- 난이도: %s\n", difficulty))
	sb.WriteString(fmt.Sprintf("- 문제 수: %d개\n\n", cfg.Count))

	sb.WriteString("[유효한 era 값] (반드시 아래 값만 사용)\n")
	for _, e := range AllEras {
		sb.WriteString(fmt.Sprintf("- %s (%s)\n", e, EraLabel(e)))
	}
	sb.WriteString("\n")

	sb.WriteString(`[응답 형식 - 반드시 JSON으로만 응답]
{
  "questions": [
    {
      "id": "1",
      "type": "multiple_choice",
      "content": "문제 내용",
      "options": ["보기1", "보기2", "보기3", "보기4"],
      "answer": "정답",
      "explanation": "상세 해설 (왜 정답인지, 관련 역사적 맥락 설명)",
      "era": "joseon_early",
      "difficulty": "medium",
      "source": "출처(교과서명, 연도 등)"
    }
  ]
}

`)

	sb.WriteString("[주의사항]\n")
	sb.WriteString("1. 모든 문제는 한국사 전문가 수준의 정확한 내용이어야 합니다.\n")
	sb.WriteString("2. 해설은 학생이 이해할 수 있도록 구체적으로 작성해주세요.\n")
	sb.WriteString("3. 객관식은 반드시 4개 보기를 제공하고, answer는 보기 중 하나와 정확히 같아야 합니다.\n")
	sb.WriteString("4. OX 문제의 answer는 \"O\" 또는 \"X\"로 작성하세요.\n")
	sb.WriteString("5. 각 문제는 고유한 id(숫자 문자열)를 가져야 합니다.\n")
	sb.WriteString("6. JSON 형식 외의 텍스트는 포함하지 마세요.")

	return sb.String()
}
