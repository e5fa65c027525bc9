package historyquiz

import "time"

// QuestionType is the answer format of a question.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeShortAnswer    QuestionType = "short_answer"
	TypeOX             QuestionType = "ox"
)

// Difficulty is the difficulty tag of a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
	// DifficultyMixed is only valid in a QuizConfig.
	DifficultyMixed Difficulty = "mixed"
)

// Era tags a period of Korean history.
type Era string

const (
	EraPrehistoric      Era = "prehistoric"
	EraGojoseon         Era = "gojoseon"
	EraEarlyStates      Era = "early_states"
	EraThreeKingdoms    Era = "three_kingdoms"
	EraUnifiedSilla     Era = "unified_silla"
	EraGoryeo           Era = "goryeo"
	EraJoseonEarly      Era = "joseon_early"
	EraJoseonLate       Era = "joseon_late"
	EraEnlightenment    Era = "enlightenment"
	EraJapaneseColonial Era = "japanese_colonial"
	EraModern           Era = "modern"
	EraAll              Era = "all"
)

// Question represents a single generated quiz question
type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Content     string       `json:"content"`
	Options     []string     `json:"options,omitempty"` // multiple_choice only
	Answer      string       `json:"answer"`
	Explanation string       `json:"explanation"`
	Era         Era          `json:"era"`
	Difficulty  Difficulty   `json:"difficulty"`
	Source      string       `json:"source,omitempty"`
}

// QuizConfig holds the user's parameters for one generation run
type QuizConfig struct {
	Count               int            `json:"count" validate:"min=1,max=50"`
	Difficulty          Difficulty     `json:"difficulty" validate:"oneof=easy medium hard mixed"`
	Eras                []Era          `json:"eras" validate:"min=1,dive,oneof=prehistoric gojoseon early_states three_kingdoms unified_silla goryeo joseon_early joseon_late enlightenment japanese_colonial modern all"`
	Types               []QuestionType `json:"types" validate:"min=1,dive,oneof=multiple_choice short_answer ox"`
	Title               string         `json:"title" validate:"required"`
	IncludeAnswerSheet  bool           `json:"includeAnswerSheet"`
	SeparateAnswerSheet bool           `json:"separateAnswerSheet"`
}

// DefaultQuizConfig returns the configuration shown on a fresh config screen.
func DefaultQuizConfig() QuizConfig {
	return QuizConfig{
		Count:               10,
		Difficulty:          DifficultyMixed,
		Eras:                []Era{EraJoseonLate, EraEnlightenment, EraJapaneseColonial},
		Types:               []QuestionType{TypeMultipleChoice},
		Title:               "한국사 능력검정 대비 문제집",
		IncludeAnswerSheet:  true,
		SeparateAnswerSheet: true,
	}
}

// UserAnswer is the graded record of one question in a result
type UserAnswer struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	IsCorrect  bool   `json:"isCorrect"`
}

// QuizResult is the snapshot computed at submission time
type QuizResult struct {
	Total      int          `json:"total"`
	Correct    int          `json:"correct"`
	Wrong      int          `json:"wrong"`
	Unanswered int          `json:"unanswered"`
	Score      int          `json:"score"` // 0-100
	Answers    []UserAnswer `json:"answers"`
}

// LLMProvider selects the chat-completion backend.
type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderGrok   LLMProvider = "grok"
)

// LLMConfig holds the credentials used for generation
type LLMConfig struct {
	Provider LLMProvider `json:"provider" validate:"oneof=openai grok"`
	APIKey   string      `json:"apiKey" validate:"required"`
	Model    string      `json:"model,omitempty"`
}

// AnswerMap maps a question id to the user's raw answer.
type AnswerMap map[string]string

// savedSession is the persisted form of an in-progress quiz
type savedSession struct {
	Config    *QuizConfig `json:"config,omitempty"`
	Questions []Question  `json:"questions"`
	Answers   [][2]string `json:"answers"` // association list
	Timestamp int64       `json:"timestamp"`
}

// SavedAt reports when the session payload was written.
func (s savedSession) SavedAt() time.Time {
	return time.UnixMilli(s.Timestamp)
}
