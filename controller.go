package historyquiz

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is a step of the quiz lifecycle.
type State string

const (
	StateConfig     State = "config"
	StateGenerating State = "generating"
	StateReady      State = "ready"
	StateQuiz       State = "quiz"
	StateResult     State = "result"
)

// Controller drives one quiz session through
// config → generating → ready → quiz → result.
//
// It is not safe for concurrent use; callers serialize access.
type Controller struct {
	gen      Generator
	sessions *SessionStore
	creds    *CredentialStore

	state     State
	config    QuizConfig
	questions []Question
	answers   AnswerMap
	result    *QuizResult
	errMsg    string
	cursor    int
}

// Snapshot is a read-only view of the controller
type Snapshot struct {
	State         State       `json:"state"`
	Config        QuizConfig  `json:"config"`
	Questions     []Question  `json:"questions"`
	Answers       AnswerMap   `json:"answers"`
	Result        *QuizResult `json:"result,omitempty"`
	Error         string      `json:"error,omitempty"`
	Cursor        int         `json:"currentQuestionIndex"`
	AnsweredCount int         `json:"answeredCount"`
	CanSubmit     bool        `json:"canSubmit"`
}

// NewController creates a controller. When store holds a saved session the
// controller resumes straight into the quiz state with the saved questions
// and answers.
func NewController(ctx context.Context, gen Generator, store Storage) *Controller {
	c := &Controller{
		gen:      gen,
		sessions: NewSessionStore(store),
		creds:    NewCredentialStore(store),
		state:    StateConfig,
		config:   DefaultQuizConfig(),
		answers:  AnswerMap{},
	}

	if saved, ok := c.sessions.LoadQuiz(ctx); ok {
		if saved.Config != nil {
			c.config = *saved.Config
		}
		c.questions = saved.Questions
		c.answers = saved.Answers
		c.state = StateQuiz
		logger.Info().Int("questions", len(saved.Questions)).Int("answers", len(saved.Answers)).Msg("Resumed saved quiz")
	}
	return c
}

func (c *Controller) State() State { return c.state }

func (c *Controller) Questions() []Question { return c.questions }

func (c *Controller) Config() QuizConfig { return c.config }

func (c *Controller) Result() *QuizResult { return c.result }

func (c *Controller) Error() string { return c.errMsg }

func (c *Controller) Cursor() int { return c.cursor }

// Answer returns the stored answer for a question id.
func (c *Controller) Answer(questionID string) string { return c.answers[questionID] }

// CurrentQuestion returns the question under the cursor.
func (c *Controller) CurrentQuestion() (Question, bool) {
	if c.cursor < 0 || c.cursor >= len(c.questions) {
		return Question{}, false
	}
	return c.questions[c.cursor], true
}

// AnsweredCount counts questions with a non-empty answer.
func (c *Controller) AnsweredCount() int {
	n := 0
	for _, q := range c.questions {
		if c.answers[q.ID] != "" {
			n++
		}
	}
	return n
}

// CanSubmit reports whether every question has been answered.
func (c *Controller) CanSubmit() bool {
	return c.state == StateQuiz && len(c.questions) > 0 && c.AnsweredCount() == len(c.questions)
}

// Snapshot copies the current state.
func (c *Controller) Snapshot() Snapshot {
	answers := make(AnswerMap, len(c.answers))
	for k, v := range c.answers {
		answers[k] = v
	}
	questions := make([]Question, len(c.questions))
	copy(questions, c.questions)

	return Snapshot{
		State:         c.state,
		Config:        c.config,
		Questions:     questions,
		Answers:       answers,
		Result:        c.result,
		Error:         c.errMsg,
		Cursor:        c.cursor,
		AnsweredCount: c.AnsweredCount(),
		CanSubmit:     c.CanSubmit(),
	}
}

// RememberedCredentials returns the credentials saved by the last generation.
func (c *Controller) RememberedCredentials(ctx context.Context) (LLMConfig, bool) {
	return c.creds.Load(ctx)
}

// SaveCredentials stores llm for the next configuration screen.
func (c *Controller) SaveCredentials(ctx context.Context, llm LLMConfig) error {
	return c.creds.Save(ctx, llm)
}

// Generate runs config → generating → ready, or back to config with the
// error message attached when validation or generation fails. Valid
// credentials are remembered for the next configuration screen.
func (c *Controller) Generate(ctx context.Context, cfg QuizConfig, llm LLMConfig) error {
	return c.generate(ctx, cfg, llm, true)
}

// GenerateWithoutRemembering is Generate for credentials the caller must not
// see again, such as a key taken from server configuration.
func (c *Controller) GenerateWithoutRemembering(ctx context.Context, cfg QuizConfig, llm LLMConfig) error {
	return c.generate(ctx, cfg, llm, false)
}

func (c *Controller) generate(ctx context.Context, cfg QuizConfig, llm LLMConfig, remember bool) error {
	if c.state != StateConfig {
		return fmt.Errorf("%w: generate from %s", ErrInvalidTransition, c.state)
	}

	c.errMsg = ""
	if err := errors.Join(ValidateQuizConfig(cfg), ValidateLLMConfig(llm)); err != nil {
		c.errMsg = err.Error()
		return err
	}

	if remember {
		if err := c.creds.Save(ctx, llm); err != nil {
			logger.Warn().Err(err).Msg("Failed to save LLM config")
		}
	}

	c.state = StateGenerating
	c.config = cfg
	start := time.Now()

	questions, err := c.gen.Generate(ctx, cfg, llm)
	GenerationDuration.WithLabelValues(string(llm.Provider)).Observe(time.Since(start).Seconds())
	if err != nil {
		GenerationCounter.WithLabelValues(string(llm.Provider), "error").Inc()
		logger.Error().Err(err).Msg("Question generation failed")
		c.questions = nil
		c.errMsg = err.Error()
		c.state = StateConfig
		return err
	}
	GenerationCounter.WithLabelValues(string(llm.Provider), "ok").Inc()

	c.questions = questions
	c.answers = AnswerMap{}
	c.result = nil
	c.cursor = 0
	c.state = StateReady
	c.persist(ctx)
	return nil
}

// Start moves ready → quiz.
func (c *Controller) Start() error {
	if c.state != StateReady {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, c.state)
	}
	c.state = StateQuiz
	return nil
}

// SetAnswer upserts the answer for questionID and persists the session.
func (c *Controller) SetAnswer(ctx context.Context, questionID, value string) error {
	if c.state != StateQuiz {
		return fmt.Errorf("%w: answer in %s", ErrInvalidTransition, c.state)
	}
	if !c.hasQuestion(questionID) {
		return fmt.Errorf("%w: question %q", ErrNotFound, questionID)
	}
	c.answers[questionID] = value
	c.persist(ctx)
	return nil
}

func (c *Controller) hasQuestion(id string) bool {
	for _, q := range c.questions {
		if q.ID == id {
			return true
		}
	}
	return false
}

// GoToNext advances the cursor, stopping at the last question.
func (c *Controller) GoToNext() { c.GoToIndex(c.cursor + 1) }

// GoToPrev moves the cursor back, stopping at the first question.
func (c *Controller) GoToPrev() { c.GoToIndex(c.cursor - 1) }

// GoToIndex moves the cursor to index clamped to [0, len-1].
func (c *Controller) GoToIndex(index int) {
	last := len(c.questions) - 1
	if index > last {
		index = last
	}
	if index < 0 {
		index = 0
	}
	c.cursor = index
}

// Submit grades the quiz and moves quiz → result. It refuses with
// ErrIncompleteSubmission while any question is unanswered.
func (c *Controller) Submit(ctx context.Context) (QuizResult, error) {
	if c.state != StateQuiz {
		return QuizResult{}, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, c.state)
	}
	if !c.CanSubmit() {
		return QuizResult{}, ErrIncompleteSubmission
	}

	res := CalculateResult(c.questions, c.answers)
	c.result = &res
	c.state = StateResult
	c.clearSaved(ctx)

	SubmissionCounter.Inc()
	ScoreHistogram.Observe(float64(res.Score))
	logger.Info().Int("score", res.Score).Int("correct", res.Correct).Int("total", res.Total).Msg("Quiz submitted")
	return res, nil
}

// Restart replays the same questions: result → quiz with answers cleared.
func (c *Controller) Restart(ctx context.Context) error {
	if c.state != StateResult {
		return fmt.Errorf("%w: restart from %s", ErrInvalidTransition, c.state)
	}
	c.answers = AnswerMap{}
	c.result = nil
	c.cursor = 0
	c.state = StateQuiz
	c.persist(ctx)
	return nil
}

// Reset discards everything and returns to config from any state.
func (c *Controller) Reset(ctx context.Context) {
	c.questions = nil
	c.answers = AnswerMap{}
	c.result = nil
	c.cursor = 0
	c.errMsg = ""
	c.state = StateConfig
	c.clearSaved(ctx)
}

// persist mirrors the session to storage. Failures are logged only.
func (c *Controller) persist(ctx context.Context) {
	if len(c.questions) == 0 {
		return
	}
	cfg := c.config
	err := c.sessions.SaveQuiz(ctx, SavedQuiz{Config: &cfg, Questions: c.questions, Answers: c.answers})
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to save quiz session")
	}
}

func (c *Controller) clearSaved(ctx context.Context) {
	if err := c.sessions.Clear(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to clear quiz session")
	}
}
