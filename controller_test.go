package historyquiz

import (
	"context"
	"errors"
	"testing"
)

type fakeGenerator struct {
	questions []Question
	err       error
	calls     int
	lastCfg   QuizConfig
	lastLLM   LLMConfig
}

func (f *fakeGenerator) Generate(_ context.Context, cfg QuizConfig, llm LLMConfig) ([]Question, error) {
	f.calls++
	f.lastCfg = cfg
	f.lastLLM = llm
	if f.err != nil {
		return nil, f.err
	}
	return f.questions, nil
}

// failingStorage reads from an in-memory store but rejects every write
type failingStorage struct {
	*MemoryStorage
	writes int
}

func (f *failingStorage) Set(context.Context, string, []byte) error {
	f.writes++
	return errors.New("disk full")
}

func testConfig() QuizConfig {
	cfg := DefaultQuizConfig()
	cfg.Count = 3
	return cfg
}

var testLLM = LLMConfig{Provider: ProviderOpenAI, APIKey: "sk-test"}

func answerAll(t *testing.T, c *Controller) {
	t.Helper()
	ctx := context.Background()
	for _, q := range c.Questions() {
		if err := c.SetAnswer(ctx, q.ID, q.Answer); err != nil {
			t.Fatalf("SetAnswer(%s): %v", q.ID, err)
		}
	}
}

func TestControllerLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	gen := &fakeGenerator{questions: sampleQuestions()}
	c := NewController(ctx, gen, store)

	if c.State() != StateConfig {
		t.Fatalf("initial state = %s", c.State())
	}

	if err := c.Generate(ctx, testConfig(), testLLM); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if c.State() != StateReady {
		t.Fatalf("state after generate = %s", c.State())
	}
	if len(c.Questions()) != 3 || c.Cursor() != 0 {
		t.Fatalf("questions = %d, cursor = %d", len(c.Questions()), c.Cursor())
	}
	if _, _, ok := NewSessionStore(store).Load(ctx); !ok {
		t.Error("generated quiz was not persisted")
	}
	if creds, ok := c.RememberedCredentials(ctx); !ok || creds != testLLM {
		t.Errorf("credentials = %+v, %v", creds, ok)
	}

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != StateQuiz {
		t.Fatalf("state after start = %s", c.State())
	}

	if err := c.SetAnswer(ctx, "1", "3"); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if _, err := c.Submit(ctx); !errors.Is(err, ErrIncompleteSubmission) {
		t.Fatalf("Submit with unanswered questions = %v", err)
	}
	if c.State() != StateQuiz || c.CanSubmit() {
		t.Fatalf("state = %s, canSubmit = %v", c.State(), c.CanSubmit())
	}

	if err := c.SetAnswer(ctx, "2", "세종"); err != nil {
		t.Fatal(err)
	}
	if err := c.SetAnswer(ctx, "3", "×"); err != nil {
		t.Fatal(err)
	}
	if c.AnsweredCount() != 3 || !c.CanSubmit() {
		t.Fatalf("answered = %d, canSubmit = %v", c.AnsweredCount(), c.CanSubmit())
	}

	res, err := c.Submit(ctx)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if c.State() != StateResult {
		t.Fatalf("state after submit = %s", c.State())
	}
	if res.Correct != 2 || res.Wrong != 1 || res.Score != 67 {
		t.Errorf("result = %+v", res)
	}
	if c.Result() == nil || c.Result().Score != 67 {
		t.Errorf("controller result = %+v", c.Result())
	}
	if _, _, ok := NewSessionStore(store).Load(ctx); ok {
		t.Error("session still persisted after submit")
	}

	if err := c.Restart(ctx); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	if c.State() != StateQuiz || c.AnsweredCount() != 0 || c.Result() != nil || c.Cursor() != 0 {
		t.Fatalf("after restart: state=%s answered=%d", c.State(), c.AnsweredCount())
	}
	if len(c.Questions()) != 3 {
		t.Errorf("restart changed questions: %d", len(c.Questions()))
	}
	if _, _, ok := NewSessionStore(store).Load(ctx); !ok {
		t.Error("restarted quiz was not persisted")
	}

	c.Reset(ctx)
	if c.State() != StateConfig || len(c.Questions()) != 0 || c.Error() != "" {
		t.Fatalf("after reset: %+v", c.Snapshot())
	}
	if _, _, ok := NewSessionStore(store).Load(ctx); ok {
		t.Error("session still persisted after reset")
	}
	if gen.calls != 1 {
		t.Errorf("generator called %d times", gen.calls)
	}
}

func TestControllerGenerateFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	gen := &fakeGenerator{err: errors.New("401 unauthorized")}
	c := NewController(ctx, gen, store)

	err := c.Generate(ctx, testConfig(), testLLM)
	if err == nil {
		t.Fatal("expected an error")
	}
	if c.State() != StateConfig {
		t.Errorf("state = %s, want config", c.State())
	}
	if c.Error() == "" {
		t.Error("error message not recorded")
	}
	if len(c.Questions()) != 0 {
		t.Error("questions retained after failure")
	}
	if store.Len() != 1 {
		t.Errorf("store holds %d keys, want only credentials", store.Len())
	}

	gen.err = nil
	gen.questions = sampleQuestions()
	if err := c.Generate(ctx, testConfig(), testLLM); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if c.Error() != "" {
		t.Errorf("error not cleared on retry: %q", c.Error())
	}
}

func TestControllerGenerateWithoutRemembering(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	gen := &fakeGenerator{questions: sampleQuestions()}
	c := NewController(ctx, gen, store)

	if err := c.GenerateWithoutRemembering(ctx, testConfig(), testLLM); err != nil {
		t.Fatal(err)
	}
	if c.State() != StateReady || gen.lastLLM != testLLM {
		t.Fatalf("state = %s, generator got %+v", c.State(), gen.lastLLM)
	}
	if _, ok := c.RememberedCredentials(ctx); ok {
		t.Error("credentials were remembered")
	}
}

func TestControllerGenerateValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		cfg  func(*QuizConfig)
		llm  LLMConfig
	}{
		{"zero count", func(c *QuizConfig) { c.Count = 0 }, testLLM},
		{"too many", func(c *QuizConfig) { c.Count = 51 }, testLLM},
		{"no eras", func(c *QuizConfig) { c.Eras = nil }, testLLM},
		{"unknown era", func(c *QuizConfig) { c.Eras = []Era{"atlantis"} }, testLLM},
		{"no types", func(c *QuizConfig) { c.Types = nil }, testLLM},
		{"bad difficulty", func(c *QuizConfig) { c.Difficulty = "brutal" }, testLLM},
		{"missing key", func(*QuizConfig) {}, LLMConfig{Provider: ProviderOpenAI}},
		{"bad provider", func(*QuizConfig) {}, LLMConfig{Provider: "claude", APIKey: "k"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{questions: sampleQuestions()}
			c := NewController(ctx, gen, NewMemoryStorage())

			cfg := testConfig()
			tt.cfg(&cfg)
			err := c.Generate(ctx, cfg, tt.llm)
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("err = %v, want ErrInvalidConfig", err)
			}
			if gen.calls != 0 {
				t.Error("generator called despite invalid input")
			}
			if c.State() != StateConfig || c.Error() == "" {
				t.Errorf("state = %s, error = %q", c.State(), c.Error())
			}
		})
	}
}

func TestControllerResumesSavedSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	if err := NewSessionStore(store).Save(ctx, sampleQuestions(), AnswerMap{"2": "세종대왕"}); err != nil {
		t.Fatal(err)
	}

	c := NewController(ctx, &fakeGenerator{}, store)
	if c.State() != StateQuiz {
		t.Fatalf("state = %s, want quiz", c.State())
	}
	if len(c.Questions()) != 3 || c.Answer("2") != "세종대왕" || c.AnsweredCount() != 1 {
		t.Errorf("restored %d questions, answers %+v", len(c.Questions()), c.Snapshot().Answers)
	}
}

func TestControllerResumeRestoresConfig(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	cfg := testConfig()
	cfg.Title = "근현대사 점검"
	cfg.IncludeAnswerSheet = false
	c := NewController(ctx, &fakeGenerator{questions: sampleQuestions()}, store)
	if err := c.Generate(ctx, cfg, testLLM); err != nil {
		t.Fatal(err)
	}

	reloaded := NewController(ctx, &fakeGenerator{}, store)
	if got := reloaded.Config(); got.Title != "근현대사 점검" || got.IncludeAnswerSheet {
		t.Errorf("resumed config = %+v", got)
	}
}

func TestControllerIgnoresEmptySession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	if err := store.Set(ctx, SessionKey, []byte(`{"questions":[],"answers":[],"timestamp":1}`)); err != nil {
		t.Fatal(err)
	}

	c := NewController(ctx, &fakeGenerator{}, store)
	if c.State() != StateConfig {
		t.Errorf("state = %s, want config", c.State())
	}
}

func TestControllerSurvivesWriteFailures(t *testing.T) {
	ctx := context.Background()
	store := &failingStorage{MemoryStorage: NewMemoryStorage()}
	c := NewController(ctx, &fakeGenerator{questions: sampleQuestions()}, store)

	if err := c.Generate(ctx, testConfig(), testLLM); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.SetAnswer(ctx, "2", "세종"); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if c.Answer("2") != "세종" || c.State() != StateQuiz {
		t.Errorf("answer = %q, state = %s", c.Answer("2"), c.State())
	}
	if store.writes == 0 {
		t.Error("no write was attempted")
	}
	if store.Len() != 0 {
		t.Errorf("store holds %d keys", store.Len())
	}
}

func TestControllerIgnoresMalformedSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	if err := store.Set(ctx, SessionKey, []byte("][")); err != nil {
		t.Fatal(err)
	}

	c := NewController(ctx, &fakeGenerator{}, store)
	if c.State() != StateConfig {
		t.Errorf("state = %s, want config", c.State())
	}
}

func TestControllerNavigationClamps(t *testing.T) {
	ctx := context.Background()
	c := NewController(ctx, &fakeGenerator{questions: sampleQuestions()}, NewMemoryStorage())
	if err := c.Generate(ctx, testConfig(), testLLM); err != nil {
		t.Fatal(err)
	}

	c.GoToPrev()
	if c.Cursor() != 0 {
		t.Errorf("prev at start: cursor = %d", c.Cursor())
	}
	c.GoToNext()
	c.GoToNext()
	c.GoToNext()
	if c.Cursor() != 2 {
		t.Errorf("next past end: cursor = %d", c.Cursor())
	}
	c.GoToIndex(-5)
	if c.Cursor() != 0 {
		t.Errorf("negative index: cursor = %d", c.Cursor())
	}
	c.GoToIndex(99)
	if c.Cursor() != 2 {
		t.Errorf("large index: cursor = %d", c.Cursor())
	}
	c.GoToIndex(1)
	if q, ok := c.CurrentQuestion(); !ok || q.ID != "2" {
		t.Errorf("current question = %+v, %v", q, ok)
	}
}

func TestControllerInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	c := NewController(ctx, &fakeGenerator{questions: sampleQuestions()}, NewMemoryStorage())

	if err := c.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Start from config = %v", err)
	}
	if _, err := c.Submit(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Submit from config = %v", err)
	}
	if err := c.SetAnswer(ctx, "1", "a"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("SetAnswer from config = %v", err)
	}
	if err := c.Restart(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Restart from config = %v", err)
	}

	if err := c.Generate(ctx, testConfig(), testLLM); err != nil {
		t.Fatal(err)
	}
	if err := c.Generate(ctx, testConfig(), testLLM); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Generate from ready = %v", err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	if err := c.Restart(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Restart from quiz = %v", err)
	}
	if err := c.SetAnswer(ctx, "missing", "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetAnswer unknown id = %v", err)
	}
}

func TestControllerResultNotResumed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()
	c := NewController(ctx, &fakeGenerator{questions: sampleQuestions()}, store)
	if err := c.Generate(ctx, testConfig(), testLLM); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}
	answerAll(t, c)
	if _, err := c.Submit(ctx); err != nil {
		t.Fatal(err)
	}

	reloaded := NewController(ctx, &fakeGenerator{}, store)
	if reloaded.State() != StateConfig {
		t.Errorf("reload after submit: state = %s, want config", reloaded.State())
	}
}

func TestControllerSnapshotIsCopy(t *testing.T) {
	ctx := context.Background()
	c := NewController(ctx, &fakeGenerator{questions: sampleQuestions()}, NewMemoryStorage())
	if err := c.Generate(ctx, testConfig(), testLLM); err != nil {
		t.Fatal(err)
	}
	if err := c.Start(); err != nil {
		t.Fatal(err)
	}

	snap := c.Snapshot()
	snap.Answers["1"] = "tampered"
	snap.Questions[0].Answer = "tampered"

	if c.Answer("1") != "" || c.Questions()[0].Answer == "tampered" {
		t.Error("snapshot mutation leaked into controller")
	}
}
