package historyquiz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Storage keys. Both live in the same flat store.
const (
	SessionKey    = "history-quiz-current"
	CredentialKey = "history-quiz-llm-config"
)

// SessionStore persists the in-progress quiz under SessionKey
type SessionStore struct {
	store Storage
	now   func() time.Time
}

// NewSessionStore creates a session store on top of s
func NewSessionStore(s Storage) *SessionStore {
	return &SessionStore{store: s, now: time.Now}
}

// SavedQuiz is an in-progress quiz as read back from storage.
type SavedQuiz struct {
	// Config is nil for payloads written without one.
	Config    *QuizConfig
	Questions []Question
	Answers   AnswerMap
	SavedAt   time.Time
}

// Save writes the question set and answers. Answers are stored as an
// association list ordered by question id.
func (ss *SessionStore) Save(ctx context.Context, questions []Question, answers AnswerMap) error {
	return ss.SaveQuiz(ctx, SavedQuiz{Questions: questions, Answers: answers})
}

// SaveQuiz writes q, including its configuration when set.
func (ss *SessionStore) SaveQuiz(ctx context.Context, q SavedQuiz) error {
	ids := make([]string, 0, len(q.Answers))
	for id := range q.Answers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	pairs := make([][2]string, 0, len(ids))
	for _, id := range ids {
		pairs = append(pairs, [2]string{id, q.Answers[id]})
	}

	data, err := json.Marshal(savedSession{
		Config:    q.Config,
		Questions: q.Questions,
		Answers:   pairs,
		Timestamp: ss.now().UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return ss.store.Set(ctx, SessionKey, data)
}

// Load returns the persisted session. ok is false when nothing is stored or
// the payload cannot be decoded; neither case is an error for the caller.
func (ss *SessionStore) Load(ctx context.Context) (questions []Question, answers AnswerMap, ok bool) {
	q, ok := ss.LoadQuiz(ctx)
	return q.Questions, q.Answers, ok
}

// LoadQuiz is Load with the saved configuration and timestamp.
// A payload without questions counts as absent.
func (ss *SessionStore) LoadQuiz(ctx context.Context) (SavedQuiz, bool) {
	data, err := ss.store.Get(ctx, SessionKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn().Err(err).Msg("Failed to read saved session")
		}
		return SavedQuiz{}, false
	}

	var saved savedSession
	if err := json.Unmarshal(data, &saved); err != nil {
		logger.Warn().Err(err).Msg("Discarding malformed saved session")
		return SavedQuiz{}, false
	}
	if len(saved.Questions) == 0 {
		return SavedQuiz{}, false
	}

	answers := make(AnswerMap, len(saved.Answers))
	for _, p := range saved.Answers {
		answers[p[0]] = p[1]
	}

	VerboseLog("Restored session with %d questions saved at %s", len(saved.Questions), saved.SavedAt().Format(time.RFC3339))
	return SavedQuiz{
		Config:    saved.Config,
		Questions: saved.Questions,
		Answers:   answers,
		SavedAt:   saved.SavedAt(),
	}, true
}

// Clear removes the persisted session. Clearing an empty store is a no-op.
func (ss *SessionStore) Clear(ctx context.Context) error {
	return ss.store.Delete(ctx, SessionKey)
}

// CredentialStore remembers the last LLM credentials under CredentialKey
type CredentialStore struct {
	store Storage
}

func NewCredentialStore(s Storage) *CredentialStore {
	return &CredentialStore{store: s}
}

// Load returns the remembered credentials, or ok=false if none are usable.
func (cs *CredentialStore) Load(ctx context.Context) (LLMConfig, bool) {
	data, err := cs.store.Get(ctx, CredentialKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warn().Err(err).Msg("Failed to load LLM config")
		}
		return LLMConfig{}, false
	}

	var cfg LLMConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		logger.Warn().Err(err).Msg("Failed to load LLM config")
		return LLMConfig{}, false
	}
	return cfg, true
}

func (cs *CredentialStore) Save(ctx context.Context, cfg LLMConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal LLM config: %w", err)
	}
	return cs.store.Set(ctx, CredentialKey, data)
}
