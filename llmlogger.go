package historyquiz

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// GenerationLog records every LLM interaction of one generation run
type GenerationLog struct {
	out   *lumberjack.Logger
	mu    sync.Mutex
	runID string
}

// NewGenerationLog creates a transcript at <dir>/<runID>.log
func NewGenerationLog(dir, runID string, cfg QuizConfig, llm LLMConfig) (*GenerationLog, error) {
	if dir == "" {
		dir = "log"
	}

	gl := &GenerationLog{
		out: &lumberjack.Logger{
			Filename:   filepath.Join(dir, fmt.Sprintf("%s.log", runID)),
			MaxSize:    5, // megabytes
			MaxBackups: 2,
		},
		runID: runID,
	}

	// Write header with generation parameters
	eras := make([]string, 0, len(cfg.Eras))
	for _, e := range cfg.Eras {
		eras = append(eras, string(e))
	}
	types := make([]string, 0, len(cfg.Types))
	for _, t := range cfg.Types {
		types = append(types, string(t))
	}

	if err := gl.Logf("=== Quiz Generation Log ===\n"); err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	gl.Logf("Run ID: %s\n", runID)
	gl.Logf("Title: %s\n", cfg.Title)
	gl.Logf("Number of Questions: %d\n", cfg.Count)
	gl.Logf("Difficulty: %s\n", cfg.Difficulty)
	gl.Logf("Eras: %s\n", strings.Join(eras, ", "))
	gl.Logf("Types: %s\n", strings.Join(types, ", "))
	gl.Logf("Provider: %s (model %s)\n", llm.Provider, llm.Model)
	gl.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	gl.Logf("========================\n\n")

	return gl, nil
}

// Logf writes a formatted log entry with timestamp
func (gl *GenerationLog) Logf(format string, args ...interface{}) error {
	gl.mu.Lock()
	defer gl.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	_, err := fmt.Fprintf(gl.out, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	return err
}

// LogLLMRequest logs an LLM request
func (gl *GenerationLog) LogLLMRequest(provider, prompt string) {
	gl.Logf("=== LLM REQUEST (%s) ===\n", provider)
	gl.Logf("Prompt:\n%s\n", prompt)
	gl.Logf("=====================\n\n")
}

// LogLLMResponse logs an LLM response
func (gl *GenerationLog) LogLLMResponse(provider, response string) {
	gl.Logf("=== LLM RESPONSE (%s) ===\n", provider)
	gl.Logf("Response:\n%s\n", response)
	gl.Logf("======================\n\n")
}

// LogOutcome logs how the run ended
func (gl *GenerationLog) LogOutcome(numQuestions int, err error) {
	if err != nil {
		gl.Logf("FAILED: %v\n", err)
		return
	}
	gl.Logf("Generated %d questions\n", numQuestions)
}

// Close closes the log file
func (gl *GenerationLog) Close() error {
	if gl == nil || gl.out == nil {
		return nil
	}
	gl.Logf("=== Quiz Generation Complete ===\n")
	gl.Logf("Completed: %s\n", time.Now().Format(time.RFC3339))
	gl.Logf("=============================\n")

	gl.mu.Lock()
	defer gl.mu.Unlock()
	return gl.out.Close()
}
