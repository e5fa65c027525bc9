package historyquiz

import (
	"math"
	"strconv"
	"strings"
)

const (
	symbolO = "○"
	symbolX = "×"
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// IsCorrect grades a raw user answer against the question's canonical answer.
// It has no side effects.
func IsCorrect(q Question, rawAnswer string) bool {
	user := normalize(rawAnswer)
	if user == "" {
		return false
	}
	correct := normalize(q.Answer)

	switch q.Type {
	case TypeOX:
		return user == correct ||
			(correct == "o" && user == symbolO) ||
			(correct == "x" && user == symbolX)

	case TypeMultipleChoice:
		if i := optionIndex(q.Options, correct); i >= 0 {
			letter := strings.ToLower(string(rune('A' + i)))
			number := strconv.Itoa(i + 1)
			return user == correct || user == letter || user == number
		}
		// No option matches the canonical answer; fall through to text matching.
	}

	// Exact match, then canonical-contains-user, then user-contains-canonical.
	return user == correct ||
		strings.Contains(correct, user) ||
		strings.Contains(user, correct)
}

func optionIndex(options []string, normalizedAnswer string) int {
	for i, opt := range options {
		if normalize(opt) == normalizedAnswer {
			return i
		}
	}
	return -1
}

// CalculateResult grades every question in order and summarizes the run.
// An empty question set scores 0.
func CalculateResult(questions []Question, answers AnswerMap) QuizResult {
	res := QuizResult{
		Total:   len(questions),
		Answers: make([]UserAnswer, 0, len(questions)),
	}

	for _, q := range questions {
		answer := answers[q.ID]
		if answer == "" {
			res.Unanswered++
			res.Answers = append(res.Answers, UserAnswer{QuestionID: q.ID, Answer: answer})
			continue
		}

		ok := IsCorrect(q, answer)
		if ok {
			res.Correct++
		} else {
			res.Wrong++
		}
		res.Answers = append(res.Answers, UserAnswer{QuestionID: q.ID, Answer: answer, IsCorrect: ok})
	}

	if res.Total > 0 {
		res.Score = int(math.Floor(float64(res.Correct)/float64(res.Total)*100 + 0.5))
	}
	return res
}
