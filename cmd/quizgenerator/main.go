package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"historyquiz"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// quizOutput is what non-interactive runs print to stdout
type quizOutput struct {
	Title     string                 `json:"title"`
	Questions []historyquiz.Question `json:"questions"`
}

func main() {
	env := historyquiz.LoadConfig()
	defaults := historyquiz.DefaultQuizConfig()

	var (
		count      = flag.Int("count", defaults.Count, "Number of questions to generate")
		difficulty = flag.String("difficulty", string(defaults.Difficulty), "Difficulty (easy, medium, hard, mixed)")
		eras       = flag.String("eras", joinEras(defaults.Eras), "Comma-separated eras")
		types      = flag.String("types", string(historyquiz.TypeMultipleChoice), "Comma-separated question types (multiple_choice, short_answer, ox)")
		title      = flag.String("title", defaults.Title, "Quiz title used on exported documents")
		provider   = flag.String("provider", "", "LLM provider (openai, grok)")
		apiKey     = flag.String("api-key", "", "API key (or set OPENAI_API_KEY / XAI_API_KEY)")
		model      = flag.String("model", "", "Model name (provider default when empty)")
		dbPath     = flag.String("db", env.StoreDSN, "Store DSN (sqlite file path by default)")
		pdfDir     = flag.String("pdf-dir", "", "Write question/answer PDFs into this directory")
		fontDir    = flag.String("font-dir", env.FontDir, "Directory containing NanumGothic TTF fonts")
		separate   = flag.Bool("separate-answers", defaults.SeparateAnswerSheet, "Write the answer sheet as its own PDF")
		noAnswers  = flag.Bool("no-answers", false, "Do not export an answer sheet")
		playMode   = flag.Bool("play", false, "Play the quiz interactively")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	level := env.LogLevel
	if *verbose {
		level = "debug"
	}
	log := historyquiz.SetupLogger(level, env.LogFormat)
	historyquiz.SetVerbose(*verbose)

	ctx := context.Background()

	env.StoreDSN = *dbPath
	store, closeStore, err := historyquiz.OpenStorage(ctx, env)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	controller := historyquiz.NewController(ctx, historyquiz.NewQuestionMaker(env.LogDir), store)

	quizCfg := historyquiz.QuizConfig{
		Count:               *count,
		Difficulty:          historyquiz.Difficulty(*difficulty),
		Eras:                parseEras(*eras),
		Types:               parseTypes(*types),
		Title:               *title,
		IncludeAnswerSheet:  !*noAnswers,
		SeparateAnswerSheet: *separate,
	}

	if controller.State() == historyquiz.StateQuiz && *playMode {
		fmt.Println("💾 Resuming your saved quiz")
	} else {
		discardSavedQuiz(ctx, controller, log)

		llm := resolveCredentials(ctx, controller, env, *provider, *apiKey, *model)
		if llm.APIKey == "" && term.IsTerminal(int(os.Stdin.Fd())) {
			llm.APIKey = promptAPIKey(llm.Provider)
		}

		fmt.Fprintf(os.Stderr, "⏳ Generating %d questions... (this may take a moment)\n", quizCfg.Count)
		genCtx, cancel := context.WithTimeout(ctx, env.GenerationTimeout)
		err := controller.Generate(genCtx, quizCfg, llm)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate quiz")
		}
	}

	if *pdfDir != "" {
		if err := exportPDFs(*pdfDir, *fontDir, controller.Questions(), controller.Config()); err != nil {
			log.Error().Err(err).Msg("Failed to export PDFs")
		}
	}

	if !*playMode {
		output, err := json.MarshalIndent(quizOutput{Title: quizCfg.Title, Questions: controller.Questions()}, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to marshal quiz")
		}
		fmt.Println(string(output))
		// Printing is not a quiz session; leave nothing to resume.
		controller.Reset(ctx)
		return
	}

	if controller.State() == historyquiz.StateReady {
		if err := controller.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start quiz")
		}
	}
	playQuiz(ctx, controller)
}

// discardSavedQuiz resets c when it resumed a saved quiz, warning that the
// saved answers are lost. It reports whether anything was discarded.
func discardSavedQuiz(ctx context.Context, c *historyquiz.Controller, log zerolog.Logger) bool {
	if c.State() == historyquiz.StateConfig {
		return false
	}
	log.Warn().
		Int("questions", len(c.Questions())).
		Int("answered", c.AnsweredCount()).
		Msg("Discarding the saved quiz; run with -play to resume it instead")
	c.Reset(ctx)
	return true
}

// resolveCredentials picks flag values first, then environment, then the
// credentials remembered from the last run.
func resolveCredentials(ctx context.Context, c *historyquiz.Controller, env historyquiz.Config, provider, apiKey, model string) historyquiz.LLMConfig {
	llm, ok := env.LLMConfig()
	if !ok {
		llm, _ = c.RememberedCredentials(ctx)
	}
	if provider != "" {
		llm.Provider = historyquiz.LLMProvider(provider)
	}
	if llm.Provider == "" {
		llm.Provider = historyquiz.ProviderOpenAI
	}
	if apiKey != "" {
		llm.APIKey = apiKey
	}
	if model != "" {
		llm.Model = model
	}
	return llm
}

func promptAPIKey(provider historyquiz.LLMProvider) string {
	fmt.Fprintf(os.Stderr, "🔑 %s API key: ", provider)
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(key))
}

func exportPDFs(dir, fontDir string, questions []historyquiz.Question, cfg historyquiz.QuizConfig) error {
	docs, err := historyquiz.NewPDFExporter(fontDir).Bundle(questions, cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create pdf directory: %w", err)
	}
	for _, doc := range docs {
		path := filepath.Join(dir, doc.Name)
		if err := os.WriteFile(path, doc.Data, 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Fprintf(os.Stderr, "📄 Saved %s\n", path)
	}
	return nil
}

func playQuiz(ctx context.Context, c *historyquiz.Controller) {
	scanner := bufio.NewScanner(os.Stdin)
	questions := c.Questions()

	fmt.Printf("🎯 %d questions. Type your answer, or a command:\n", len(questions))
	fmt.Println("   :n next  :p previous  :g <number> go to  :s submit  :q quit (progress is saved)")
	fmt.Println()

	for c.State() == historyquiz.StateQuiz {
		q, _ := c.CurrentQuestion()
		printQuestion(c.Cursor(), len(questions), q, c.Answer(q.ID))

		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())

		switch {
		case input == ":q":
			fmt.Println("💾 Progress saved. Run again with -play to continue.")
			return
		case input == ":n":
			c.GoToNext()
		case input == ":p":
			c.GoToPrev()
		case strings.HasPrefix(input, ":g"):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(input, ":g")))
			if err != nil {
				fmt.Println("Usage: :g <question number>")
				continue
			}
			c.GoToIndex(n - 1)
		case input == ":s":
			res, err := c.Submit(ctx)
			if errors.Is(err, historyquiz.ErrIncompleteSubmission) {
				fmt.Printf("⚠️  %d of %d questions answered. Answer them all before submitting.\n\n", c.AnsweredCount(), len(questions))
				continue
			}
			if err != nil {
				fmt.Printf("❌ %v\n", err)
				continue
			}
			printResult(questions, res)

			fmt.Print("Play the same quiz again? (y/N) ")
			if scanner.Scan() && strings.EqualFold(strings.TrimSpace(scanner.Text()), "y") {
				if err := c.Restart(ctx); err != nil {
					fmt.Printf("❌ %v\n", err)
				}
			}
		case input == "":
			continue
		default:
			if err := c.SetAnswer(ctx, q.ID, input); err != nil {
				fmt.Printf("❌ %v\n", err)
				continue
			}
			c.GoToNext()
		}
	}
}

func printQuestion(index, total int, q historyquiz.Question, current string) {
	fmt.Printf("Question %d/%d [%s | %s]\n", index+1, total, historyquiz.EraLabel(q.Era), historyquiz.DifficultyLabel(q.Difficulty))
	fmt.Printf("%s\n\n", q.Content)

	switch q.Type {
	case historyquiz.TypeMultipleChoice:
		for i, option := range q.Options {
			fmt.Printf("  %s %s\n", historyquiz.OptionLabel(i), option)
		}
		fmt.Println("  (answer with the number, letter or text)")
	case historyquiz.TypeOX:
		fmt.Println("  O / X")
	}
	if current != "" {
		fmt.Printf("  current answer: %s\n", current)
	}
	fmt.Println()
}

func printResult(questions []historyquiz.Question, res historyquiz.QuizResult) {
	fmt.Println()
	fmt.Println("🎉 Quiz completed!")
	fmt.Printf("📊 Score: %d  (correct %d, wrong %d, unanswered %d of %d)\n\n", res.Score, res.Correct, res.Wrong, res.Unanswered, res.Total)

	for i, a := range res.Answers {
		q := questions[i]
		if a.IsCorrect {
			fmt.Printf("✅ %d. %s\n", i+1, a.Answer)
		} else {
			fmt.Printf("❌ %d. %s (correct: %s %s)\n", i+1, a.Answer, historyquiz.DisplayAnswer(q), q.Answer)
		}
		if q.Explanation != "" {
			fmt.Printf("   💡 %s\n", q.Explanation)
		}
	}
	fmt.Println()
	fmt.Println(strings.Repeat("─", 50))

	switch {
	case res.Score >= 80:
		fmt.Println("🌟 Excellent work!")
	case res.Score >= 60:
		fmt.Println("👍 Good job!")
	default:
		fmt.Println("📚 Keep studying!")
	}
}

func joinEras(eras []historyquiz.Era) string {
	parts := make([]string, len(eras))
	for i, e := range eras {
		parts[i] = string(e)
	}
	return strings.Join(parts, ",")
}

func parseEras(raw string) []historyquiz.Era {
	var out []historyquiz.Era
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, historyquiz.Era(s))
		}
	}
	return out
}

func parseTypes(raw string) []historyquiz.QuestionType {
	var out []historyquiz.QuestionType
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, historyquiz.QuestionType(s))
		}
	}
	return out
}
