package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"historyquiz"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
	"golang.org/x/time/rate"
)

const (
	cookieName   = "history-quiz"
	clientIDKey  = "client_id"
	maxBodyBytes = 1 << 20

	// Idle controllers are dropped from memory; their quiz stays in storage.
	clientIdleTTL    = 30 * time.Minute
	clientSweepEvery = time.Minute
)

var (
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 30, 120},
		},
		[]string{"method", "endpoint"},
	)
)

// Server exposes one quiz controller per browser over a JSON API
type Server struct {
	cfg      historyquiz.Config
	store    historyquiz.Storage
	gen      historyquiz.Generator
	cookies  sessions.Store
	exporter *historyquiz.PDFExporter

	mu        sync.Mutex
	clients   map[string]*client
	lastSweep time.Time
	idleTTL   time.Duration
	now       func() time.Time
}

// client serializes access to one browser's controller
type client struct {
	mu       sync.Mutex
	ctrl     *historyquiz.Controller
	generate *rate.Limiter
	lastSeen time.Time
}

func NewServer(cfg historyquiz.Config, store historyquiz.Storage, gen historyquiz.Generator) *Server {
	cookies := sessions.NewCookieStore([]byte(cfg.SessionSecret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	return &Server{
		cfg:      cfg,
		store:    store,
		gen:      gen,
		cookies:  cookies,
		exporter: historyquiz.NewPDFExporter(cfg.FontDir),
		clients:  make(map[string]*client),
		idleTTL:  clientIdleTTL,
		now:      time.Now,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(hlog.NewHandler(historyquiz.Logger()))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("request")
	}))
	r.Use(securityHeaders, metricsMiddleware)

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/llm-config", s.withClient(s.handleGetLLMConfig))
		r.Put("/llm-config", s.withClient(s.handlePutLLMConfig))

		r.Route("/quiz", func(r chi.Router) {
			r.Get("/", s.withClient(s.handleGetQuiz))
			r.Post("/generate", s.withLimitedClient(s.handleGenerate))
			r.Post("/start", s.withClient(s.handleStart))
			r.Put("/answers/{questionID}", s.withClient(s.handleAnswer))
			r.Post("/next", s.withClient(s.handleNext))
			r.Post("/prev", s.withClient(s.handlePrev))
			r.Post("/goto/{index}", s.withClient(s.handleGoto))
			r.Post("/submit", s.withClient(s.handleSubmit))
			r.Post("/restart", s.withClient(s.handleRestart))
			r.Post("/reset", s.withClient(s.handleReset))
			r.Get("/pdf/questions", s.withClient(s.handleQuestionSheet))
			r.Get("/pdf/answers", s.withClient(s.handleAnswerSheet))
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusNotFound, "not found")
		})
		r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		})
	})

	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		httpRequests.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

type clientHandler func(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller)

// withClient resolves the caller's controller and holds its lock for the
// duration of h.
func (s *Server) withClient(h clientHandler) http.HandlerFunc {
	return s.clientRoute(h, false)
}

// withLimitedClient is withClient plus the per-client generation rate limit.
func (s *Server) withLimitedClient(h clientHandler) http.HandlerFunc {
	return s.clientRoute(h, true)
}

func (s *Server) clientRoute(h clientHandler, limited bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cl, err := s.client(w, r)
		if err != nil {
			hlog.FromRequest(r).Error().Err(err).Msg("Failed to establish client session")
			respondError(w, http.StatusInternalServerError, "failed to establish session")
			return
		}
		if limited && !cl.generate.Allow() {
			respondError(w, http.StatusTooManyRequests, "too many requests")
			return
		}

		cl.mu.Lock()
		defer cl.mu.Unlock()
		h(w, r, cl.ctrl)
	}
}

func (s *Server) client(w http.ResponseWriter, r *http.Request) (*client, error) {
	// A cookie that fails to decode yields a fresh session, which is what we want.
	sess, _ := s.cookies.Get(r, cookieName)

	id, _ := sess.Values[clientIDKey].(string)
	if id == "" {
		id = uuid.NewString()
		sess.Values[clientIDKey] = id
		if err := sess.Save(r, w); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	cl, ok := s.clients[id]
	if !ok {
		ctrl := historyquiz.NewController(r.Context(), s.gen, historyquiz.Namespace(s.store, id))
		cl = &client{ctrl: ctrl, generate: s.newGenerateLimiter()}
		s.clients[id] = cl
	}
	cl.lastSeen = now
	return cl, nil
}

// sweepLocked drops clients idle for longer than idleTTL. A client whose
// request is still running is kept. s.mu must be held.
func (s *Server) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < clientSweepEvery {
		return
	}
	s.lastSweep = now

	for id, cl := range s.clients {
		if now.Sub(cl.lastSeen) < s.idleTTL || !cl.mu.TryLock() {
			continue
		}
		delete(s.clients, id)
		cl.mu.Unlock()
	}
}

// clientCount reports how many controllers are held in memory
func (s *Server) clientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) newGenerateLimiter() *rate.Limiter {
	n := s.cfg.GenerationsPerHour
	if n <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Hour/time.Duration(n)), min(n, 3))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	respondJSON(w, http.StatusOK, c.Snapshot())
}

type generateRequest struct {
	Config historyquiz.QuizConfig `json:"config"`
	LLM    *historyquiz.LLMConfig `json:"llm,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	var req generateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	llm, fromServer, ok := s.credentials(r.Context(), c, req.LLM)
	if !ok {
		respondError(w, http.StatusBadRequest, "an API key is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.GenerationTimeout)
	defer cancel()

	generate := c.Generate
	if fromServer {
		generate = c.GenerateWithoutRemembering
	}
	if err := generate(ctx, req.Config, llm); err != nil {
		status := errorStatus(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		respondError(w, status, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

// credentials uses the request's key when given, then the remembered one,
// then the server's own configuration. fromServer marks the last case.
func (s *Server) credentials(ctx context.Context, c *historyquiz.Controller, req *historyquiz.LLMConfig) (llm historyquiz.LLMConfig, fromServer, ok bool) {
	if req != nil && req.APIKey != "" {
		return *req, false, true
	}
	if saved, found := c.RememberedCredentials(ctx); found && saved.APIKey != "" && !s.isServerKey(saved.APIKey) {
		return saved, false, true
	}
	llm, ok = s.cfg.LLMConfig()
	return llm, true, ok
}

func (s *Server) isServerKey(key string) bool {
	return key != "" && (key == s.cfg.OpenAIKey || key == s.cfg.XAIKey)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	if err := c.Start(); err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := c.SetAnswer(r.Context(), chi.URLParam(r, "questionID"), req.Answer); err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	c.GoToNext()
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	c.GoToPrev()
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleGoto(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "index must be an integer")
		return
	}
	c.GoToIndex(index)
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	if _, err := c.Submit(r.Context()); err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	if err := c.Restart(r.Context()); err != nil {
		respondError(w, errorStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	c.Reset(r.Context())
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleQuestionSheet(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	s.servePDF(w, r, c, "문제지", s.exporter.QuestionSheet)
}

func (s *Server) handleAnswerSheet(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	s.servePDF(w, r, c, "답안지", s.exporter.AnswerSheet)
}

func (s *Server) servePDF(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller, suffix string,
	render func([]historyquiz.Question, historyquiz.QuizConfig) ([]byte, error)) {
	questions := c.Questions()
	if len(questions) == 0 {
		respondError(w, http.StatusConflict, "no questions to export")
		return
	}

	cfg := c.Config()
	data, err := render(questions, cfg)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("PDF export failed")
		respondError(w, http.StatusInternalServerError, "failed to render PDF")
		return
	}

	name := cfg.Title + "_" + suffix + ".pdf"
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "attachment; filename*=UTF-8''"+url.PathEscape(name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type llmConfigResponse struct {
	historyquiz.LLMConfig
	ServerKeyAvailable bool `json:"serverKeyAvailable"`
}

func (s *Server) handleGetLLMConfig(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	_, serverKey := s.cfg.LLMConfig()

	llm, ok := c.RememberedCredentials(r.Context())
	if !ok {
		llm = historyquiz.LLMConfig{Provider: s.cfg.LLMProvider, Model: s.cfg.LLMModel}
	}
	// never hand the server's own key to the browser
	if s.isServerKey(llm.APIKey) {
		llm.APIKey = ""
	}
	respondJSON(w, http.StatusOK, llmConfigResponse{LLMConfig: llm, ServerKeyAvailable: serverKey})
}

func (s *Server) handlePutLLMConfig(w http.ResponseWriter, r *http.Request, c *historyquiz.Controller) {
	var llm historyquiz.LLMConfig
	if !decodeJSON(w, r, &llm) {
		return
	}
	if err := historyquiz.ValidateLLMConfig(llm); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := c.SaveCredentials(r.Context(), llm); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to save LLM config")
		respondError(w, http.StatusInternalServerError, "failed to save LLM config")
		return
	}
	_, serverKey := s.cfg.LLMConfig()
	respondJSON(w, http.StatusOK, llmConfigResponse{LLMConfig: llm, ServerKeyAvailable: serverKey})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, historyquiz.ErrInvalidConfig):
		return http.StatusBadRequest
	case errors.Is(err, historyquiz.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, historyquiz.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, historyquiz.ErrIncompleteSubmission):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errResp struct {
	Error string `json:"error"`
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errResp{Error: msg})
}
