package handler

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/knowcheck/policyquiz/internal/bank"
	appI18n "github.com/knowcheck/policyquiz/internal/i18n"
	"github.com/knowcheck/policyquiz/internal/model"
	"github.com/knowcheck/policyquiz/internal/quiz"
	"github.com/knowcheck/policyquiz/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store  *store.Store
	bank   *bank.Cache
	grader *quiz.Grader
	config model.QuizConfig
	tmpl   *template.Template
}

// New creates a new Handler and parses the embedded templates.
func New(s *store.Store, b *bank.Cache, cfg model.QuizConfig) (*Handler, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"T":        appI18n.T,
		"Td":       appI18n.Td,
		"Tp":       appI18n.Tp,
		"basePath": model.BasePathFromContext,
		"dict":     templateDict,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Handler{
		store:  s,
		bank:   b,
		grader: quiz.NewGrader(quiz.GraderConfig{Threshold: cfg.MatchThreshold, StrictYesNo: cfg.StrictYesNo}),
		config: cfg,
		tmpl:   tmpl,
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.handleIndex)
	r.Post("/quiz/start", h.handleStart)
	r.Get("/quiz/{sessionID}", h.handleQuizPage)
	r.Post("/quiz/{sessionID}/answer", h.handleAnswer)
	r.Post("/quiz/{sessionID}/restart", h.handleRestart)
	r.Get("/quiz/{sessionID}/summary", h.handleSummary)
	r.Post("/bank/reload", h.handleReloadBank)
}

// BasePathMiddleware stores the configured base path in the request
// context so templates can prefix links and form actions.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) render(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.tmpl.ExecuteTemplate(w, name, data); err != nil {
		slog.Error("render error", "template", name, "error", err)
	}
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, h.config.BasePath+path, http.StatusSeeOther)
}

type indexPage struct {
	Ctx          context.Context
	Divisions    []model.DivisionConfig
	DefaultCount int
	MinCount     int
	MaxCount     int
	TotalRecords int
	PoolWarning  bool
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	b, err := h.bank.Get()
	if err != nil {
		slog.Error("question bank unavailable", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.render(w, "index.html", indexPage{
		Ctx:          r.Context(),
		Divisions:    h.config.Divisions,
		DefaultCount: h.config.DefaultCount,
		MinCount:     h.config.MinCount,
		MaxCount:     h.config.MaxCount,
		TotalRecords: len(b.Records),
		PoolWarning:  r.URL.Query().Get("warn") == "pool",
	})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	division := h.config.DivisionByName(r.FormValue("division"))
	if division == nil {
		http.Error(w, "unknown division", http.StatusBadRequest)
		return
	}

	role := r.FormValue("role")
	if len(division.Roles) > 0 {
		valid := false
		for _, want := range division.Roles {
			if role == want {
				valid = true
				break
			}
		}
		if !valid {
			http.Error(w, "a role is required for this division", http.StatusBadRequest)
			return
		}
	} else {
		role = ""
	}

	supervisor := model.StatusNonSupervisor
	if r.FormValue("supervisor_status") == string(model.StatusSupervisor) {
		supervisor = model.StatusSupervisor
	}

	count, err := strconv.Atoi(r.FormValue("question_count"))
	if err != nil {
		count = h.config.DefaultCount
	}
	count = h.config.ClampCount(count)

	profile := model.UserProfile{
		Division:         division.Name,
		Role:             role,
		SupervisorStatus: supervisor,
		QuestionCount:    count,
	}

	b, err := h.bank.Get()
	if err != nil {
		slog.Error("question bank unavailable", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	eligible := quiz.Filter(b.Records, profile)
	weighted := quiz.Weigh(eligible, profile)

	mode := quiz.ModeNoRepeat
	if h.config.AllowRepeats {
		mode = quiz.ModeAllowRepeats
	}
	sampler := quiz.NewSampler(h.config.Seed, mode)
	balance := h.config.BalanceChapters && b.HasChapter

	sess := quiz.NewSession(profile)
	if err := sess.Start(weighted, count, sampler, balance); err != nil {
		if errors.Is(err, quiz.ErrInsufficientPool) {
			slog.Warn("insufficient question pool",
				"division", profile.Division, "role", profile.Role,
				"eligible", len(eligible), "requested", count)
			h.redirect(w, r, "/?warn=pool")
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.store.SaveSession(sess); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Info("assessment started",
		"session", sess.ID, "division", profile.Division,
		"count", count, "mode", sampler.Mode(), "balanced", balance)
	h.redirect(w, r, "/quiz/"+sess.ID)
}

type questionPage struct {
	Ctx          context.Context
	SessionID    string
	Number       int
	Total        int
	PolicyNumber string
	PolicyName   string
	Question     string
}

func (h *Handler) handleQuizPage(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSession(w, r)
	if sess == nil {
		return
	}

	switch sess.State {
	case model.StateComplete:
		h.redirect(w, r, "/quiz/"+sess.ID+"/summary")
		return
	case model.StateNotStarted:
		h.redirect(w, r, "/")
		return
	}

	q, err := sess.CurrentQuestion()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.render(w, "question.html", questionPage{
		Ctx:          r.Context(),
		SessionID:    sess.ID,
		Number:       sess.CurrentIndex + 1,
		Total:        sess.Total(),
		PolicyNumber: orNA(q.PolicyNumber),
		PolicyName:   orNA(q.PolicyName),
		Question:     q.Question,
	})
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSession(w, r)
	if sess == nil {
		return
	}

	resp, err := sess.Submit(r.FormValue("answer"), h.grader)
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err := h.store.SaveSession(sess); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	slog.Debug("answer graded",
		"session", sess.ID, "position", sess.CurrentIndex, "result", resp.Result)
	h.redirect(w, r, "/quiz/"+sess.ID)
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSession(w, r)
	if sess == nil {
		return
	}

	sess.Restart()
	if err := h.store.SaveSession(sess); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.redirect(w, r, "/")
}

type summaryPage struct {
	Ctx        context.Context
	SessionID  string
	Score      int
	Total      int
	Percentage string
	Responses  []model.ResponseRecord
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	sess := h.loadSession(w, r)
	if sess == nil {
		return
	}

	sum, err := sess.Summary()
	if err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	h.render(w, "summary.html", summaryPage{
		Ctx:        r.Context(),
		SessionID:  sess.ID,
		Score:      sum.Score,
		Total:      sum.Total,
		Percentage: fmt.Sprintf("%.1f", sum.Percentage),
		Responses:  sum.Responses,
	})
}

func (h *Handler) handleReloadBank(w http.ResponseWriter, r *http.Request) {
	b, err := h.bank.Reload()
	if err != nil {
		slog.Error("bank reload failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := h.store.SetBankInfo(b.Info); err != nil {
		slog.Warn("failed to record bank info", "error", err)
	}
	h.redirect(w, r, "/")
}

// loadSession fetches the session from the URL, writing a 404 when missing.
func (h *Handler) loadSession(w http.ResponseWriter, r *http.Request) *quiz.Session {
	id := chi.URLParam(r, "sessionID")
	sess, err := h.store.GetSession(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil
	}
	if sess == nil {
		http.Error(w, appI18n.T(r.Context(), "SessionNotFound"), http.StatusNotFound)
		return nil
	}
	return sess
}

// templateDict builds a map from alternating key/value pairs so templates
// can pass translation data inline.
func templateDict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict requires an even number of arguments")
	}
	d := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", pairs[i])
		}
		d[key] = pairs[i+1]
	}
	return d, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
