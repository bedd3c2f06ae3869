package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"flashcard-frenzy/internal/app"
	"flashcard-frenzy/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Handler serves the match REST API.
type Handler struct {
	matches    *app.MatchService
	answers    *app.AnswerProcessor
	history    *app.HistoryService
	flashcards app.FlashcardRepository
	ws         *WSHandler
	metrics    http.Handler
	validate   *validator.Validate
	logger     *zap.Logger
}

func NewHandler(
	matches *app.MatchService,
	answers *app.AnswerProcessor,
	history *app.HistoryService,
	flashcards app.FlashcardRepository,
	ws *WSHandler,
	metrics http.Handler,
	logger *zap.Logger,
) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		matches:    matches,
		answers:    answers,
		history:    history,
		flashcards: flashcards,
		ws:         ws,
		metrics:    metrics,
		validate:   newValidator(),
		logger:     logger.Named("http"),
	}
}

// Router creates and configures the HTTP router.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", h.Health)
	if h.ws != nil {
		r.Get("/ws", h.ws.ServeWS)
	}
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/flashcards", h.ListFlashcards)
		r.Get("/stats", h.Stats)

		r.Route("/matches", func(r chi.Router) {
			r.Post("/", h.StartMatch)
			r.Get("/", h.ListMatches)

			r.Route("/{matchID}", func(r chi.Router) {
				r.Get("/", h.GetMatch)
				r.Post("/finish", h.FinishMatch)
				r.Post("/answer", h.SubmitAnswer)
				r.Get("/history", h.MatchHistory)
				r.Get("/summary", h.MatchSummary)
			})
		})
	})

	return r
}

type startMatchRequest struct {
	PlayerID   string `json:"playerId" validate:"required"`
	OpponentID string `json:"opponentId" validate:"required,nefield=PlayerID"`
}

type startMatchResponse struct {
	Match   domain.Match `json:"match"`
	Created bool         `json:"created"`
}

// selectedOption is a pointer so an absent field can be told apart from ""
// (a timed-out question).
type answerRequest struct {
	PlayerID       string  `json:"playerId" validate:"required"`
	FlashcardID    string  `json:"flashcardId" validate:"required"`
	SelectedOption *string `json:"selectedOption"`
	TimeTaken      float64 `json:"timeTaken" validate:"gte=0"`
}

type flashcardView struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type statsResponse struct {
	LedgerAppendFailures int64 `json:"ledgerAppendFailures"`
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// ListFlashcards returns the question bank without answers.
func (h *Handler) ListFlashcards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.flashcards.ListFlashcards(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	out := make([]flashcardView, 0, len(cards))
	for _, c := range cards {
		out = append(out, flashcardView{ID: c.ID, Question: c.Question, Options: c.Options})
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, statsResponse{LedgerAppendFailures: h.answers.LedgerAppendFailures()})
}

func (h *Handler) StartMatch(w http.ResponseWriter, r *http.Request) {
	var req startMatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	match, created, err := h.matches.StartMatch(r.Context(), req.PlayerID, req.OpponentID)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	h.writeJSON(w, status, startMatchResponse{Match: match, Created: created})
}

func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.matches.ListMatches(r.Context())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, matches)
}

func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	match, err := h.matches.GetMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}

func (h *Handler) FinishMatch(w http.ResponseWriter, r *http.Request) {
	match, err := h.matches.FinishMatch(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, match)
}

func (h *Handler) SubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !h.decode(w, r, &req) {
		return
	}
	sub, err := req.submission(chi.URLParam(r, "matchID"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	result, err := h.answers.SubmitAnswer(r.Context(), sub)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) MatchHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.history.MatchHistory(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, history)
}

func (h *Handler) MatchSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.history.Summarize(r.Context(), chi.URLParam(r, "matchID"))
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, summary)
}

func (req answerRequest) submission(matchID string) (domain.AnswerSubmission, error) {
	if req.SelectedOption == nil {
		return domain.AnswerSubmission{}, &domain.ValidationError{Field: "selectedOption", Reason: "required"}
	}
	return domain.AnswerSubmission{
		MatchID:        matchID,
		PlayerID:       req.PlayerID,
		FlashcardID:    req.FlashcardID,
		SelectedOption: *req.SelectedOption,
		TimeTaken:      req.TimeTaken,
	}, nil
}

// decode reads a JSON body into dst and validates it, writing the 400
// itself on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.writeFailure(w, r, validationError(err))
		return false
	}
	return true
}

func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	h.writeJSON(w, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Debug("write response", zap.Error(err))
	}
}

func classify(err error) (int, errorResponse) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field}
	case domain.IsNotFound(err):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrPlayerNotInMatch):
		return http.StatusForbidden, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrPendingMatchExists):
		return http.StatusConflict, errorResponse{Error: err.Error()}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error"}
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError reports the first failing field as a domain.ValidationError.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &domain.ValidationError{Reason: err.Error()}
	}
	fe := verrs[0]
	return &domain.ValidationError{Field: fe.Field(), Reason: "failed " + fe.Tag()}
}
