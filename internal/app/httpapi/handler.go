// Package httpapi exposes the tippit REST API.
package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	app "github.com/takshakmudgal/tippit/internal/app"
	"github.com/takshakmudgal/tippit/internal/app/domain/submission"
	"github.com/takshakmudgal/tippit/internal/app/domain/tip"
	"github.com/takshakmudgal/tippit/internal/app/services/submissions"
	"github.com/takshakmudgal/tippit/internal/app/services/tips"
	"github.com/takshakmudgal/tippit/internal/app/services/users"
	"github.com/takshakmudgal/tippit/internal/app/storage"
	"github.com/takshakmudgal/tippit/pkg/logger"
)

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler returns a router exposing the v1 REST API.
func NewHandler(application *app.Application, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	h := &handler{app: application, log: log}

	r := mux.NewRouter()
	r.Use(LoggingMiddleware(log))
	if application.Metrics != nil {
		r.Use(MetricsMiddleware(application.Metrics))
	}
	r.Use(CORSMiddleware())

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/tip", h.createTip).Methods(http.MethodPost)
	v1.HandleFunc("/tip", h.tipJarLimit).Methods(http.MethodGet)
	v1.HandleFunc("/user", h.ensureUser).Methods(http.MethodPost)
	v1.HandleFunc("/submission", h.createSubmission).Methods(http.MethodPost)
	v1.HandleFunc("/submission", h.listSubmissions).Methods(http.MethodGet)
	v1.HandleFunc("/admin/submission", h.adminListSubmissions).Methods(http.MethodGet)
	v1.HandleFunc("/admin/submission", h.reviewSubmission).Methods(http.MethodPatch)
	v1.HandleFunc("/leaderboard", h.leaderboard).Methods(http.MethodGet)

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if application.Metrics != nil {
		r.Handle("/metrics", application.Metrics.Handler()).Methods(http.MethodGet)
	}

	return r
}

func (h *handler) createTip(w http.ResponseWriter, r *http.Request) {
	var claim tip.Claim
	if err := decodeJSON(r.Body, &claim); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := h.app.Tips.Submit(r.Context(), claim)
	if err != nil {
		writeError(w, tipStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (h *handler) tipJarLimit(w http.ResponseWriter, r *http.Request) {
	submissionID := strings.TrimSpace(r.URL.Query().Get("submissionId"))
	if submissionID == "" {
		writeError(w, http.StatusBadRequest, errors.New("submissionId query parameter is required"))
		return
	}

	limit, err := h.app.Tips.TipJarLimit(r.Context(), submissionID)
	if err != nil {
		writeError(w, tipStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]float64{"tipJarLimit": limit})
}

func (h *handler) ensureUser(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Wallet string `json:"wallet"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	u, err := h.app.Users.Ensure(r.Context(), payload.Wallet)
	if err != nil {
		if errors.Is(err, users.ErrWalletRequired) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *handler) createSubmission(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Wallet      string `json:"wallet"`
		Title       string `json:"title"`
		Link        string `json:"link"`
		Description string `json:"description"`
		Geolocation string `json:"geolocation"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sub, err := h.app.Submissions.Create(r.Context(), submissions.CreateInput{
		Wallet:      payload.Wallet,
		Title:       payload.Title,
		Link:        payload.Link,
		Description: payload.Description,
		Geolocation: payload.Geolocation,
	})
	if err != nil {
		writeError(w, submissionStatus(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *handler) listSubmissions(w http.ResponseWriter, r *http.Request) {
	if id := strings.TrimSpace(r.URL.Query().Get("id")); id != "" {
		sub, err := h.app.Submissions.Get(r.Context(), id)
		if err != nil {
			writeError(w, submissionStatus(err), err)
			return
		}
		writeJSON(w, http.StatusOK, sub)
		return
	}

	subs, err := h.app.Submissions.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *handler) adminListSubmissions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	wallet := strings.TrimSpace(q.Get("wallet"))
	if wallet == "" {
		writeError(w, http.StatusBadRequest, errors.New("wallet query parameter is required"))
		return
	}

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	status := submission.Status(strings.ToUpper(strings.TrimSpace(q.Get("status"))))

	listing, err := h.app.Submissions.ListForAdmin(r.Context(), wallet, status, page, limit)
	if err != nil {
		writeError(w, submissionStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

func (h *handler) reviewSubmission(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Wallet          string `json:"wallet"`
		SubmissionID    string `json:"submissionId"`
		Status          string `json:"status"`
		RejectionReason string `json:"rejectionReason"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sub, err := h.app.Submissions.Review(r.Context(), submissions.ReviewInput{
		AdminWallet:     payload.Wallet,
		SubmissionID:    payload.SubmissionID,
		Status:          submission.Status(strings.ToUpper(strings.TrimSpace(payload.Status))),
		RejectionReason: payload.RejectionReason,
	})
	if err != nil {
		writeError(w, submissionStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.app.Submissions.Leaderboard(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// tipStatus maps the tip error taxonomy onto HTTP statuses. Retryable
// conditions get statuses a client can distinguish from input errors.
func tipStatus(err error) int {
	var (
		validationErr *tips.ValidationError
		notFoundErr   *tips.NotFoundError
		selfTipErr    *tips.SelfTipError
		limitErr      *tips.LimitExceededError
		duplicateErr  *tips.DuplicateTransactionError
		txInvalidErr  *tips.TransactionInvalidError
		ledgerErr     *tips.LedgerUnavailableError
		conflictErr   *tips.StoreConflictError
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &selfTipErr):
		return http.StatusForbidden
	case errors.As(err, &limitErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &duplicateErr):
		return http.StatusConflict
	case errors.As(err, &txInvalidErr):
		return http.StatusBadRequest
	case errors.As(err, &ledgerErr):
		return http.StatusServiceUnavailable
	case errors.As(err, &conflictErr):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func submissionStatus(err error) int {
	var validationErr *submissions.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.Is(err, submissions.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
