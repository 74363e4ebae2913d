// Package api exposes the product's REST surface: reservation CRUD, receipt
// and verification routes, the payment-gated CV download, the web-chat
// endpoint, and container diagnostics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cv_builder_bot/internal/domain"
	"cv_builder_bot/internal/logging"
)

const (
	mongoPingTimeout  = 2 * time.Second
	readHeaderTimeout = 2 * time.Second

	docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// MongoChecker defines the subset of MongoDB client behavior required for health.
type MongoChecker interface {
	Ping(ctx context.Context) error
}

// UserStore is the reservation persistence contract the REST routes drive.
type UserStore interface {
	InsertIfAbsent(ctx context.Context, record domain.UserRecord) (domain.UserRecord, error)
	GetByID(ctx context.Context, id string) (domain.UserRecord, error)
	AttachReceipt(ctx context.Context, id, receiptRef string) error
	UpdateStatusByID(ctx context.Context, id string, status domain.PaymentStatus) error
}

// StatsProvider supplies record counts for the diagnostics route.
type StatsProvider interface {
	CountUsers(ctx context.Context) (int64, error)
	CountPendingQuestions(ctx context.Context) (int64, error)
}

// Catalog locates CV template assets.
type Catalog interface {
	Exists(tier domain.Tier) bool
	Path(tier domain.Tier) string
}

// Dispatcher serves the web-chat endpoint.
type Dispatcher interface {
	Handle(ctx context.Context, text, callerID, conversationID string) string
}

// Deps bundles the collaborators of the HTTP server.
type Deps struct {
	Users      UserStore
	Stats      StatsProvider
	Catalog    Catalog
	Dispatcher Dispatcher
	Mongo      MongoChecker
}

// Server hosts the REST API and owns the underlying HTTP server.
type Server struct {
	server *http.Server
	logger *logrus.Entry
	deps   Deps
}

// NewServer constructs the API server listening on the provided port.
func NewServer(port int, deps Deps, logger *logrus.Entry) *Server {
	if logger == nil {
		logger = logging.Logger()
	}

	srv := &Server{
		logger: logger,
		deps:   deps,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", srv.handleHealth)
	mux.HandleFunc("GET /api/stats", srv.handleStats)
	mux.HandleFunc("POST /api/user", srv.handleCreateUser)
	mux.HandleFunc("POST /api/upload-receipt", srv.handleUploadReceipt)
	mux.HandleFunc("POST /api/verify-payment", srv.handleVerifyPayment)
	mux.HandleFunc("GET /api/download/{id}", srv.handleDownload)
	mux.HandleFunc("POST /api/chat", srv.handleChat)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return srv
}

// ListenAndServe starts the API server and blocks until shutdown.
func (s *Server) ListenAndServe() error {
	s.logger.WithFields(logging.Fields{
		"event": "api_listen",
		"addr":  s.server.Addr,
	}).Info("starting api server")

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api server listen: %w", err)
	}

	s.logger.WithField("event", "api_stopped").Info("api server stopped")
	return nil
}

// Shutdown gracefully stops the API server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status string `json:"status"`
	Mongo  string `json:"mongo,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	mongoStatus := "ok"

	if s.deps.Mongo == nil {
		mongoStatus = "error"
		s.logger.WithField("event", "health_mongo_missing").Warn("mongo checker is not configured for health endpoint")
	} else {
		pingCtx, cancel := context.WithTimeout(r.Context(), mongoPingTimeout)
		err := s.deps.Mongo.Ping(pingCtx)
		cancel()

		if err != nil {
			mongoStatus = "error"
			s.logger.WithField("event", "health_mongo_error").WithError(err).Warn("mongo ping failed during health check")
		}
	}

	if mongoStatus != "ok" {
		resp.Status = "degraded"
		resp.Mongo = "error"
	}

	s.writeJSON(w, http.StatusOK, resp)
}

type statsResponse struct {
	Users            int64 `json:"users"`
	PendingQuestions int64 `json:"pending_questions"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	users, err := s.deps.Stats.CountUsers(r.Context())
	if err != nil {
		s.internalError(w, err, "stats_users")
		return
	}

	pending, err := s.deps.Stats.CountPendingQuestions(r.Context())
	if err != nil {
		s.internalError(w, err, "stats_questions")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{Users: users, PendingQuestions: pending})
}

type createUserRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Experience string `json:"experience"`
	CVModel    string `json:"cv_model"`
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !domain.ValidEmail(req.Email) {
		s.writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}

	tier, ok := domain.ParseTier(req.CVModel)
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid cv_model, expected junior or senior")
		return
	}

	record, err := s.deps.Users.InsertIfAbsent(r.Context(), domain.UserRecord{
		Name:          req.Name,
		Email:         req.Email,
		Experience:    req.Experience,
		CVModel:       tier,
		PaymentStatus: domain.StatusPending,
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateEmail):
		s.writeError(w, http.StatusConflict, "a CV is already reserved for this email")
		return
	case err != nil:
		s.internalError(w, err, "user_create")
		return
	}

	s.writeJSON(w, http.StatusCreated, record)
}

type uploadReceiptRequest struct {
	UserID     string `json:"user_id"`
	ReceiptRef string `json:"receipt_ref"`
}

type successResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func (s *Server) handleUploadReceipt(w http.ResponseWriter, r *http.Request) {
	var req uploadReceiptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.ReceiptRef == "" {
		s.writeError(w, http.StatusBadRequest, "user_id and receipt_ref are required")
		return
	}

	err := s.deps.Users.AttachReceipt(r.Context(), req.UserID, req.ReceiptRef)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	case errors.Is(err, domain.ErrInvalidTransition):
		s.writeError(w, http.StatusConflict, "payment is no longer pending")
		return
	case err != nil:
		s.internalError(w, err, "receipt_attach")
		return
	}

	s.writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "receipt uploaded successfully"})
}

type verifyPaymentRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	err := s.deps.Users.UpdateStatusByID(r.Context(), req.UserID, domain.StatusCompleted)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		s.internalError(w, err, "payment_verify")
		return
	}

	s.writeJSON(w, http.StatusOK, successResponse{Success: true, Message: "payment verified and status updated"})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	record, err := s.deps.Users.GetByID(r.Context(), r.PathValue("id"))
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "user not found")
		return
	case err != nil:
		s.internalError(w, err, "download_lookup")
		return
	}

	if record.PaymentStatus != domain.StatusCompleted {
		s.writeError(w, http.StatusForbidden, "payment required")
		return
	}

	file, err := os.Open(s.deps.Catalog.Path(record.CVModel))
	if err != nil {
		if os.IsNotExist(err) {
			s.writeError(w, http.StatusNotFound, "CV template not found")
			return
		}
		s.internalError(w, err, "download_open")
		return
	}
	defer file.Close()

	name := record.Name
	if name == "" {
		name = "cv"
	}

	w.Header().Set("Content-Type", docxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name+"_CV.docx"))

	if _, err := io.Copy(w, file); err != nil {
		s.logger.WithField("event", "download_write_error").WithError(err).Error("failed to stream CV template")
	}
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
}

// handleChat is the synchronous web-chat delivery path: the dispatcher's
// return value is the HTTP response body. A fresh session id is minted for
// first-time visitors and echoed back for reuse.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		s.writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	session := req.SessionID
	if session == "" {
		session = uuid.NewString()
	}
	caller := "web:" + session

	reply := s.deps.Dispatcher.Handle(r.Context(), req.Message, caller, caller)

	s.writeJSON(w, http.StatusOK, chatResponse{Reply: reply, SessionID: session})
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, errorResponse{Error: message})
}

func (s *Server) internalError(w http.ResponseWriter, err error, event string) {
	s.logger.WithField("event", event).WithError(err).Error("api request failed")
	s.writeError(w, http.StatusInternalServerError, "an unexpected error occurred")
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithField("event", "api_write_error").WithError(err).Error("failed to encode response")
	}
}
