package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mealsnap-backend/internal/domain"
	"mealsnap-backend/internal/domain/ports/adapter"
	"mealsnap-backend/internal/infra/logging"
	"mealsnap-backend/internal/infra/metrics"
	red "mealsnap-backend/internal/infra/redis"
	"mealsnap-backend/internal/usecase"
)

// Server wires the payment reconciliation endpoints, checkout and the
// image-analysis proxy onto a chi router.
type Server struct {
	payUC      usecase.PaymentUseCase
	subUC      usecase.SubscriptionUseCase
	planUC     usecase.PlanUseCase
	analysisUC usecase.AnalysisUseCase

	limiter       *red.RateLimiter
	uploadLimit   int64
	ratePerMinute int
	authSecret    string
	logger        *zerolog.Logger
}

func NewServer(
	payUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	planUC usecase.PlanUseCase,
	analysisUC usecase.AnalysisUseCase,
	limiter *red.RateLimiter,
	uploadLimit int64,
	ratePerMinute int,
	authSecret string,
	logger *zerolog.Logger,
) *Server {
	if uploadLimit <= 0 {
		uploadLimit = 5 * 1024 * 1024
	}
	return &Server{
		payUC:         payUC,
		subUC:         subUC,
		planUC:        planUC,
		analysisUC:    analysisUC,
		limiter:       limiter,
		uploadLimit:   uploadLimit,
		ratePerMinute: ratePerMinute,
		authSecret:    authSecret,
		logger:        logger,
	}
}

// Register attaches all routes to the provided router.
func (s *Server) Register(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/payments/{paymentKey}", s.handleGetPayment)
		r.Post("/payments/confirm", s.handleConfirm)
		r.Post("/payments/cancel", s.handleCancel)
		r.Get("/plans", s.handlePlans)
		r.Post("/upload-food", s.handleUpload)

		r.Group(func(r chi.Router) {
			r.Use(Auth(s.authSecret))
			r.Post("/checkout", s.handleCheckout)
			r.Get("/subscription", s.handleSubscription)
			r.Get("/meals", s.handleMeals)
		})
	})
}

// ---- payment handlers ----

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	paymentKey := chi.URLParam(r, "paymentKey")
	if paymentKey == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "paymentKey is required")
		return
	}
	pp, err := s.payUC.Get(r.Context(), paymentKey)
	if err != nil {
		s.writePaymentError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, pp.Raw)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentKey string `json:"paymentKey"`
		OrderID    string `json:"orderId"`
		Amount     int64  `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	if req.PaymentKey == "" || req.OrderID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "paymentKey, orderId and amount are required")
		return
	}

	pp, err := s.payUC.Confirm(r.Context(), req.PaymentKey, req.OrderID, req.Amount)
	if err != nil {
		s.writePaymentError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, pp.Raw)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PaymentKey   string `json:"paymentKey"`
		CancelReason string `json:"cancelReason"`
		CancelAmount *int64 `json:"cancelAmount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed request body")
		return
	}
	if req.PaymentKey == "" || req.CancelReason == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "paymentKey and cancelReason are required")
		return
	}

	pp, err := s.payUC.Cancel(r.Context(), req.PaymentKey, req.CancelReason, req.CancelAmount)
	if err != nil {
		s.writePaymentError(w, r, err)
		return
	}
	writeRaw(w, http.StatusOK, pp.Raw)
}

// writePaymentError relays provider errors with the provider's own status
// and body; only local faults become 4xx/5xx of our own.
func (s *Server) writePaymentError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *adapter.ProviderError
	switch {
	case errors.As(err, &pe):
		if len(pe.Raw) > 0 {
			writeRaw(w, pe.StatusCode, pe.Raw)
			return
		}
		writeError(w, pe.StatusCode, pe.Code, pe.Message)
	case errors.Is(err, domain.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "missing required payment parameters")
	default:
		logging.With(r.Context(), s.logger).Error().Err(err).Msg("payment handler error")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected server error")
	}
}

// ---- checkout / subscription / plans ----

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlanID string `json:"planId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "planId is required")
		return
	}
	userID := logging.UserIDFrom(r.Context())

	session, err := s.subUC.Checkout(r.Context(), userID, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrPlanInactive):
			writeError(w, http.StatusNotFound, "PLAN_NOT_FOUND", "unknown or inactive plan")
		default:
			logging.With(r.Context(), s.logger).Error().Err(err).Msg("checkout failed")
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected server error")
		}
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleSubscription(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFrom(r.Context())
	sub, err := s.subUC.ActiveForUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNoActiveSubscription) || errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NO_ACTIVE_SUBSCRIPTION", "no active subscription")
			return
		}
		logging.With(r.Context(), s.logger).Error().Err(err).Msg("subscription lookup failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (s *Server) handlePlans(w http.ResponseWriter, r *http.Request) {
	plans, err := s.planUC.ListActive(r.Context())
	if err != nil {
		logging.With(r.Context(), s.logger).Error().Err(err).Msg("plan listing failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"plans": plans})
}

func (s *Server) handleMeals(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserIDFrom(r.Context())
	meals, err := s.analysisUC.RecentMeals(r.Context(), userID, 20)
	if err != nil {
		logging.With(r.Context(), s.logger).Error().Err(err).Msg("meal listing failed")
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"meals": meals})
}

// ---- image analysis proxy ----

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Hard cap well above the per-file limit: an oversized file still gets
	// its FILE_TOO_LARGE answer, but an absurd body is cut off mid-stream
	// instead of being spooled in full.
	r.Body = http.MaxBytesReader(w, r.Body, 2*s.uploadLimit)
	if err := r.ParseMultipartForm(s.uploadLimit); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeUploadError(w, http.StatusBadRequest, "FILE_TOO_LARGE", "file exceeds the 5MB limit")
			return
		}
		writeUploadError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "could not read the upload")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeUploadError(w, http.StatusBadRequest, "NO_IMAGE", "no image was provided")
		return
	}
	defer file.Close()

	if header.Size > s.uploadLimit {
		writeUploadError(w, http.StatusBadRequest, "FILE_TOO_LARGE", "file exceeds the 5MB limit")
		return
	}
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeUploadError(w, http.StatusBadRequest, "INVALID_FILE_TYPE", "only image files can be uploaded")
		return
	}
	metrics.ObserveUploadSize(header.Size)

	userID := logging.UserIDFrom(r.Context())
	if userID == "" {
		userID = r.FormValue("userId")
	}
	if userID == "" {
		userID = "anonymous"
	}

	if s.limiter != nil && userID != "anonymous" {
		allowed, lErr := s.limiter.Allow(r.Context(), red.UploadKey(userID), s.ratePerMinute, time.Minute)
		if lErr != nil {
			// limiter outage must not block uploads
			logging.With(r.Context(), s.logger).Warn().Err(lErr).Msg("rate limiter unavailable")
		} else if !allowed {
			writeUploadError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many uploads, slow down")
			return
		}
	}

	data, err := s.analysisUC.Analyze(r.Context(), file, header.Filename, contentType, userID)
	if err != nil {
		var ae *adapter.AnalysisError
		if errors.As(err, &ae) {
			writeUploadError(w, analysisStatus(ae.Code), ae.Code, ae.Message)
			return
		}
		logging.With(r.Context(), s.logger).Error().Err(err).Msg("upload handler error")
		writeUploadError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "unexpected server error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

func analysisStatus(code string) int {
	switch code {
	case adapter.AnalysisCodeWorkflowStarted:
		return http.StatusAccepted
	case adapter.AnalysisCodeTimeout:
		return http.StatusRequestTimeout
	case adapter.AnalysisCodeWebhookError:
		return http.StatusBadGateway
	case adapter.AnalysisCodeNetworkError:
		return http.StatusServiceUnavailable
	default:
		// ANALYSIS_FAILED, INVALID_RESPONSE and workflow-reported codes
		return http.StatusBadRequest
	}
}

// ---- response helpers ----

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}

func writeUploadError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}
