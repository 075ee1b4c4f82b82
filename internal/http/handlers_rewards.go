package http

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"

	"rewards/internal/core"
	"rewards/internal/log"
)

// handleCustomerPoints serves GET /rewards/points/{customerId}.
func (s *Server) handleCustomerPoints(w http.ResponseWriter, r *http.Request) {
	customerID, err := ParseCustomerID(chi.URLParam(r, "customerId"))
	if err != nil {
		s.writeError(w, r, err, log.NewFields())
		return
	}
	fields := log.NewFields().WithCustomer(customerID)

	window, err := ParseWindowParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, fields)
		return
	}

	result, err := s.deps.Rewards.GetCustomerPoints(r.Context(), customerID, window.Start, window.End)
	if err != nil {
		s.writeError(w, r, err, fields)
		return
	}

	atomic.AddInt64(&s.metrics.rewardLookups, 1)
	NewJSONResponse().Body(result).Write(w)
}

// handleAllCustomersPoints serves GET /rewards/allcustomers.
func (s *Server) handleAllCustomersPoints(w http.ResponseWriter, r *http.Request) {
	window, err := ParseWindowParams(r.URL.Query())
	if err != nil {
		s.writeError(w, r, err, log.NewFields())
		return
	}

	rewards, err := s.deps.Rewards.GetAllCustomersPoints(r.Context(), window.Start, window.End)
	if err != nil {
		s.writeError(w, r, err, log.NewFields())
		return
	}

	atomic.AddInt64(&s.metrics.rewardLookups, 1)
	NewJSONResponse().Body(rewards).Write(w)
}

// writeError counts and logs err, then writes its mapped response.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, fields log.LogFields) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var verr *core.ValidationError
	if errors.As(err, &verr) {
		atomic.AddInt64(&s.metrics.validationErrors, 1)
		logger.DebugContext(ctx, "Request rejected", fields.WithError(err).ToSlice()...)
	} else {
		atomic.AddInt64(&s.metrics.ledgerErrors, 1)
		log.NewStructuredLogger(logger).LogError(ctx, "Request failed", err, log.ComponentHTTP, r.Method+" "+r.URL.Path, fields)
	}

	ServiceErrorResponse(err).Write(w)
}
