package http

import (
	"net/http"
	"sync/atomic"

	"rewards/internal/core"
	"rewards/internal/log"
	"rewards/internal/services"
)

type transactionResponse struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customerId"`
	Amount     string `json:"amount"`
	Date       string `json:"date"`
}

func newTransactionResponse(tx core.Transaction) transactionResponse {
	return transactionResponse{
		ID:         tx.ID,
		CustomerID: tx.CustomerID,
		Amount:     tx.Amount.StringFixed(2),
		Date:       tx.Date.String(),
	}
}

type queuedResponse struct {
	Status    string `json:"status"`
	MessageID string `json:"messageId"`
}

// handleRecordTransaction serves POST /rewards/transactions. The body is
// JSON or form encoded with customerId, amount and date.
func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	if s.deps.Transactions == nil || !s.deps.Transactions.Writable() {
		NotImplementedError("recording transactions is not supported by this backend").Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		s.writeError(w, r, core.NewValidationError("invalid request body"), log.NewFields())
		return
	}

	customerID, err := parser.GetInt64("customerId")
	if err != nil {
		s.writeError(w, r, core.NewValidationError("customerId must be a positive integer"), log.NewFields())
		return
	}

	outcome, err := s.deps.Transactions.Record(r.Context(), services.RecordInput{
		CustomerID: customerID,
		Amount:     parser.Get("amount"),
		Date:       parser.Get("date"),
	})
	if err != nil {
		s.writeError(w, r, err, log.NewFields().WithCustomer(customerID).WithOperation(log.OpRecord))
		return
	}

	if outcome.Queued {
		atomic.AddInt64(&s.metrics.transactionsQueued, 1)
		NewJSONResponse().
			Status(http.StatusAccepted).
			Body(queuedResponse{Status: "queued", MessageID: outcome.MessageID}).
			Write(w)
		return
	}

	atomic.AddInt64(&s.metrics.transactionsAccepted, 1)
	NewJSONResponse().
		Status(http.StatusCreated).
		Body(newTransactionResponse(outcome.Transaction)).
		Write(w)
}
