package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/api/shared"
	"github.com/easybewerbung/bewerbung-api/internal/service"
)

// CreditTransactionResponse is one ledger entry.
type CreditTransactionResponse struct {
	ID        string    `json:"id"`
	Amount    int       `json:"amount"`
	Kind      string    `json:"kind"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// CreditHandler exposes the caller's credit balance.
type CreditHandler struct {
	creditService service.CreditService
}

// NewCreditHandler creates a new CreditHandler.
func NewCreditHandler(creditService service.CreditService) *CreditHandler {
	return &CreditHandler{creditService: creditService}
}

// GetCredits handles GET /credits.
func (h *CreditHandler) GetCredits(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	balance, err := h.creditService.GetBalance(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to read credits")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CreditsResponse{Credits: balance})
}

// ListTransactions handles GET /credits/transactions?limit=N.
func (h *CreditHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	txs, err := h.creditService.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list transactions")
		return
	}

	resp := make([]CreditTransactionResponse, 0, len(txs))
	for _, tx := range txs {
		resp = append(resp, CreditTransactionResponse{
			ID:        tx.ID.String(),
			Amount:    tx.Amount,
			Kind:      string(tx.Kind),
			Reference: tx.Reference,
			CreatedAt: tx.CreatedAt,
		})
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
