package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/easybewerbung/bewerbung-api/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestGetCredits(t *testing.T) {
	userID := uuid.New()

	t.Run("balance", func(t *testing.T) {
		svc := new(MockCreditService)
		svc.On("GetBalance", mock.Anything, userID).Return(7, nil)

		w := httptest.NewRecorder()
		NewCreditHandler(svc).GetCredits(w, newRouteRequest(http.MethodGet, "/credits", "", userID, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"credits":7}`, w.Body.String())
	})

	t.Run("unauthenticated", func(t *testing.T) {
		svc := new(MockCreditService)
		w := httptest.NewRecorder()
		NewCreditHandler(svc).GetCredits(w, newRouteRequest(http.MethodGet, "/credits", "", uuid.Nil, nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "GetBalance")
	})

	t.Run("ledger failure", func(t *testing.T) {
		svc := new(MockCreditService)
		svc.On("GetBalance", mock.Anything, userID).Return(0, errors.New("timeout"))

		w := httptest.NewRecorder()
		NewCreditHandler(svc).GetCredits(w, newRouteRequest(http.MethodGet, "/credits", "", userID, nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Equal(t, "Failed to read credits", decodeError(t, w))
	})
}

func TestListTransactions(t *testing.T) {
	userID := uuid.New()
	txs := []domain.CreditTransaction{{
		ID:        uuid.New(),
		UserID:    userID,
		Amount:    -2,
		Kind:      domain.CreditKindDebit,
		Reference: "generation:abc:cv",
		CreatedAt: time.Now().UTC(),
	}}

	svc := new(MockCreditService)
	svc.On("ListTransactions", mock.Anything, userID, 10).Return(txs, nil)

	w := httptest.NewRecorder()
	r := newRouteRequest(http.MethodGet, "/credits/transactions?limit=10", "", userID, nil)
	NewCreditHandler(svc).ListTransactions(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var resp []CreditTransactionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, -2, resp[0].Amount)
	assert.Equal(t, string(domain.CreditKindDebit), resp[0].Kind)

	w = httptest.NewRecorder()
	r = newRouteRequest(http.MethodGet, "/credits/transactions?limit=-1", "", userID, nil)
	NewCreditHandler(svc).ListTransactions(w, r)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
