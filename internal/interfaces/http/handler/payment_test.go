package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetlease/backend/internal/interfaces/http/dto"
)

func TestPaymentHandler_Record_InvalidLeaseID(t *testing.T) {
	h := NewPaymentHandler(nil)

	router := gin.New()
	router.POST("/leases/:id/payments", h.Record)

	body, _ := json.Marshal(RecordPaymentRequest{Amount: "3000.00", Method: "cash"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leases/bad/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_Record_InvalidAmount(t *testing.T) {
	h := NewPaymentHandler(nil)

	router := gin.New()
	router.POST("/leases/:id/payments", h.Record)

	body, _ := json.Marshal(RecordPaymentRequest{Amount: "lots", Method: "cash"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leases/550e8400-e29b-41d4-a716-446655440000/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
}

func TestPaymentHandler_Record_RejectsUnknownMethod(t *testing.T) {
	h := NewPaymentHandler(nil)

	router := gin.New()
	router.POST("/leases/:id/payments", h.Record)

	body, _ := json.Marshal(RecordPaymentRequest{Amount: "3000.00", Method: "crypto"})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leases/550e8400-e29b-41d4-a716-446655440000/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_Record_InvalidReceivedAt(t *testing.T) {
	h := NewPaymentHandler(nil)

	router := gin.New()
	router.POST("/leases/:id/payments", h.Record)

	body, _ := json.Marshal(RecordPaymentRequest{
		Amount:     "3000.00",
		Method:     "cash",
		ReceivedAt: "05/03/2026",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/leases/550e8400-e29b-41d4-a716-446655440000/payments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error.Message, "RFC3339")
}

func TestPaymentHandler_Apply_InvalidPaymentID(t *testing.T) {
	h := NewPaymentHandler(nil)

	router := gin.New()
	router.POST("/payments/:id/applications", h.Apply)

	body, _ := json.Marshal(ApplyPaymentRequest{
		InvoiceID: "550e8400-e29b-41d4-a716-446655440000",
		Amount:    "100.00",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/xyz/applications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_Apply_InvalidInvoiceID(t *testing.T) {
	h := NewPaymentHandler(nil)

	router := gin.New()
	router.POST("/payments/:id/applications", h.Apply)

	body, _ := json.Marshal(ApplyPaymentRequest{
		InvoiceID: "not-a-uuid",
		Amount:    "100.00",
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/payments/550e8400-e29b-41d4-a716-446655440000/applications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	// The uuid binding tag rejects it before the handler's own parse.
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentHandler_List_RejectsBadDate(t *testing.T) {
	h := NewPaymentHandler(nil)

	router := gin.New()
	router.GET("/leases/:id/payments", h.List)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/leases/550e8400-e29b-41d4-a716-446655440000/payments?from=03-2026", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
