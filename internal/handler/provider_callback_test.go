package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulsabot/internal/ledger"
	"pulsabot/internal/middleware"
	"pulsabot/internal/models"
)

type fakeLedger struct {
	calls     []string
	err       error
	lookupTrx *models.Transaction
}

func (f *fakeLedger) Finalize(refID, status, detail string) error {
	f.calls = append(f.calls, refID+"/"+status)
	return f.err
}

func (f *fakeLedger) Lookup(refID string) (*models.Transaction, error) {
	if f.lookupTrx == nil {
		return nil, ledger.ErrNotFound
	}
	return f.lookupTrx, nil
}

type fakeNotifier struct {
	sent []string
}

func (f *fakeNotifier) SendMessage(chatID, text string) (string, error) {
	f.sent = append(f.sent, chatID)
	return "", nil
}

func doWebhook(h *ProviderCallbackHandler, message string) (*httptest.ResponseRecorder, map[string]interface{}) {
	e := echo.New()
	q := ""
	if message != "" {
		q = "?message=" + url.QueryEscape(message)
	}
	req := httptest.NewRequest(http.MethodGet, "/webhook"+q, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = h.Handle(c)

	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestHandleEmptyMessage(t *testing.T) {
	fl := &fakeLedger{}
	h := NewProviderCallbackHandler(fl, nil, nil, zap.NewNop())

	rec, body := doWebhook(h, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Empty(t, fl.calls)
}

func TestHandleUnrecognizedFormat(t *testing.T) {
	fl := &fakeLedger{}
	h := NewProviderCallbackHandler(fl, nil, nil, zap.NewNop())

	rec, body := doWebhook(h, "halo dunia ini bukan callback")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "unrecognized format", body["error"])
	assert.Empty(t, fl.calls)
}

func TestHandleNonTerminalStatusIgnored(t *testing.T) {
	fl := &fakeLedger{}
	h := NewProviderCallbackHandler(fl, nil, nil, zap.NewNop())

	rec, body := doWebhook(h, "RC=abc123 TrxID=1 bpal1.081234567890 proses Transaksi sedang diproses")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ignored", body["status"])
	assert.Empty(t, fl.calls)
}

func TestHandleSuccessCallback(t *testing.T) {
	fl := &fakeLedger{
		lookupTrx: &models.Transaction{
			RefID: "abc123", UserID: "111",
			ProductCode: "bpal1", Destination: "081234567890",
			Price: 9000, Status: models.StatusSuccess,
		},
	}
	fn := &fakeNotifier{}
	h := NewProviderCallbackHandler(fl, fn, nil, zap.NewNop())

	rec, body := doWebhook(h, "RC=abc123 TrxID=1 bpal1.081234567890 sukses Transaksi sukses")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "abc123", body["ref_id"])
	assert.Equal(t, models.StatusSuccess, body["status"])

	require.Len(t, fl.calls, 1)
	assert.Equal(t, "abc123/"+models.StatusSuccess, fl.calls[0])
	assert.Equal(t, []string{"111"}, fn.sent)
}

func TestHandleGagalMapsToCancelled(t *testing.T) {
	fl := &fakeLedger{}
	h := NewProviderCallbackHandler(fl, nil, nil, zap.NewNop())

	rec, _ := doWebhook(h, "RC=abc123 TrxID=1 bpal1.081234567890 gagal Nomor salah")
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fl.calls, 1)
	assert.Equal(t, "abc123/"+models.StatusCancelled, fl.calls[0])
}

func TestHandleUnknownReferenceAcked(t *testing.T) {
	fl := &fakeLedger{err: ledger.ErrNotFound}
	h := NewProviderCallbackHandler(fl, nil, nil, zap.NewNop())

	rec, body := doWebhook(h, "RC=abc123 TrxID=1 bpal1.081234567890 sukses Transaksi sukses")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, body["ok"])
	assert.Equal(t, "unknown reference", body["error"])
}

func TestHandleInternalError(t *testing.T) {
	fl := &fakeLedger{err: assert.AnError}
	h := NewProviderCallbackHandler(fl, nil, nil, zap.NewNop())

	rec, body := doWebhook(h, "RC=abc123 TrxID=1 bpal1.081234567890 sukses Transaksi sukses")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", body["error"])
}

func TestHandleDuplicateDeliverySuppressed(t *testing.T) {
	fl := &fakeLedger{}
	deduper, err := middleware.NewCallbackDeduper("", "", 0, time.Minute)
	require.NoError(t, err)
	h := NewProviderCallbackHandler(fl, nil, deduper, zap.NewNop())

	msg := "RC=abc123 TrxID=1 bpal1.081234567890 sukses Transaksi sukses"

	rec, _ := doWebhook(h, msg)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fl.calls, 1)

	rec, body := doWebhook(h, msg)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "duplicate", body["status"])
	assert.Len(t, fl.calls, 1)
}

func TestHandlePostFormMessage(t *testing.T) {
	fl := &fakeLedger{}
	h := NewProviderCallbackHandler(fl, nil, nil, zap.NewNop())

	e := echo.New()
	form := url.Values{"message": {"RC=abc123 TrxID=1 bpal1.081234567890 sukses Transaksi sukses"}}
	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.PostForm = form
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	_ = h.Handle(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, fl.calls, 1)
}
