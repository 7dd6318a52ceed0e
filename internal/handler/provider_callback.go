package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"pulsabot/internal/ledger"
	"pulsabot/internal/middleware"
	"pulsabot/internal/models"
	"pulsabot/internal/pkg/utils"
	"pulsabot/internal/webhook"
)

// Finalizer is the slice of the ledger the callback handler needs.
type Finalizer interface {
	Finalize(refID, status, detail string) error
	Lookup(refID string) (*models.Transaction, error)
}

// Notifier pushes a message to a Telegram chat.
type Notifier interface {
	SendMessage(chatID, text string) (string, error)
}

// ProviderCallbackHandler receives the provider's transaction status
// webhooks and drives ledger finalization.
type ProviderCallbackHandler struct {
	ledger   Finalizer
	notifier Notifier
	deduper  middleware.CallbackDeduper
	logger   *zap.Logger
}

// NewProviderCallbackHandler creates a new provider callback handler.
// notifier may be nil (no user notification, e.g. in tests).
func NewProviderCallbackHandler(l Finalizer, notifier Notifier, deduper middleware.CallbackDeduper, logger *zap.Logger) *ProviderCallbackHandler {
	return &ProviderCallbackHandler{
		ledger:   l,
		notifier: notifier,
		deduper:  deduper,
		logger:   logger,
	}
}

// Handle processes GET/POST /webhook. The provider sends the status line in
// the `message` query or form parameter. Anything that is not a recognized
// terminal status is answered 200 so the provider stops redelivering; only
// an empty request is a client error.
func (h *ProviderCallbackHandler) Handle(c echo.Context) error {
	message := c.QueryParam("message")
	if message == "" {
		message = c.FormValue("message")
	}
	if message == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"ok": false, "error": "empty message",
		})
	}

	cb, err := webhook.Parse(message)
	if err != nil {
		h.logger.Warn("unrecognized webhook payload", zap.String("message", message))
		return c.JSON(http.StatusOK, map[string]interface{}{
			"ok": false, "error": "unrecognized format",
		})
	}

	status, terminal := webhook.MapStatus(cb.StatusWord)
	if !terminal {
		h.logger.Info("webhook status ignored",
			zap.String("ref_id", cb.RefID), zap.String("status_word", cb.StatusWord))
		return c.JSON(http.StatusOK, map[string]interface{}{
			"ok": true, "status": "ignored",
		})
	}

	if h.deduper != nil {
		dup, err := h.deduper.Seen(c.Request().Context(), cb.RefID+":"+status)
		if err == nil && dup {
			return c.JSON(http.StatusOK, map[string]interface{}{
				"ok": true, "status": "duplicate",
			})
		}
	}

	if err := h.ledger.Finalize(cb.RefID, status, cb.Detail); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			// A webhook for a transaction this system never created: stale
			// reference or wrong merchant. Logged and acknowledged.
			h.logger.Warn("webhook for unknown reference", zap.String("ref_id", cb.RefID))
			return c.JSON(http.StatusOK, map[string]interface{}{
				"ok": false, "error": "unknown reference",
			})
		}
		h.logger.Error("finalize failed", zap.String("ref_id", cb.RefID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"ok": false, "error": "internal_error",
		})
	}

	h.notifyUser(cb, status)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":     true,
		"ref_id": cb.RefID,
		"status": status,
	})
}

func (h *ProviderCallbackHandler) notifyUser(cb *webhook.Callback, status string) {
	if h.notifier == nil {
		return
	}
	trx, err := h.ledger.Lookup(cb.RefID)
	if err != nil {
		return
	}

	var text string
	if status == models.StatusSuccess {
		text = fmt.Sprintf(
			"✅ Transaksi <code>%s</code> sukses!\nProduk: %s ke %s\nKeterangan: %s",
			trx.RefID, trx.ProductCode, trx.Destination, cb.Detail,
		)
	} else {
		text = fmt.Sprintf(
			"❌ Transaksi <code>%s</code> gagal.\nProduk: %s ke %s\nSaldo Rp %s dikembalikan.\nKeterangan: %s",
			trx.RefID, trx.ProductCode, trx.Destination, utils.FormatNumber(trx.Price), cb.Detail,
		)
	}
	if _, err := h.notifier.SendMessage(trx.UserID, text); err != nil {
		h.logger.Warn("user notification failed",
			zap.String("user_id", trx.UserID), zap.Error(err))
	}
}
