package bot

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"pulsabot/internal/models"
	"pulsabot/internal/pkg/utils"
)

// handleAdminCallback routes the admin-only inline buttons. Non-admins that
// somehow press one get bounced back to the main menu.
func (b *Bot) handleAdminCallback(c tele.Context, chatID, unique, payload string) error {
	if !b.cfg.Bot.IsAdmin(chatID) {
		return c.Edit("Menu ini khusus admin.", b.MainMenu(chatID))
	}

	switch unique {
	case cbAllHistory:
		return b.showAllHistory(c, chatID)
	case cbManage:
		products, err := b.repos.Product.FindAll()
		if err != nil {
			return c.Edit("Gagal memuat produk.", b.MainMenu(chatID))
		}
		return c.Edit("Pilih produk untuk diubah (💲 harga, 📝 deskripsi):", b.ManageMenu(products))
	case cbExport:
		return b.exportCSV(c, chatID)
	case cbEditPrice:
		data, _ := json.Marshal(stepData{EditCode: payload})
		_ = b.repos.User.UpdateStep(chatID, stepEditPrice, string(data))
		return c.Edit(fmt.Sprintf("Masukkan harga baru untuk <code>%s</code>:", payload), tele.ModeHTML)
	case cbEditDesc:
		data, _ := json.Marshal(stepData{EditCode: payload})
		_ = b.repos.User.UpdateStep(chatID, stepEditDesc, string(data))
		return c.Edit(fmt.Sprintf("Masukkan deskripsi baru untuk <code>%s</code>:", payload), tele.ModeHTML)
	case cbTopUpConfirm:
		return b.reviewTopUp(c, chatID, payload, true)
	case cbTopUpReject:
		return b.reviewTopUp(c, chatID, payload, false)
	}

	return c.Edit("Menu tidak dikenal.", b.MainMenu(chatID))
}

// handleAdminEdit consumes the price or description the admin typed after
// picking a product in the manage menu.
func (b *Bot) handleAdminEdit(c tele.Context, user *models.User, text string) error {
	var data stepData
	_ = json.Unmarshal([]byte(user.StepData), &data)
	step := user.Step
	_ = b.repos.User.UpdateStep(user.ID, stepNone, "")

	if data.EditCode == "" {
		return c.Send("Sesi edit sudah berakhir.", b.MainMenu(user.ID))
	}

	if step == stepEditPrice {
		price, err := utils.ParseAmount(text)
		if err != nil || price <= 0 {
			return c.Send("Harga tidak valid.", b.MainMenu(user.ID))
		}
		if err := b.repos.Product.UpdatePrice(data.EditCode, price); err != nil {
			return c.Send("Gagal mengubah harga.", b.MainMenu(user.ID))
		}
		return c.Send(
			fmt.Sprintf("Harga <code>%s</code> diubah menjadi Rp %s.", data.EditCode, utils.FormatNumber(price)),
			b.MainMenu(user.ID), tele.ModeHTML,
		)
	}

	if err := b.repos.Product.UpdateDescription(data.EditCode, text); err != nil {
		return c.Send("Gagal mengubah deskripsi.", b.MainMenu(user.ID))
	}
	return c.Send(
		fmt.Sprintf("Deskripsi <code>%s</code> diperbarui.", data.EditCode),
		b.MainMenu(user.ID), tele.ModeHTML,
	)
}

// handleAdminCredit processes "TAMBAH|amount": the admin tops up their own
// balance directly, without a QRIS round trip.
func (b *Bot) handleAdminCredit(c tele.Context, chatID, amountText string) error {
	amount, err := utils.ParseAmount(amountText)
	if err != nil || amount <= 0 {
		return c.Send("Format: <code>TAMBAH|nominal</code>", b.MainMenu(chatID), tele.ModeHTML)
	}

	if err := b.ledger.Credit(chatID, amount); err != nil {
		b.logger.Error("admin credit failed", zap.String("chat_id", chatID), zap.Error(err))
		return c.Send("Gagal menambah saldo.", b.MainMenu(chatID))
	}

	balance, _ := b.ledger.Balance(chatID)
	return c.Send(
		fmt.Sprintf("Saldo ditambah Rp %s.\nSaldo sekarang: <b>Rp %s</b>",
			utils.FormatNumber(amount), utils.FormatNumber(balance)),
		b.MainMenu(chatID), tele.ModeHTML,
	)
}

// reviewTopUp settles a waiting top-up. The repository's compare-and-set
// keeps a double tap on the confirm button from crediting twice.
func (b *Bot) reviewTopUp(c tele.Context, chatID, payload string, confirm bool) error {
	id, err := strconv.ParseUint(payload, 10, 32)
	if err != nil {
		return c.Edit("Top up tidak valid.", b.MainMenu(chatID))
	}

	topup, err := b.repos.TopUp.FindByID(uint(id))
	if err != nil {
		return c.Edit("Top up tidak ditemukan.", b.MainMenu(chatID))
	}

	status := models.TopUpConfirmed
	if !confirm {
		status = models.TopUpRejected
	}

	won, err := b.repos.TopUp.MarkStatus(uint(id), status, utils.NowStamp())
	if err != nil {
		b.logger.Error("topup review failed", zap.Uint("topup_id", uint(id)), zap.Error(err))
		return c.Edit("Terjadi kesalahan.", b.MainMenu(chatID))
	}
	if !won {
		return c.Edit("Top up ini sudah diproses.", b.MainMenu(chatID))
	}

	if confirm {
		if err := b.ledger.Credit(topup.UserID, topup.Amount); err != nil {
			b.logger.Error("topup credit failed",
				zap.String("user_id", topup.UserID), zap.Error(err))
			return c.Edit("Status diubah tetapi kredit saldo gagal, periksa manual.", b.MainMenu(chatID))
		}
		b.notify(topup.UserID, fmt.Sprintf(
			"✅ Top Up Rp %s dikonfirmasi. Saldo sudah masuk.", utils.FormatNumber(topup.Amount)))
		return c.Edit(
			fmt.Sprintf("Top Up #%d (Rp %s) dikonfirmasi.", topup.ID, utils.FormatNumber(topup.Amount)),
			b.MainMenu(chatID),
		)
	}

	b.notify(topup.UserID, fmt.Sprintf(
		"❌ Top Up Rp %s ditolak admin.", utils.FormatNumber(topup.Amount)))
	return c.Edit(
		fmt.Sprintf("Top Up #%d ditolak.", topup.ID),
		b.MainMenu(chatID),
	)
}

func (b *Bot) showAllHistory(c tele.Context, chatID string) error {
	trxs, err := b.repos.Transaction.FindAll(30)
	if err != nil {
		return c.Edit("Gagal memuat riwayat.", b.MainMenu(chatID))
	}

	var sb strings.Builder
	sb.WriteString("<b>Riwayat Semua Transaksi:</b>\n")
	for _, r := range trxs {
		fmt.Fprintf(&sb, "%s | %s\n<code>%s</code>\n%s ke %s | Rp %s | <b>%s</b>\n\n",
			r.CreatedAt, r.UserID, r.RefID, r.ProductCode, r.Destination,
			utils.FormatNumber(r.Price), r.Status)
	}
	if len(trxs) == 0 {
		sb.WriteString("Belum ada transaksi.")
	}
	return c.Edit(sb.String(), b.MainMenu(chatID), tele.ModeHTML)
}

// exportCSV sends the full transaction ledger as a CSV document.
func (b *Bot) exportCSV(c tele.Context, chatID string) error {
	data, err := b.TransactionsCSV()
	if err != nil {
		b.logger.Error("csv export failed", zap.Error(err))
		return c.Edit("Gagal membuat export.", b.MainMenu(chatID))
	}

	doc := &tele.Document{
		File:     tele.FromReader(bytes.NewReader(data)),
		FileName: "transaksi.csv",
		MIME:     "text/csv",
	}
	if err := c.Send(doc); err != nil {
		return err
	}
	return c.Edit("Export terkirim.", b.MainMenu(chatID))
}

// TransactionsCSV renders every transaction row as CSV. Shared with the
// nightly backup job.
func (b *Bot) TransactionsCSV() ([]byte, error) {
	trxs, err := b.repos.Transaction.FindAll(100000)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"ref_id", "trx_id", "user_id", "product", "destination", "price", "status", "detail", "created_at", "updated_at"})
	for _, t := range trxs {
		_ = w.Write([]string{
			t.RefID, t.TrxID, t.UserID, t.ProductCode, t.Destination,
			strconv.FormatInt(t.Price, 10), t.Status, t.Detail, t.CreatedAt, t.UpdatedAt,
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// notify best-effort pushes a message to a user chat.
func (b *Bot) notify(userID, text string) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return
	}
	if _, err := b.tb.Send(tele.ChatID(id), text, tele.ModeHTML); err != nil {
		b.logger.Warn("user notification failed", zap.String("user_id", userID), zap.Error(err))
	}
}
