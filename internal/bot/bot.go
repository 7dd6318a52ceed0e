package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"pulsabot/internal/config"
	"pulsabot/internal/ledger"
	"pulsabot/internal/models"
	"pulsabot/internal/pkg/utils"
	"pulsabot/internal/provider"
	"pulsabot/internal/repository"
)

// Conversation steps, persisted on the user row.
const (
	stepNone        = "none"
	stepDestination = "input_destination"
	stepConfirm     = "confirm"
	stepTopUp       = "topup_nominal"
	stepEditPrice   = "admin_edit_price"
	stepEditDesc    = "admin_edit_desc"
)

// stepData carries the in-flight conversation payload between messages.
type stepData struct {
	ProductCode string `json:"product_code,omitempty"`
	Destination string `json:"destination,omitempty"`
	EditCode    string `json:"edit_code,omitempty"`
}

// BotRepos bundles the repositories used by bot handlers.
type BotRepos struct {
	User        *repository.UserRepository
	Product     *repository.ProductRepository
	Transaction *repository.TransactionRepository
	TopUp       *repository.TopUpRepository
}

// Bot wraps the telebot instance and handlers.
type Bot struct {
	tb       *tele.Bot
	cfg      *config.Config
	repos    *BotRepos
	ledger   *ledger.Ledger
	provider *provider.Client
	qris     *provider.QRISClient
	logger   *zap.Logger
}

// New creates and configures a new Bot instance.
func New(cfg *config.Config, repos *BotRepos, lg *ledger.Ledger, pc *provider.Client, qc *provider.QRISClient, logger *zap.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Bot.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			logger.Error("telebot error", zap.Error(err))
		},
	}

	tb, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telebot: %w", err)
	}

	b := &Bot{
		tb:       tb,
		cfg:      cfg,
		repos:    repos,
		ledger:   lg,
		provider: pc,
		qris:     qc,
		logger:   logger,
	}

	b.registerHandlers()

	return b, nil
}

// Start begins long polling.
func (b *Bot) Start() {
	b.logger.Info("Starting Telegram bot", zap.String("mode", "polling"))
	b.tb.Start()
}

// Stop gracefully shuts down the bot.
func (b *Bot) Stop() {
	b.tb.Stop()
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle(tele.OnText, b.handleText)
	b.tb.Handle(tele.OnCallback, b.handleCallback)
}

// ── /start ────────────────────────────────────────────────────────────

func (b *Bot) handleStart(c tele.Context) error {
	chatID := fmt.Sprintf("%d", c.Chat().ID)

	user, err := b.ensureUser(c)
	if err != nil {
		b.logger.Error("failed to create user", zap.String("chat_id", chatID), zap.Error(err))
		return c.Send("Terjadi kesalahan, coba lagi.")
	}

	_ = b.repos.User.UpdateStep(chatID, stepNone, "")

	name := user.FullName
	if name == "" {
		name = c.Sender().FirstName
	}
	return c.Send(
		fmt.Sprintf("Halo <b>%s</b>!\nGunakan menu di bawah.", name),
		b.MainMenu(chatID), tele.ModeHTML,
	)
}

// ensureUser creates the user row on first contact.
func (b *Bot) ensureUser(c tele.Context) (*models.User, error) {
	chatID := fmt.Sprintf("%d", c.Chat().ID)

	user, err := b.repos.User.FindByID(chatID)
	if err == nil {
		return user, nil
	}
	if !repository.IsNotFound(err) {
		return nil, err
	}

	user = &models.User{
		ID:       chatID,
		Username: c.Sender().Username,
		FullName: strings.TrimSpace(c.Sender().FirstName + " " + c.Sender().LastName),
		Step:     stepNone,
		Register: utils.NowStamp(),
	}
	if err := b.repos.User.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// ── Callback routing ──────────────────────────────────────────────────

func (b *Bot) handleCallback(c tele.Context) error {
	defer func() { _ = c.Respond() }()

	chatID := fmt.Sprintf("%d", c.Chat().ID)
	if _, err := b.ensureUser(c); err != nil {
		return err
	}

	data := strings.TrimPrefix(c.Callback().Data, "\f")
	unique, payload := data, ""
	if i := strings.Index(data, "|"); i >= 0 {
		unique, payload = data[:i], data[i+1:]
	}

	switch unique {
	case cbProducts:
		return b.showProducts(c, chatID)
	case cbBuy:
		products, err := b.repos.Product.FindAll()
		if err != nil {
			return c.Edit("Gagal memuat produk.", b.MainMenu(chatID))
		}
		_ = b.repos.User.UpdateStep(chatID, stepNone, "")
		return c.Edit("Pilih produk yang ingin dibeli:", b.ProductMenu(products))
	case cbPickProduct:
		return b.pickProduct(c, chatID, payload)
	case cbTopUp:
		_ = b.repos.User.UpdateStep(chatID, stepTopUp, "")
		return c.Edit(
			fmt.Sprintf("Masukkan nominal Top Up saldo yang diinginkan (minimal %s):", utils.FormatNumber(b.cfg.Provider.MinTopUp)),
			b.MainMenu(chatID), tele.ModeHTML,
		)
	case cbCheck:
		return c.Edit("Kirim format: <code>CEK|refid</code>", b.MainMenu(chatID), tele.ModeHTML)
	case cbHistory:
		return b.showHistory(c, chatID)
	case cbBalance:
		return b.showBalance(c, chatID)
	case cbStock:
		return b.showStock(c, chatID)
	case cbBack:
		_ = b.repos.User.UpdateStep(chatID, stepNone, "")
		return c.Edit("Gunakan menu di bawah.", b.MainMenu(chatID))
	case cbAllHistory, cbManage, cbExport, cbEditPrice, cbEditDesc, cbTopUpConfirm, cbTopUpReject:
		return b.handleAdminCallback(c, chatID, unique, payload)
	}

	return c.Edit("Menu tidak dikenal.", b.MainMenu(chatID))
}

// ── Text routing ──────────────────────────────────────────────────────

func (b *Bot) handleText(c tele.Context) error {
	chatID := fmt.Sprintf("%d", c.Chat().ID)

	user, err := b.ensureUser(c)
	if err != nil {
		return c.Send("Lakukan /start terlebih dahulu.")
	}

	text := strings.TrimSpace(c.Text())

	switch user.Step {
	case stepDestination:
		return b.handleDestination(c, user, text)
	case stepConfirm:
		return b.handleConfirm(c, user, text)
	case stepTopUp:
		return b.handleTopUpNominal(c, user, text)
	case stepEditPrice, stepEditDesc:
		return b.handleAdminEdit(c, user, text)
	}

	if strings.HasPrefix(text, "CEK|") {
		return b.handleCheck(c, chatID, strings.SplitN(text, "|", 2)[1])
	}
	if strings.HasPrefix(text, "TAMBAH|") && b.cfg.Bot.IsAdmin(chatID) {
		return b.handleAdminCredit(c, chatID, strings.SplitN(text, "|", 2)[1])
	}

	return c.Send("Gunakan menu.", b.MainMenu(chatID))
}

// ── Product browsing & buy conversation ───────────────────────────────

func (b *Bot) showProducts(c tele.Context, chatID string) error {
	products, err := b.repos.Product.FindAll()
	if err != nil {
		return c.Edit("Gagal memuat produk.", b.MainMenu(chatID))
	}

	var sb strings.Builder
	sb.WriteString("<b>Daftar Produk:</b>\n")
	for _, p := range products {
		fmt.Fprintf(&sb, "<code>%s</code> | %s | <b>Rp %s</b> | Kuota: %d\n",
			p.Code, p.Name, utils.FormatNumber(p.Price), p.Quota)
	}
	return c.Edit(sb.String(), b.MainMenu(chatID), tele.ModeHTML)
}

func (b *Bot) pickProduct(c tele.Context, chatID, code string) error {
	p, err := b.repos.Product.FindByCode(code)
	if err != nil {
		return c.Edit("Produk tidak valid.", b.MainMenu(chatID))
	}

	data, _ := json.Marshal(stepData{ProductCode: p.Code})
	_ = b.repos.User.UpdateStep(chatID, stepDestination, string(data))

	return c.Edit(
		fmt.Sprintf("Produk yang dipilih:\n<b>%s</b> - %s\nHarga: Rp %s\nKuota: %d\n\nSilakan input nomor tujuan:",
			p.Code, p.Name, utils.FormatNumber(p.Price), p.Quota),
		tele.ModeHTML,
	)
}

func (b *Bot) handleDestination(c tele.Context, user *models.User, text string) error {
	if !utils.IsNumeric(text) || len(text) < b.cfg.Provider.MinDestLen {
		return c.Send("Format nomor tidak valid. Masukkan ulang.")
	}

	var data stepData
	_ = json.Unmarshal([]byte(user.StepData), &data)
	data.Destination = text

	p, err := b.repos.Product.FindByCode(data.ProductCode)
	if err != nil {
		_ = b.repos.User.UpdateStep(user.ID, stepNone, "")
		return c.Send("Produk tidak ditemukan.", b.MainMenu(user.ID))
	}

	raw, _ := json.Marshal(data)
	_ = b.repos.User.UpdateStep(user.ID, stepConfirm, string(raw))

	return c.Send(
		fmt.Sprintf("Konfirmasi pesanan:\nProduk: <b>%s</b> - %s\nHarga: Rp %s\nNomor: <b>%s</b>\n\nKetik 'YA' untuk konfirmasi atau 'BATAL' untuk membatalkan.",
			p.Code, p.Name, utils.FormatNumber(p.Price), text),
		tele.ModeHTML,
	)
}

func (b *Bot) handleConfirm(c tele.Context, user *models.User, text string) error {
	switch strings.ToUpper(text) {
	case "BATAL":
		_ = b.repos.User.UpdateStep(user.ID, stepNone, "")
		return c.Send("Transaksi dibatalkan.", b.MainMenu(user.ID))
	case "YA":
	default:
		return c.Send("Ketik 'YA' untuk konfirmasi atau 'BATAL' untuk batal.")
	}

	var data stepData
	_ = json.Unmarshal([]byte(user.StepData), &data)
	_ = b.repos.User.UpdateStep(user.ID, stepNone, "")

	// Re-read the product so an admin price override applies to this buy.
	p, err := b.repos.Product.FindByCode(data.ProductCode)
	if err != nil {
		return c.Send("Produk tidak ditemukan.", b.MainMenu(user.ID))
	}

	trx, err := b.ledger.ReserveAndCreate(context.Background(), user.ID, p.Code, data.Destination, p.Price, "")
	if err != nil {
		return c.Send(b.purchaseErrorText(err), b.MainMenu(user.ID), tele.ModeHTML)
	}

	balance, _ := b.ledger.Balance(user.ID)
	return c.Send(
		fmt.Sprintf("✅ Transaksi dibuat!\nProduk: %s\nTujuan: %s\nRefID: <code>%s</code>\nStatus: %s\nSaldo tersisa: Rp %s",
			trx.ProductCode, trx.Destination, trx.RefID, trx.Status, utils.FormatNumber(balance)),
		b.MainMenu(user.ID), tele.ModeHTML,
	)
}

func (b *Bot) purchaseErrorText(err error) string {
	var rejected *ledger.ProviderRejectedError
	switch {
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return "Saldo Anda tidak cukup. Silakan Top Up terlebih dahulu."
	case errors.Is(err, ledger.ErrProviderUnavailable):
		return "Provider sedang tidak dapat dihubungi. Saldo tidak terpotong, coba lagi nanti."
	case errors.As(err, &rejected):
		msg := rejected.Message
		if msg == "" {
			msg = "Gagal membuat transaksi."
		}
		return fmt.Sprintf("Gagal membuat transaksi:\n<b>%s</b>", msg)
	}
	return "Terjadi kesalahan, coba lagi."
}

// ── Balance, history, status, stock ───────────────────────────────────

func (b *Bot) showBalance(c tele.Context, chatID string) error {
	balance, err := b.ledger.Balance(chatID)
	if err != nil {
		return c.Edit("Gagal memuat saldo.", b.MainMenu(chatID))
	}
	return c.Edit(
		fmt.Sprintf("Saldo Anda: <b>Rp %s</b>", utils.FormatNumber(balance)),
		b.MainMenu(chatID), tele.ModeHTML,
	)
}

func (b *Bot) showHistory(c tele.Context, chatID string) error {
	items, err := b.ledger.History(chatID, 10)
	if err != nil {
		return c.Edit("Gagal memuat riwayat.", b.MainMenu(chatID))
	}

	var sb strings.Builder
	sb.WriteString("<b>Riwayat Transaksi Anda:</b>\n")
	for _, r := range items {
		fmt.Fprintf(&sb, "%s | <code>%s</code>\n%s ke %s | Rp %s\nStatus: <b>%s</b>\n\n",
			r.CreatedAt, r.RefID, r.ProductCode, r.Destination,
			utils.FormatNumber(r.Price), r.Status)
	}
	if len(items) == 0 {
		sb.WriteString("Belum ada transaksi.")
	}
	return c.Edit(sb.String(), b.MainMenu(chatID), tele.ModeHTML)
}

func (b *Bot) handleCheck(c tele.Context, chatID, refID string) error {
	refID = strings.TrimSpace(refID)
	if refID == "" {
		return c.Send("Kirim format: <code>CEK|refid</code>", b.MainMenu(chatID), tele.ModeHTML)
	}

	trx, err := b.ledger.Lookup(refID)
	if err == nil {
		return c.Send(
			fmt.Sprintf("Status transaksi <code>%s</code>:\nProduk: %s\nTujuan: %s\nHarga: Rp %s\nWaktu: %s\nStatus: <b>%s</b>\nKeterangan: %s",
				trx.RefID, trx.ProductCode, trx.Destination,
				utils.FormatNumber(trx.Price), trx.CreatedAt, trx.Status, trx.Detail),
			b.MainMenu(chatID), tele.ModeHTML,
		)
	}

	// Unknown locally; fall back to the provider's history API.
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Provider.Timeout)
	defer cancel()
	hist, err := b.provider.History(ctx, refID)
	if err != nil {
		return c.Send("Gagal cek status transaksi.", b.MainMenu(chatID))
	}
	return c.Send(
		fmt.Sprintf("Status transaksi <code>%s</code> (provider):\nStatus: <b>%s</b>\nKeterangan: %s",
			refID, hist.Status, hist.Message),
		b.MainMenu(chatID), tele.ModeHTML,
	)
}

func (b *Bot) showStock(c tele.Context, chatID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.Provider.Timeout)
	defer cancel()

	items, err := b.provider.CheckStock(ctx)
	if err != nil {
		return c.Edit("❌ Provider membalas data tidak valid.", b.MainMenu(chatID))
	}
	if len(items) == 0 {
		return c.Edit("<b>Stok kosong atau tidak ditemukan.</b>", b.MainMenu(chatID), tele.ModeHTML)
	}

	var sb strings.Builder
	sb.WriteString("<b>📊 Cek Stok Produk Akrab:</b>\n\n<pre>")
	for _, item := range items {
		fmt.Fprintf(&sb, "%-8s | %-20s | %4d\n", item.Type, item.Name, item.SisaSlot)
	}
	sb.WriteString("</pre>")
	return c.Edit(sb.String(), b.MainMenu(chatID), tele.ModeHTML)
}

// ── Top-up conversation ───────────────────────────────────────────────

func (b *Bot) handleTopUpNominal(c tele.Context, user *models.User, text string) error {
	nominal, err := utils.ParseAmount(text)
	if err != nil || nominal < b.cfg.Provider.MinTopUp {
		return c.Send(fmt.Sprintf("Nominal minimal %s. Masukkan kembali nominal:", utils.FormatNumber(b.cfg.Provider.MinTopUp)))
	}
	_ = b.repos.User.UpdateStep(user.ID, stepNone, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	qrisBase64, err := b.qris.Generate(ctx, nominal)
	if err != nil {
		b.logger.Warn("qris generation failed", zap.Error(err))
		return c.Send("Gagal generate QRIS, coba lagi nanti.", b.MainMenu(user.ID))
	}

	now := utils.NowStamp()
	topup := &models.TopUp{
		UserID:    user.ID,
		Amount:    nominal,
		Status:    models.TopUpWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := b.repos.TopUp.Create(topup); err != nil {
		b.logger.Error("topup record failed", zap.String("user_id", user.ID), zap.Error(err))
		return c.Send("Terjadi kesalahan, coba lagi.", b.MainMenu(user.ID))
	}

	b.notifyAdminsTopUp(topup, user)

	caption := fmt.Sprintf("Silakan lakukan pembayaran Top Up sebesar <b>Rp %s</b>\n\nScan QRIS berikut. Saldo masuk setelah dikonfirmasi admin.", utils.FormatNumber(nominal))
	if photo := qrisPhoto(qrisBase64, caption); photo != nil {
		return c.Send(photo, tele.ModeHTML)
	}
	return c.Send(caption, tele.ModeHTML)
}

func (b *Bot) notifyAdminsTopUp(t *models.TopUp, user *models.User) {
	text := fmt.Sprintf("💳 Permintaan Top Up baru\nUser: %s (@%s)\nNominal: Rp %s",
		t.UserID, user.Username, utils.FormatNumber(t.Amount))
	menu := b.TopUpReviewMenu(strconv.FormatUint(uint64(t.ID), 10))

	for _, adminID := range b.cfg.Bot.AdminIDs {
		id, err := strconv.ParseInt(adminID, 10, 64)
		if err != nil {
			continue
		}
		if _, err := b.tb.Send(tele.ChatID(id), text, menu); err != nil {
			b.logger.Warn("admin notification failed", zap.String("admin_id", adminID), zap.Error(err))
		}
	}
}
