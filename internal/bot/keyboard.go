package bot

import (
	tele "gopkg.in/telebot.v3"

	"pulsabot/internal/models"
)

// Callback uniques for the inline menus.
const (
	cbProducts      = "lihat_produk"
	cbBuy           = "beli_produk"
	cbTopUp         = "topup"
	cbCheck         = "cek_status"
	cbHistory       = "riwayat"
	cbStock         = "stock_akrab"
	cbBalance       = "lihat_saldo"
	cbAllHistory    = "semua_riwayat"
	cbManage        = "manajemen_produk"
	cbExport        = "export_csv"
	cbBack          = "back_menu"
	cbPickProduct   = "produk"
	cbEditPrice     = "editharga"
	cbEditDesc      = "editdeskripsi"
	cbTopUpConfirm  = "topup_ok"
	cbTopUpReject   = "topup_no"
)

// MainMenu builds the inline main menu; admins get extra rows.
func (b *Bot) MainMenu(chatID string) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}

	rows := []tele.Row{
		menu.Row(menu.Data("🛍 Daftar Produk", cbProducts), menu.Data("🛒 Beli Produk", cbBuy)),
		menu.Row(menu.Data("💳 Top Up Saldo", cbTopUp), menu.Data("💰 Saldo", cbBalance)),
		menu.Row(menu.Data("🔎 Cek Status", cbCheck), menu.Data("🧾 Riwayat", cbHistory)),
		menu.Row(menu.Data("📊 Cek Stok", cbStock)),
	}
	if b.cfg.Bot.IsAdmin(chatID) {
		rows = append(rows,
			menu.Row(menu.Data("📋 Semua Riwayat", cbAllHistory), menu.Data("⚙️ Manajemen Produk", cbManage)),
			menu.Row(menu.Data("📤 Export CSV", cbExport)),
		)
	}

	menu.Inline(rows...)
	return menu
}

// ProductMenu lists the catalog as one button per product.
func (b *Bot) ProductMenu(products []models.Product) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, p := range products {
		rows = append(rows, menu.Row(menu.Data(p.Code+" | "+p.Name, cbPickProduct, p.Code)))
	}
	rows = append(rows, menu.Row(menu.Data("⬅️ Kembali", cbBack)))
	menu.Inline(rows...)
	return menu
}

// ManageMenu lists the catalog for the admin edit flow.
func (b *Bot) ManageMenu(products []models.Product) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	var rows []tele.Row
	for _, p := range products {
		rows = append(rows, menu.Row(
			menu.Data("💲 "+p.Code, cbEditPrice, p.Code),
			menu.Data("📝 "+p.Code, cbEditDesc, p.Code),
		))
	}
	rows = append(rows, menu.Row(menu.Data("⬅️ Kembali", cbBack)))
	menu.Inline(rows...)
	return menu
}

// TopUpReviewMenu is sent to the admin alongside a new top-up request.
func (b *Bot) TopUpReviewMenu(topupID string) *tele.ReplyMarkup {
	menu := &tele.ReplyMarkup{}
	menu.Inline(menu.Row(
		menu.Data("✅ Konfirmasi", cbTopUpConfirm, topupID),
		menu.Data("❌ Tolak", cbTopUpReject, topupID),
	))
	return menu
}
