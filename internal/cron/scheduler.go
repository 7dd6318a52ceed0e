package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"pulsabot/internal/config"
	"pulsabot/internal/ledger"
	"pulsabot/internal/models"
	"pulsabot/internal/pkg/telegram"
	"pulsabot/internal/pkg/utils"
	"pulsabot/internal/provider"
	"pulsabot/internal/repository"
	"pulsabot/internal/webhook"
)

// Exporter renders the full transaction log for the nightly backup.
type Exporter interface {
	TransactionsCSV() ([]byte, error)
}

// Scheduler manages all cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	logger   *zap.Logger
	trxs     *repository.TransactionRepository
	ledger   *ledger.Ledger
	provider *provider.Client
	botAPI   *telegram.BotAPI
	exporter Exporter
}

// New creates a new cron scheduler.
func New(cfg *config.Config, trxs *repository.TransactionRepository, lg *ledger.Ledger, pc *provider.Client, botAPI *telegram.BotAPI, exporter Exporter, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		cfg:      cfg,
		logger:   logger,
		trxs:     trxs,
		ledger:   lg,
		provider: pc,
		botAPI:   botAPI,
		exporter: exporter,
	}
}

// Start registers and starts all cron jobs.
func (s *Scheduler) Start() {
	s.logger.Info("Starting cron scheduler...")

	// Reconcile stale pending transactions - every 5 minutes
	s.cron.AddFunc("0 */5 * * * *", func() {
		s.logger.Debug("Running: reconcile pending transactions")
		s.reconcilePending()
	})

	// Transaction log backup - daily at 3 AM
	s.cron.AddFunc("0 0 3 * * *", func() {
		s.logger.Debug("Running: transaction backup")
		s.backup()
	})

	s.cron.Start()
	s.logger.Info("Cron scheduler started")
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// reconcilePending re-checks pending transactions against provider history.
// Covers lost webhooks: a transaction that went terminal upstream but never
// reached the receiver is settled here, through the same finalize path.
func (s *Scheduler) reconcilePending() {
	defer s.recoverFromPanic("reconcilePending")

	cutoff := time.Now().UTC().Add(-10 * time.Minute).Format("2006-01-02 15:04:05")
	stale, err := s.trxs.FindStalePending(cutoff, 50)
	if err != nil {
		s.logger.Error("stale pending lookup failed", zap.Error(err))
		return
	}

	for _, trx := range stale {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Provider.Timeout)
		hist, err := s.provider.History(ctx, trx.RefID)
		cancel()
		if err != nil {
			s.logger.Debug("provider history failed",
				zap.String("ref_id", trx.RefID), zap.Error(err))
			continue
		}

		status, terminal := webhook.MapStatus(hist.Status)
		if !terminal {
			continue
		}

		if err := s.ledger.Finalize(trx.RefID, status, hist.Message); err != nil {
			s.logger.Error("reconcile finalize failed",
				zap.String("ref_id", trx.RefID), zap.Error(err))
			continue
		}

		s.logger.Info("stale transaction reconciled",
			zap.String("ref_id", trx.RefID), zap.String("status", status))
		s.notifyReconciled(&trx, status, hist.Message)
	}
}

func (s *Scheduler) notifyReconciled(trx *models.Transaction, status, detail string) {
	var text string
	if status == models.StatusSuccess {
		text = fmt.Sprintf("✅ Transaksi <code>%s</code> sukses!\nProduk: %s ke %s\nKeterangan: %s",
			trx.RefID, trx.ProductCode, trx.Destination, detail)
	} else {
		text = fmt.Sprintf("❌ Transaksi <code>%s</code> gagal.\nProduk: %s ke %s\nSaldo Rp %s dikembalikan.\nKeterangan: %s",
			trx.RefID, trx.ProductCode, trx.Destination, utils.FormatNumber(trx.Price), detail)
	}
	if _, err := s.botAPI.SendMessage(trx.UserID, text); err != nil {
		s.logger.Warn("reconcile notification failed",
			zap.String("user_id", trx.UserID), zap.Error(err))
	}
}

// backup sends the full transaction log as CSV to every admin chat.
func (s *Scheduler) backup() {
	defer s.recoverFromPanic("backup")

	data, err := s.exporter.TransactionsCSV()
	if err != nil {
		s.logger.Error("backup export failed", zap.Error(err))
		return
	}

	filename := fmt.Sprintf("transaksi-%s.csv", time.Now().UTC().Format("2006-01-02"))
	caption := "📦 Backup harian riwayat transaksi"

	for _, adminID := range s.cfg.Bot.AdminIDs {
		if _, err := s.botAPI.SendDocument(adminID, data, filename, caption); err != nil {
			s.logger.Warn("backup delivery failed",
				zap.String("admin_id", adminID), zap.Error(err))
		}
	}
}

func (s *Scheduler) recoverFromPanic(jobName string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", jobName), zap.Any("error", r))
	}
}
