package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"pulsabot/internal/models"
	"pulsabot/internal/pkg/utils"
	"pulsabot/internal/provider"
)

var (
	ErrInvalidInput        = errors.New("invalid purchase input")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrNotFound            = errors.New("transaction not found")
)

// ProviderRejectedError carries the provider's own rejection message, which
// is shown to the end user verbatim.
type ProviderRejectedError struct {
	Message string
}

func (e *ProviderRejectedError) Error() string {
	if e.Message == "" {
		return "provider rejected transaction"
	}
	return "provider rejected transaction: " + e.Message
}

// BalanceStore is the ledger's view of user balances. Implementations must
// keep Debit from driving a balance negative.
type BalanceStore interface {
	Balance(userID string) (int64, error)
	Credit(userID string, amount int64) error
	Debit(userID string, amount int64) error
}

// TransactionStore is the ledger's view of the transaction log. MarkTerminal
// must be a compare-and-set from pending and report whether the transition
// was won.
type TransactionStore interface {
	Create(trx *models.Transaction) error
	FindByRef(refID string) (*models.Transaction, error)
	FindByUser(userID string, limit int) ([]models.Transaction, error)
	MarkTerminal(refID, status, detail, updatedAt string) (bool, error)
}

// ProviderClient creates the remote side of a purchase.
type ProviderClient interface {
	CreateTransaction(ctx context.Context, productCode, destination, refID string) (*provider.CreateResult, error)
}

// NotFoundChecker lets stores signal missing rows without the ledger
// depending on the storage driver's error values.
type NotFoundChecker interface {
	IsNotFound(err error) bool
}

// Ledger owns user balances and the transaction log. All balance mutations
// for a user run under that user's mutex; webhook finalization is further
// guarded by the store-level CAS, so a redelivered or out-of-order webhook
// can never refund twice or overwrite a terminal status.
type Ledger struct {
	balances BalanceStore
	trxs     TransactionStore
	provider ProviderClient
	timeout  time.Duration
	logger   *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Ledger. timeout bounds the provider call inside
// ReserveAndCreate.
func New(balances BalanceStore, trxs TransactionStore, pc ProviderClient, timeout time.Duration, logger *zap.Logger) *Ledger {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Ledger{
		balances: balances,
		trxs:     trxs,
		provider: pc,
		timeout:  timeout,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing balance mutations for one user.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[userID]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[userID] = lk
	}
	return lk
}

// ReserveAndCreate debits the price, creates the provider-side transaction
// and records it as pending. If the provider call fails, times out, or
// returns no usable reference id, the debit is rolled back and nothing is
// recorded: the user must never pay for a transaction that does not exist.
func (l *Ledger) ReserveAndCreate(ctx context.Context, userID, productCode, destination string, price int64, refID string) (*models.Transaction, error) {
	if price <= 0 || destination == "" || productCode == "" {
		return nil, ErrInvalidInput
	}
	if refID == "" {
		refID = utils.GenerateRefID()
	}

	lk := l.userLock(userID)
	lk.Lock()
	defer lk.Unlock()

	balance, err := l.balances.Balance(userID)
	if err != nil {
		return nil, fmt.Errorf("balance lookup failed: %w", err)
	}
	if balance < price {
		return nil, ErrInsufficientBalance
	}

	if err := l.balances.Debit(userID, price); err != nil {
		return nil, fmt.Errorf("debit failed: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	result, err := l.provider.CreateTransaction(cctx, productCode, destination, refID)
	if err != nil {
		l.rollback(userID, price, refID)
		l.logger.Warn("provider call failed, reservation rolled back",
			zap.String("user_id", userID), zap.String("ref_id", refID), zap.Error(err))
		return nil, ErrProviderUnavailable
	}
	if result.RefID == "" {
		l.rollback(userID, price, refID)
		l.logger.Info("provider rejected transaction",
			zap.String("user_id", userID), zap.String("ref_id", refID),
			zap.String("message", result.Message))
		return nil, &ProviderRejectedError{Message: result.Message}
	}

	now := utils.NowStamp()
	trx := &models.Transaction{
		RefID:       result.RefID,
		TrxID:       result.TrxID,
		UserID:      userID,
		ProductCode: productCode,
		Destination: destination,
		Price:       price,
		Status:      models.StatusPending,
		Detail:      result.Message,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := l.trxs.Create(trx); err != nil {
		// The remote transaction exists but we could not record it; refund
		// and surface loudly so the operator can reconcile by hand.
		l.rollback(userID, price, trx.RefID)
		l.logger.Error("transaction record failed after provider create",
			zap.String("user_id", userID), zap.String("ref_id", trx.RefID), zap.Error(err))
		return nil, fmt.Errorf("transaction record failed: %w", err)
	}

	l.logger.Info("transaction reserved",
		zap.String("user_id", userID), zap.String("ref_id", trx.RefID),
		zap.String("product", productCode), zap.Int64("price", price))
	return trx, nil
}

func (l *Ledger) rollback(userID string, price int64, refID string) {
	if err := l.balances.Credit(userID, price); err != nil {
		l.logger.Error("rollback credit failed",
			zap.String("user_id", userID), zap.String("ref_id", refID),
			zap.Int64("price", price), zap.Error(err))
	}
}

// Finalize moves a pending transaction to a terminal status. Success keeps
// the funds; failed/cancelled refunds them. Calls on an already-terminal
// transaction are no-ops, so redelivered webhooks are harmless.
func (l *Ledger) Finalize(refID, status, detail string) error {
	if !models.IsTerminal(status) {
		return fmt.Errorf("finalize to non-terminal status %q", status)
	}

	trx, err := l.trxs.FindByRef(refID)
	if err != nil {
		if l.isNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("transaction lookup failed: %w", err)
	}

	lk := l.userLock(trx.UserID)
	lk.Lock()
	defer lk.Unlock()

	// Re-read under the lock: the first read raced other deliveries.
	trx, err = l.trxs.FindByRef(refID)
	if err != nil {
		return fmt.Errorf("transaction lookup failed: %w", err)
	}
	if models.IsTerminal(trx.Status) {
		l.logger.Info("finalize ignored, transaction already terminal",
			zap.String("ref_id", refID), zap.String("status", trx.Status))
		return nil
	}

	won, err := l.trxs.MarkTerminal(refID, status, detail, utils.NowStamp())
	if err != nil {
		return fmt.Errorf("status transition failed: %w", err)
	}
	if !won {
		// Another delivery took the transition between our read and the CAS.
		return nil
	}

	if status == models.StatusFailed || status == models.StatusCancelled {
		if err := l.balances.Credit(trx.UserID, trx.Price); err != nil {
			l.logger.Error("refund credit failed",
				zap.String("user_id", trx.UserID), zap.String("ref_id", refID),
				zap.Int64("price", trx.Price), zap.Error(err))
			return fmt.Errorf("refund failed: %w", err)
		}
	}

	l.logger.Info("transaction finalized",
		zap.String("ref_id", refID), zap.String("status", status))
	return nil
}

// Credit adds funds to a user's balance (confirmed top-up, admin adjustment).
func (l *Ledger) Credit(userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidInput
	}
	lk := l.userLock(userID)
	lk.Lock()
	defer lk.Unlock()
	return l.balances.Credit(userID, amount)
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(userID string) (int64, error) {
	return l.balances.Balance(userID)
}

// History returns the user's transactions, newest first.
func (l *Ledger) History(userID string, limit int) ([]models.Transaction, error) {
	return l.trxs.FindByUser(userID, limit)
}

// Lookup returns a single transaction by reference id.
func (l *Ledger) Lookup(refID string) (*models.Transaction, error) {
	trx, err := l.trxs.FindByRef(refID)
	if err != nil {
		if l.isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return trx, nil
}

func (l *Ledger) isNotFound(err error) bool {
	if c, ok := l.trxs.(NotFoundChecker); ok {
		return c.IsNotFound(err)
	}
	return false
}
