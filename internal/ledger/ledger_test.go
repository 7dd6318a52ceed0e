package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pulsabot/internal/models"
	"pulsabot/internal/provider"
)

var errNoRow = errors.New("row not found")

type memBalances struct {
	mu       sync.Mutex
	balances map[string]int64
}

func newMemBalances() *memBalances {
	return &memBalances{balances: make(map[string]int64)}
}

func (m *memBalances) Balance(userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *memBalances) Credit(userID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += amount
	return nil
}

func (m *memBalances) Debit(userID string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < amount {
		return fmt.Errorf("debit refused for user %s", userID)
	}
	m.balances[userID] -= amount
	return nil
}

func (m *memBalances) total() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, b := range m.balances {
		sum += b
	}
	return sum
}

type memTrxs struct {
	mu   sync.Mutex
	rows map[string]*models.Transaction
}

func newMemTrxs() *memTrxs {
	return &memTrxs{rows: make(map[string]*models.Transaction)}
}

func (m *memTrxs) Create(trx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[trx.RefID]; ok {
		return fmt.Errorf("duplicate ref_id %s", trx.RefID)
	}
	cp := *trx
	m.rows[trx.RefID] = &cp
	return nil
}

func (m *memTrxs) FindByRef(refID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[refID]
	if !ok {
		return nil, errNoRow
	}
	cp := *row
	return &cp, nil
}

func (m *memTrxs) FindByUser(userID string, limit int) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *memTrxs) MarkTerminal(refID, status, detail, updatedAt string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[refID]
	if !ok || row.Status != models.StatusPending {
		return false, nil
	}
	row.Status = status
	row.Detail = detail
	row.UpdatedAt = updatedAt
	return true, nil
}

func (m *memTrxs) IsNotFound(err error) bool {
	return errors.Is(err, errNoRow)
}

type fakeProvider struct {
	mu      sync.Mutex
	fail    bool
	reject  bool
	message string
	calls   int
}

func (p *fakeProvider) CreateTransaction(_ context.Context, productCode, destination, refID string) (*provider.CreateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail {
		return nil, errors.New("connection refused")
	}
	if p.reject {
		return &provider.CreateResult{RefID: "", Message: p.message}, nil
	}
	return &provider.CreateResult{RefID: refID, TrxID: "12345", Status: "pending", Message: "Transaksi diproses"}, nil
}

func newTestLedger(balances *memBalances, trxs *memTrxs, p *fakeProvider) *Ledger {
	return New(balances, trxs, p, 0, zap.NewNop())
}

func TestReserveAndCreateDebitsAndRecordsPending(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 20000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{})

	trx, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "ref-a1")
	require.NoError(t, err)
	assert.Equal(t, "ref-a1", trx.RefID)
	assert.Equal(t, models.StatusPending, trx.Status)

	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(11000), balance)

	stored, err := trxs.FindByRef("ref-a1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Equal(t, int64(9000), stored.Price)
}

func TestReserveAndCreateInsufficientBalance(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 5000
	trxs := newMemTrxs()
	p := &fakeProvider{}
	l := newTestLedger(balances, trxs, p)

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// No debit happened and the provider was never called.
	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(5000), balance)
	assert.Equal(t, 0, p.calls)
	assert.Empty(t, trxs.rows)
}

func TestReserveAndCreateProviderFailureRollsBack(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 20000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{fail: true})

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(20000), balance)
	assert.Empty(t, trxs.rows)
}

func TestReserveAndCreateProviderRejectionRollsBack(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 20000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{reject: true, message: "Produk gangguan"})

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "")

	var rejected *ProviderRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "Produk gangguan", rejected.Message)

	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(20000), balance)
	assert.Empty(t, trxs.rows)
}

func TestReserveAndCreateInvalidInput(t *testing.T) {
	l := newTestLedger(newMemBalances(), newMemTrxs(), &fakeProvider{})

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "", 9000, "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 0, "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFinalizeSuccessKeepsFunds(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 20000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{})

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "ref-b1")
	require.NoError(t, err)

	require.NoError(t, l.Finalize("ref-b1", models.StatusSuccess, "Transaksi sukses"))

	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(11000), balance)

	trx, _ := trxs.FindByRef("ref-b1")
	assert.Equal(t, models.StatusSuccess, trx.Status)
	assert.Equal(t, "Transaksi sukses", trx.Detail)
}

func TestFinalizeCancelledRefundsExactlyOnce(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 20000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{})

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "ref-c1")
	require.NoError(t, err)

	// First delivery refunds; the next four are redeliveries and must not.
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Finalize("ref-c1", models.StatusCancelled, "Transaksi gagal"))
	}

	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(20000), balance)

	trx, _ := trxs.FindByRef("ref-c1")
	assert.Equal(t, models.StatusCancelled, trx.Status)
}

func TestFinalizeConflictingDeliveriesFirstWins(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 20000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{})

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "ref-d1")
	require.NoError(t, err)

	require.NoError(t, l.Finalize("ref-d1", models.StatusSuccess, "ok"))
	require.NoError(t, l.Finalize("ref-d1", models.StatusCancelled, "late cancel"))

	// Success won; the late cancellation neither refunds nor flips the status.
	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(11000), balance)
	trx, _ := trxs.FindByRef("ref-d1")
	assert.Equal(t, models.StatusSuccess, trx.Status)
	assert.Equal(t, "ok", trx.Detail)
}

func TestFinalizeCancelThenSuccessKeepsRefund(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 20000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{})

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "ref-d2")
	require.NoError(t, err)

	require.NoError(t, l.Finalize("ref-d2", models.StatusCancelled, "gagal"))
	require.NoError(t, l.Finalize("ref-d2", models.StatusSuccess, "late success"))

	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(20000), balance)
	trx, _ := trxs.FindByRef("ref-d2")
	assert.Equal(t, models.StatusCancelled, trx.Status)
}

func TestFinalizeUnknownReference(t *testing.T) {
	l := newTestLedger(newMemBalances(), newMemTrxs(), &fakeProvider{})
	err := l.Finalize("no-such-ref", models.StatusSuccess, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFinalizeRejectsNonTerminalStatus(t *testing.T) {
	l := newTestLedger(newMemBalances(), newMemTrxs(), &fakeProvider{})
	err := l.Finalize("ref-x", models.StatusPending, "")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestConcurrentFinalizeRefundsOnce(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 20000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{})

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "ref-e1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Finalize("ref-e1", models.StatusCancelled, "gagal")
		}()
	}
	wg.Wait()

	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(20000), balance)
}

func TestCreditValidatesAmount(t *testing.T) {
	balances := newMemBalances()
	l := newTestLedger(balances, newMemTrxs(), &fakeProvider{})

	assert.ErrorIs(t, l.Credit("111", 0), ErrInvalidInput)
	assert.ErrorIs(t, l.Credit("111", -500), ErrInvalidInput)

	require.NoError(t, l.Credit("111", 10000))
	balance, _ := balances.Balance("111")
	assert.Equal(t, int64(10000), balance)
}

// Money only moves between a user balance and the price of a recorded
// transaction: across any mix of purchases and finalizations, balance plus
// the price of non-refunded transactions stays constant.
func TestBalanceConservation(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 50000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{})

	refs := []string{"ref-f1", "ref-f2", "ref-f3", "ref-f4"}
	for _, ref := range refs {
		_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, ref)
		require.NoError(t, err)
	}

	require.NoError(t, l.Finalize("ref-f1", models.StatusSuccess, "ok"))
	require.NoError(t, l.Finalize("ref-f2", models.StatusCancelled, "gagal"))
	require.NoError(t, l.Finalize("ref-f3", models.StatusFailed, "timeout"))
	// ref-f4 stays pending.

	var held int64
	for _, ref := range refs {
		trx, err := trxs.FindByRef(ref)
		require.NoError(t, err)
		if trx.Status == models.StatusPending || trx.Status == models.StatusSuccess {
			held += trx.Price
		}
	}
	assert.Equal(t, int64(50000), balances.total()+held)
}

func TestLookupAndHistory(t *testing.T) {
	balances := newMemBalances()
	balances.balances["111"] = 30000
	trxs := newMemTrxs()
	l := newTestLedger(balances, trxs, &fakeProvider{})

	_, err := l.ReserveAndCreate(context.Background(), "111", "bpal1", "081234567890", 9000, "ref-g1")
	require.NoError(t, err)
	_, err = l.ReserveAndCreate(context.Background(), "111", "XLA14", "081234567890", 14000, "ref-g2")
	require.NoError(t, err)

	trx, err := l.Lookup("ref-g1")
	require.NoError(t, err)
	assert.Equal(t, "bpal1", trx.ProductCode)

	_, err = l.Lookup("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	items, err := l.History("111", 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}
