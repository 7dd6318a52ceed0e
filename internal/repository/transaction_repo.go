package repository

import (
	"errors"

	"gorm.io/gorm"

	"pulsabot/internal/models"
)

// TransactionRepository handles transaction history database operations.
type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create inserts a new transaction row.
func (r *TransactionRepository) Create(trx *models.Transaction) error {
	return r.db.Create(trx).Error
}

// FindByRef returns a transaction by its reference id.
func (r *TransactionRepository) FindByRef(refID string) (*models.Transaction, error) {
	var trx models.Transaction
	if err := r.db.Where("ref_id = ?", refID).First(&trx).Error; err != nil {
		return nil, err
	}
	return &trx, nil
}

// FindByUser returns the newest transactions for a user, newest first.
func (r *TransactionRepository) FindByUser(userID string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	var trxs []models.Transaction
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&trxs).Error
	return trxs, err
}

// FindAll returns the newest transactions across all users, newest first.
func (r *TransactionRepository) FindAll(limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 30
	}
	var trxs []models.Transaction
	err := r.db.Order("created_at DESC").Limit(limit).Find(&trxs).Error
	return trxs, err
}

// IsNotFound reports whether err means the row does not exist.
func (r *TransactionRepository) IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// MarkTerminal moves a transaction from pending to the given terminal status.
// The WHERE clause makes this a compare-and-set: it reports whether this call
// won the transition, so racing webhook deliveries settle on exactly one.
func (r *TransactionRepository) MarkTerminal(refID, status, detail, updatedAt string) (bool, error) {
	res := r.db.Model(&models.Transaction{}).
		Where("ref_id = ? AND status = ?", refID, models.StatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"detail":     detail,
			"updated_at": updatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindStalePending returns pending transactions created before the cutoff,
// for the reconciliation cron to re-check against provider history.
func (r *TransactionRepository) FindStalePending(cutoff string, limit int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	var trxs []models.Transaction
	err := r.db.Where("status = ? AND created_at < ?", models.StatusPending, cutoff).
		Order("created_at ASC").Limit(limit).Find(&trxs).Error
	return trxs, err
}
