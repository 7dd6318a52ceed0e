package repository

import (
	"gorm.io/gorm"

	"pulsabot/internal/models"
)

// TopUpRepository handles QRIS top-up database operations.
type TopUpRepository struct {
	db *gorm.DB
}

func NewTopUpRepository(db *gorm.DB) *TopUpRepository {
	return &TopUpRepository{db: db}
}

// Create inserts a new top-up request.
func (r *TopUpRepository) Create(t *models.TopUp) error {
	return r.db.Create(t).Error
}

// FindByID returns a top-up by its row id.
func (r *TopUpRepository) FindByID(id uint) (*models.TopUp, error) {
	var t models.TopUp
	if err := r.db.Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// FindWaiting returns unconfirmed top-ups, oldest first.
func (r *TopUpRepository) FindWaiting(limit int) ([]models.TopUp, error) {
	if limit <= 0 {
		limit = 20
	}
	var tops []models.TopUp
	err := r.db.Where("status = ?", models.TopUpWaiting).
		Order("created_at ASC").Limit(limit).Find(&tops).Error
	return tops, err
}

// MarkStatus moves a waiting top-up to confirmed or rejected. Compare-and-set
// on the waiting status so a top-up cannot be confirmed twice.
func (r *TopUpRepository) MarkStatus(id uint, status, updatedAt string) (bool, error) {
	res := r.db.Model(&models.TopUp{}).
		Where("id = ? AND status = ?", id, models.TopUpWaiting).
		Updates(map[string]interface{}{"status": status, "updated_at": updatedAt})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
