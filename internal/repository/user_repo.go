package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pulsabot/internal/models"
)

// UserRepository handles all user database operations.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID finds a user by Telegram chat ID.
func (r *UserRepository) FindByID(chatID string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("id = ?", chatID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// Exists checks whether user with given ID exists.
func (r *UserRepository) Exists(chatID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("id = ?", chatID).Count(&count).Error
	return count > 0, err
}

// UpdateStep updates the user's step and step payload (bot conversation state).
func (r *UserRepository) UpdateStep(chatID, step, stepData string) error {
	return r.db.Model(&models.User{}).Where("id = ?", chatID).
		Updates(map[string]interface{}{"step": step, "step_data": stepData}).Error
}

// Balance returns the current balance for a user.
func (r *UserRepository) Balance(chatID string) (int64, error) {
	var user models.User
	if err := r.db.Select("balance").Where("id = ?", chatID).First(&user).Error; err != nil {
		return 0, err
	}
	return user.Balance, nil
}

// Credit adds amount to the user's balance.
func (r *UserRepository) Credit(chatID string, amount int64) error {
	return r.db.Model(&models.User{}).Where("id = ?", chatID).
		Update("balance", gorm.Expr("balance + ?", amount)).Error
}

// Debit subtracts amount from the user's balance. The balance guard in the
// WHERE clause keeps the column non-negative even if callers race.
func (r *UserRepository) Debit(chatID string, amount int64) error {
	res := r.db.Model(&models.User{}).
		Where("id = ? AND balance >= ?", chatID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("debit of %d refused for user %s", amount, chatID)
	}
	return nil
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
