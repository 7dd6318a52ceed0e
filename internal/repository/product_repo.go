package repository

import (
	"gorm.io/gorm"

	"pulsabot/internal/models"
)

// ProductRepository handles product catalog database operations.
type ProductRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// FindAll returns the catalog ordered by code.
func (r *ProductRepository) FindAll() ([]models.Product, error) {
	var products []models.Product
	err := r.db.Order("code ASC").Find(&products).Error
	return products, err
}

// FindByCode returns a product by its code.
func (r *ProductRepository) FindByCode(code string) (*models.Product, error) {
	var product models.Product
	if err := r.db.Where("code = ?", code).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdatePrice sets the admin price override for a product.
func (r *ProductRepository) UpdatePrice(code string, price int64) error {
	return r.db.Model(&models.Product{}).Where("code = ?", code).
		Update("price", price).Error
}

// UpdateDescription sets the admin description override for a product.
func (r *ProductRepository) UpdateDescription(code, description string) error {
	return r.db.Model(&models.Product{}).Where("code = ?", code).
		Update("description", description).Error
}
