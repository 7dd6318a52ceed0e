package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"pulsabot/internal/models"
)

// MigrateAndSeed ensures required tables exist and inserts the default
// product catalog when the table is empty.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	if err := seedDefaults(db); err != nil {
		return fmt.Errorf("seed defaults failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Product{},
		&models.Transaction{},
		&models.TopUp{},
	}
}

// defaultProducts is the baseline catalog; prices and descriptions are
// editable from the admin menu afterwards.
func defaultProducts() []models.Product {
	return []models.Product{
		{Code: "bpal1", Name: "Bonus Akrab L - 1 hari", Quota: 999, Price: 9000, Description: "Default"},
		{Code: "bpal11", Name: "Bonus Akrab L - 11 hari", Quota: 999, Price: 11000, Description: "Default"},
		{Code: "bpal13", Name: "Bonus Akrab L - 13 hari", Quota: 999, Price: 13000, Description: "Default"},
		{Code: "XLA14", Name: "SuperMini", Quota: 999, Price: 14000, Description: "Default"},
	}
}

func seedDefaults(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Product{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		for _, p := range defaultProducts() {
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
