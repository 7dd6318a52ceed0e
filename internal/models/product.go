package models

// Product maps to the `product` table. The default catalog is seeded at
// bootstrap; admins can override price and description from the bot.
type Product struct {
	ID          uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code        string `gorm:"column:code;size:100;uniqueIndex" json:"code"`
	Name        string `gorm:"column:name;size:300" json:"name"`
	Price       int64  `gorm:"column:price" json:"price"`
	Quota       int    `gorm:"column:quota;default:0" json:"quota"`
	Description string `gorm:"column:description;type:text" json:"description"`
}

func (Product) TableName() string {
	return "product"
}
