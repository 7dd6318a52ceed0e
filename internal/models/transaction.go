package models

// Transaction statuses. A transaction is created as pending and moves to
// exactly one terminal status; terminal rows are never mutated again.
const (
	StatusPending   = "pending"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// IsTerminal reports whether a status permits no further transition.
func IsTerminal(status string) bool {
	switch status {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Transaction maps to the `transaction` table: one row per purchase attempt,
// keyed by the caller-generated reference id that the provider echoes back
// in its webhook.
type Transaction struct {
	RefID       string `gorm:"column:ref_id;primaryKey;size:100" json:"ref_id"`
	TrxID       string `gorm:"column:trx_id;size:100" json:"trx_id"`
	UserID      string `gorm:"column:user_id;size:100;index" json:"user_id"`
	ProductCode string `gorm:"column:product_code;size:100" json:"product_code"`
	Destination string `gorm:"column:destination;size:100" json:"destination"`
	Price       int64  `gorm:"column:price" json:"price"`
	Status      string `gorm:"column:status;size:50;index" json:"status"`
	Detail      string `gorm:"column:detail;type:text" json:"detail"`
	CreatedAt   string `gorm:"column:created_at;size:100" json:"created_at"`
	UpdatedAt   string `gorm:"column:updated_at;size:100" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transaction"
}
