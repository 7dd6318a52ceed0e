package models

// Top-up statuses. QRIS payments are confirmed manually by the admin, so a
// top-up stays waiting until confirmed or rejected.
const (
	TopUpWaiting   = "waiting"
	TopUpConfirmed = "confirmed"
	TopUpRejected  = "rejected"
)

// TopUp maps to the `topup` table: one row per QRIS top-up request.
type TopUp struct {
	ID        uint   `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	UserID    string `gorm:"column:user_id;size:100;index" json:"user_id"`
	Amount    int64  `gorm:"column:amount" json:"amount"`
	Status    string `gorm:"column:status;size:50" json:"status"`
	CreatedAt string `gorm:"column:created_at;size:100" json:"created_at"`
	UpdatedAt string `gorm:"column:updated_at;size:100" json:"updated_at"`
}

func (TopUp) TableName() string {
	return "topup"
}
