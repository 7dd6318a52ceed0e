package models

// User maps to the `user` table.
// Primary key is the Telegram chat ID stored as string.
type User struct {
	ID       string `gorm:"column:id;primaryKey;size:100" json:"id"`
	Username string `gorm:"column:username;size:300" json:"username"`
	FullName string `gorm:"column:full_name;size:300" json:"full_name"`
	Balance  int64  `gorm:"column:balance;default:0" json:"balance"`
	Step     string `gorm:"column:step;size:100" json:"step"`
	// StepData carries the in-flight conversation payload (selected product,
	// destination, top-up nominal) as JSON. Cleared when the step resets.
	StepData string `gorm:"column:step_data;type:text" json:"step_data"`
	Register string `gorm:"column:register;size:100" json:"register"`
}

func (User) TableName() string {
	return "user"
}
