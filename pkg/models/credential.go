package models

import "time"

// Credential admits whoever presents the matching secret under Name.
// The secret itself is never stored.
type Credential struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	Name       string    `json:"name" gorm:"type:varchar(64);uniqueIndex"`
	SecretHash string    `json:"-" gorm:"type:varchar(72)"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (Credential) TableName() string {
	return "credentials"
}
