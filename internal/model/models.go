package model

import (
	"time"

	"gorm.io/datatypes"
)

type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id,string"`
	Name         string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Nickname     string    `json:"nickname"`
	IdentityHash string    `gorm:"size:64" json:"identityHash"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Status       string    `gorm:"default:normal;not null" json:"status"` // normal/banned
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// DisplayName is the nickname when set, otherwise the login name.
func (u User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.Name
}

// UserCard counts how many copies of a catalog card a user owns.
type UserCard struct {
	UserID    int64  `gorm:"primaryKey;autoIncrement:false"`
	Kind      string `gorm:"primaryKey;size:64"`
	Edition   int    `gorm:"primaryKey;autoIncrement:false"`
	Count     int    `gorm:"column:quantity;not null;default:0"`
	UpdatedAt time.Time
}

type Match struct {
	ID         string `gorm:"primaryKey;size:36"`
	Status     string `gorm:"index;size:32;not null"`
	CreatorID  int64  `gorm:"index"`
	OpponentID *int64 `gorm:"index"`
	RulesKey   string `gorm:"size:128"`
	TradeRule  string `gorm:"size:16"`
	StateJSON  datatypes.JSON
	CreatedAt  time.Time
	UpdatedAt  time.Time
	EndedAt    *time.Time
}
