package model

import "time"

// User owns tasks. Email is unique.
type User struct {
	ID        int64     `json:"id" db:"id" gorm:"primaryKey"`
	Name      string    `json:"name" db:"name" gorm:"not null"`
	Email     string    `json:"email" db:"email" gorm:"not null;uniqueIndex"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserInput is the form or JSON payload for creating a user.
type UserInput struct {
	Name  string `json:"name" form:"name"`
	Email string `json:"email" form:"email"`
}
