package models

import "gorm.io/gorm"

// Worker is an account that can track and check in. Role is "worker" or "admin".
type Worker struct {
	gorm.Model
	Name     string `json:"name"`
	Email    string `json:"email" gorm:"unique"`
	Password string `json:"-"`
	Phone    string `json:"phone"`
	Role     string `json:"role"`
}
