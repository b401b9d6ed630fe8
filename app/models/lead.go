package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Lead is a contact form submission from the public site.
type Lead struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	MobileNumber string    `gorm:"type:varchar(10);not null" json:"mobile_number" validate:"required,len=10,numeric"`
	Email        string    `gorm:"type:varchar(200);not null;index" json:"email" validate:"required,email,max=200"`
	Place        string    `gorm:"type:varchar(150);not null" json:"place" validate:"required,max=150"`
	IPAddress    string    `gorm:"type:varchar(45);default:''" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (l *Lead) Validate() error {
	v := validator.New()

	return v.Struct(l)
}

// Package is an entry of the public package catalogue.
type Package struct {
	Name     string   `json:"name"`
	Price    string   `json:"price"`
	Features []string `json:"features"`
}

// Packages returns the catalogue shown on the public packages page.
func Packages() []Package {
	return []Package{
		{Name: "Silver", Price: "Starter", Features: []string{"Social Media", "Graphics"}},
		{Name: "Gold", Price: "Popular", Features: []string{"Video Editing", "Ads"}},
		{Name: "Diamond", Price: "Premium", Features: []string{"Campaign Management", "War Room"}},
	}
}
