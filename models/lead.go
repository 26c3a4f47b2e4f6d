package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TempIDPrefix marks ids a client assigns before the server has confirmed a record.
const TempIDPrefix = "temp_"

// Lead represents a prospect contact
type Lead struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	Role        string    `gorm:"size:255;not null" json:"role"`
	Company     string    `gorm:"size:255;not null;index" json:"company"`
	LinkedInURL *string   `gorm:"column:linkedin_url;size:512" json:"linkedin_url"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// IsTemporary reports whether the lead still carries a client-side placeholder id.
func (l Lead) IsTemporary() bool {
	return strings.HasPrefix(l.ID, TempIDPrefix)
}

// LinkedIn returns the profile URL or an empty string.
func (l Lead) LinkedIn() string {
	if l.LinkedInURL == nil {
		return ""
	}
	return *l.LinkedInURL
}
