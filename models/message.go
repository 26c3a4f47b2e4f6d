package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MessageStatus string

const (
	MessageStatusDraft    MessageStatus = "draft"
	MessageStatusApproved MessageStatus = "approved"
	MessageStatusSent     MessageStatus = "sent"
)

// MessageStatuses lists every status in board column order.
var MessageStatuses = []MessageStatus{MessageStatusDraft, MessageStatusApproved, MessageStatusSent}

func (s MessageStatus) Valid() bool {
	switch s {
	case MessageStatusDraft, MessageStatusApproved, MessageStatusSent:
		return true
	}
	return false
}

// Message is an outreach draft addressed to a single lead
type Message struct {
	ID          string        `gorm:"type:varchar(64);primaryKey" json:"id"`
	LeadID      string        `gorm:"type:varchar(64);not null;index" json:"lead_id"`
	Content     string        `gorm:"type:text;not null" json:"content"`
	Status      MessageStatus `gorm:"type:varchar(20);not null;default:draft;index" json:"status"`
	GeneratedAt time.Time     `gorm:"index" json:"generated_at"`
	UpdatedAt   time.Time     `json:"updated_at"`

	// Populated on reads; never written through the association.
	Lead *Lead `gorm:"foreignKey:LeadID;constraint:OnDelete:CASCADE" json:"lead,omitempty"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Status == "" {
		m.Status = MessageStatusDraft
	}
	if m.GeneratedAt.IsZero() {
		m.GeneratedAt = time.Now().UTC()
	}
	return nil
}

// MessageStats counts messages per status
type MessageStats struct {
	Total    int64 `json:"total"`
	Draft    int64 `json:"draft"`
	Approved int64 `json:"approved"`
	Sent     int64 `json:"sent"`
}
