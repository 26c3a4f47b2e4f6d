package store

import (
	"context"
	"fmt"
	"strings"

	"leadboard/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormMessageStore struct {
	DB *gorm.DB
}

func NewMessageStore(db *gorm.DB) *GormMessageStore {
	return &GormMessageStore{DB: db}
}

func (s *GormMessageStore) filtered(ctx context.Context, filter MessageFilter) *gorm.DB {
	query := s.DB.WithContext(ctx).Model(&models.Message{})
	if filter.LeadID != "" {
		query = query.Where("lead_id = ?", filter.LeadID)
	}
	if filter.Status != "" && filter.Status != "all" {
		query = query.Where("status = ?", filter.Status)
	}
	if strings.TrimSpace(filter.Search) != "" {
		query = query.Where("LOWER(content) LIKE ?", likePattern(filter.Search))
	}
	return query
}

// List returns one page of messages joined with their lead, newest first.
func (s *GormMessageStore) List(ctx context.Context, filter MessageFilter) ([]models.Message, int64, error) {
	page, size := Normalize(filter.Page, filter.PageSize, DefaultMessagePageSize)

	var total int64
	if err := s.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	messages := []models.Message{}
	err := s.filtered(ctx, filter).
		Preload("Lead").
		Order("generated_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&messages).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	return messages, total, nil
}

// ListForLeads returns every message of the given leads, newest first.
func (s *GormMessageStore) ListForLeads(ctx context.Context, leadIDs []string) ([]models.Message, error) {
	messages := []models.Message{}
	if len(leadIDs) == 0 {
		return messages, nil
	}
	err := s.DB.WithContext(ctx).
		Where("lead_id IN ?", leadIDs).
		Order("generated_at DESC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("list messages for leads: %w", err)
	}
	return messages, nil
}

func (s *GormMessageStore) Get(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := s.DB.WithContext(ctx).Preload("Lead").Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

// Create inserts the message and loads its lead. ErrNotFound means the lead is unknown.
func (s *GormMessageStore) Create(ctx context.Context, msg *models.Message) error {
	var lead models.Lead
	if err := s.DB.WithContext(ctx).Where("id = ?", msg.LeadID).First(&lead).Error; err != nil {
		return notFound(err)
	}

	msg.Lead = nil
	if err := s.DB.WithContext(ctx).Omit(clause.Associations).Create(msg).Error; err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	msg.Lead = &lead
	return nil
}

func (s *GormMessageStore) Update(ctx context.Context, id string, changes MessageChanges) (*models.Message, error) {
	var msg models.Message
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&msg).Error; err != nil {
			return notFound(err)
		}

		updates := map[string]interface{}{}
		if changes.Content != nil {
			updates["content"] = *changes.Content
		}
		if changes.Status != nil {
			updates["status"] = string(*changes.Status)
		}
		if len(updates) > 0 {
			if err := tx.Model(&msg).Omit(clause.Associations).Updates(updates).Error; err != nil {
				return fmt.Errorf("update message: %w", err)
			}
		}
		return tx.Preload("Lead").Where("id = ?", id).First(&msg).Error
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *GormMessageStore) Delete(ctx context.Context, id string) error {
	result := s.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Message{})
	if result.Error != nil {
		return fmt.Errorf("delete message: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormMessageStore) Stats(ctx context.Context) (*models.MessageStats, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := s.DB.WithContext(ctx).
		Model(&models.Message{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("message stats: %w", err)
	}

	stats := &models.MessageStats{}
	for _, row := range rows {
		stats.Total += row.Count
		switch models.MessageStatus(row.Status) {
		case models.MessageStatusDraft:
			stats.Draft = row.Count
		case models.MessageStatusApproved:
			stats.Approved = row.Count
		case models.MessageStatusSent:
			stats.Sent = row.Count
		}
	}
	return stats, nil
}
