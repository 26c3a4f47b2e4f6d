package store

import (
	"context"
	"fmt"
	"strings"

	"leadboard/models"

	"gorm.io/gorm"
)

type GormLeadStore struct {
	DB *gorm.DB
}

func NewLeadStore(db *gorm.DB) *GormLeadStore {
	return &GormLeadStore{DB: db}
}

func (s *GormLeadStore) filtered(ctx context.Context, filter LeadFilter) *gorm.DB {
	query := s.DB.WithContext(ctx).Model(&models.Lead{})
	if strings.TrimSpace(filter.Search) != "" {
		p := likePattern(filter.Search)
		query = query.Where("(LOWER(name) LIKE ? OR LOWER(company) LIKE ? OR LOWER(role) LIKE ?)", p, p, p)
	}
	return query
}

// List returns one page of leads, newest first, plus the unpaged total.
func (s *GormLeadStore) List(ctx context.Context, filter LeadFilter) ([]models.Lead, int64, error) {
	page, size := Normalize(filter.Page, filter.PageSize, DefaultLeadPageSize)

	var total int64
	if err := s.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count leads: %w", err)
	}

	leads := []models.Lead{}
	err := s.filtered(ctx, filter).
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&leads).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list leads: %w", err)
	}
	return leads, total, nil
}

func (s *GormLeadStore) Get(ctx context.Context, id string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&lead).Error; err != nil {
		return nil, notFound(err)
	}
	return &lead, nil
}

// ListByIDs returns the leads in the order of ids, skipping unknown ids.
func (s *GormLeadStore) ListByIDs(ctx context.Context, ids []string) ([]models.Lead, error) {
	if len(ids) == 0 {
		return []models.Lead{}, nil
	}
	var found []models.Lead
	if err := s.DB.WithContext(ctx).Where("id IN ?", ids).Find(&found).Error; err != nil {
		return nil, fmt.Errorf("list leads by id: %w", err)
	}

	byID := make(map[string]models.Lead, len(found))
	for _, l := range found {
		byID[l.ID] = l
	}
	ordered := make([]models.Lead, 0, len(found))
	for _, id := range ids {
		if l, ok := byID[id]; ok {
			ordered = append(ordered, l)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func (s *GormLeadStore) Create(ctx context.Context, lead *models.Lead) error {
	if err := s.DB.WithContext(ctx).Create(lead).Error; err != nil {
		return fmt.Errorf("create lead: %w", err)
	}
	return nil
}

func (s *GormLeadStore) Update(ctx context.Context, id string, changes LeadChanges) (*models.Lead, error) {
	var lead models.Lead
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&lead).Error; err != nil {
			return notFound(err)
		}

		updates := map[string]interface{}{}
		if changes.Name != nil {
			updates["name"] = *changes.Name
		}
		if changes.Role != nil {
			updates["role"] = *changes.Role
		}
		if changes.Company != nil {
			updates["company"] = *changes.Company
		}
		if changes.LinkedInURL != nil {
			if *changes.LinkedInURL == "" {
				updates["linkedin_url"] = nil
			} else {
				updates["linkedin_url"] = *changes.LinkedInURL
			}
		}
		if len(updates) == 0 {
			return nil
		}

		if err := tx.Model(&lead).Updates(updates).Error; err != nil {
			return fmt.Errorf("update lead: %w", err)
		}
		return tx.Where("id = ?", id).First(&lead).Error
	})
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// Delete removes the lead's messages and then the lead in one transaction.
func (s *GormLeadStore) Delete(ctx context.Context, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		if err := tx.Select("id").Where("id = ?", id).First(&lead).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Where("lead_id = ?", id).Delete(&models.Message{}).Error; err != nil {
			return fmt.Errorf("delete lead messages: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Lead{}).Error; err != nil {
			return fmt.Errorf("delete lead: %w", err)
		}
		return nil
	})
}
