package store

import (
	"context"
	"errors"
	"strings"

	"leadboard/models"

	"gorm.io/gorm"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("record not found")

const (
	DefaultLeadPageSize    = 20
	DefaultMessagePageSize = 50
	MaxPageSize            = 100
)

type LeadFilter struct {
	Search   string
	Page     int
	PageSize int
}

type MessageFilter struct {
	LeadID   string
	Status   string
	Search   string
	Page     int
	PageSize int
}

// LeadChanges is a partial lead update. A non-nil empty LinkedInURL clears it.
type LeadChanges struct {
	Name        *string
	Role        *string
	Company     *string
	LinkedInURL *string
}

type MessageChanges struct {
	Content *string
	Status  *models.MessageStatus
}

type LeadStore interface {
	List(ctx context.Context, filter LeadFilter) ([]models.Lead, int64, error)
	Get(ctx context.Context, id string) (*models.Lead, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Lead, error)
	Create(ctx context.Context, lead *models.Lead) error
	Update(ctx context.Context, id string, changes LeadChanges) (*models.Lead, error)
	Delete(ctx context.Context, id string) error
}

type MessageStore interface {
	List(ctx context.Context, filter MessageFilter) ([]models.Message, int64, error)
	ListForLeads(ctx context.Context, leadIDs []string) ([]models.Message, error)
	Get(ctx context.Context, id string) (*models.Message, error)
	Create(ctx context.Context, msg *models.Message) error
	Update(ctx context.Context, id string, changes MessageChanges) (*models.Message, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.MessageStats, error)
}

// Normalize fills in defaults and clamps page bounds.
func Normalize(page, pageSize, defaultSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func likePattern(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
