package repository

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/mohammadpnp/site-import/internal/domain/siteimport"
	"github.com/mohammadpnp/site-import/internal/infrastructure/db/models"
	"gorm.io/gorm"
)

type SiteRepository struct {
	db *gorm.DB
}

func NewSiteRepository(db *gorm.DB) *SiteRepository {
	return &SiteRepository{db: db}
}

func (r *SiteRepository) GetSite(ctx context.Context, siteID int64) (domain.Site, error) {
	var row models.Site

	err := r.db.WithContext(ctx).
		Preload("Organization").
		First(&row, "id = ?", siteID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Site{}, domain.ErrSiteNotFound
		}
		return domain.Site{}, fmt.Errorf("get site by id: %w", err)
	}

	return domain.Site{
		ID: row.ID,
		Organization: domain.Organization{
			ID:   row.Organization.ID,
			Plan: row.Organization.Plan,
		},
	}, nil
}
