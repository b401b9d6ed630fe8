package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digiworld/backoffice/app/models"
)

type leadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &leadRepository{db: db}
}

func (r *leadRepository) Create(ctx context.Context, lead *models.Lead) error {
	return r.db.WithContext(ctx).Create(lead).Error
}

// List returns leads, newest first
func (r *leadRepository) List(ctx context.Context, offset, limit int) ([]models.Lead, error) {
	var leads []models.Lead
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").
		Offset(offset).Limit(limit).Find(&leads).Error
	return leads, err
}

func (r *leadRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Lead{}).Count(&count).Error
	return count, err
}
