package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/digiworld/backoffice/app/models"
)

// settingRepository implements the SettingRepository interface
type settingRepository struct {
	db *gorm.DB
}

// NewSettingRepository creates a new setting repository instance
func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

// Get returns the stored settings merged over the defaults
func (r *settingRepository) Get(ctx context.Context) (models.BusinessSettings, error) {
	return models.LoadBusinessSettings(r.db.WithContext(ctx))
}

// Save validates and upserts the settings
func (r *settingRepository) Save(ctx context.Context, settings models.BusinessSettings) error {
	return models.SaveBusinessSettings(r.db.WithContext(ctx), settings)
}
