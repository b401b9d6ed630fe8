package models

import (
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	SETTING_COMPANY_NAME       = "company_name"
	SETTING_COMPANY_ADDRESS    = "company_address"
	SETTING_RECEIPT_FOOTER     = "receipt_footer"
	SETTING_LEAD_NOTIFICATIONS = "lead_notifications"
)

// Setting is one key/value row of the settings table
type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"column:setting_key;size:191;not null;uniqueIndex" json:"key" validate:"required,min=1,max=191"`
	Value     string    `gorm:"type:text" json:"value"`
	Type      string    `gorm:"size:50;not null" json:"type" validate:"required"` // string, boolean
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BusinessSettings are the admin-editable values printed on receipts and used by the lead form.
type BusinessSettings struct {
	CompanyName       string `json:"company_name" validate:"required,min=1,max=150"`
	CompanyAddress    string `json:"company_address" validate:"max=255"`
	ReceiptFooter     string `json:"receipt_footer" validate:"max=500"`
	LeadNotifications bool   `json:"lead_notifications"`
}

func DefaultBusinessSettings() BusinessSettings {
	return BusinessSettings{
		CompanyName:       "DigiWorld",
		ReceiptFooter:     "Thank you for your business.",
		LeadNotifications: true,
	}
}

func (s *BusinessSettings) Validate() error {
	validate := validator.New()
	return validate.Struct(s)
}

// LoadBusinessSettings overlays stored rows on the defaults.
func LoadBusinessSettings(db *gorm.DB) (BusinessSettings, error) {
	s := DefaultBusinessSettings()

	var rows []Setting
	if err := db.Find(&rows).Error; err != nil {
		return s, fmt.Errorf("failed to load settings: %w", err)
	}

	for _, row := range rows {
		switch row.Key {
		case SETTING_COMPANY_NAME:
			s.CompanyName = row.Value
		case SETTING_COMPANY_ADDRESS:
			s.CompanyAddress = row.Value
		case SETTING_RECEIPT_FOOTER:
			s.ReceiptFooter = row.Value
		case SETTING_LEAD_NOTIFICATIONS:
			s.LeadNotifications = row.Value == "true"
		}
	}

	return s, nil
}

// SaveBusinessSettings upserts every key in one transaction.
func SaveBusinessSettings(db *gorm.DB, s BusinessSettings) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	rows := []Setting{
		{Key: SETTING_COMPANY_NAME, Value: s.CompanyName, Type: "string"},
		{Key: SETTING_COMPANY_ADDRESS, Value: s.CompanyAddress, Type: "string"},
		{Key: SETTING_RECEIPT_FOOTER, Value: s.ReceiptFooter, Type: "string"},
		{Key: SETTING_LEAD_NOTIFICATIONS, Value: strconv.FormatBool(s.LeadNotifications), Type: "boolean"},
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for i := range rows {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "setting_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&rows[i]).Error
			if err != nil {
				return fmt.Errorf("failed to save setting %s: %w", rows[i].Key, err)
			}
		}
		return nil
	})
}
