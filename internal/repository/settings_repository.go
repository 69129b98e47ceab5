package repository

import (
	"database/sql"

	"github.com/outreachkit/outreach-backend/internal/model"
)

// SettingsRepositoryInterface exposes the sending configuration. How the
// credentials got into the store (encryption, settings UI) is someone
// else's problem; the dispatcher only reads them.
type SettingsRepositoryInterface interface {
	GetSenderConfig() (*model.SenderProfile, error)
}

type SettingsRepository struct {
	DB *sql.DB
}

// GetSenderConfig returns the current sender profile, or (nil, nil) when
// SMTP was never configured. Re-read per campaign: the user may rotate
// credentials between runs.
func (r *SettingsRepository) GetSenderConfig() (*model.SenderProfile, error) {
	query := `
        SELECT smtp_host, smtp_port, smtp_secure, smtp_user, smtp_password,
               from_email, from_name,
               profile_name, profile_company, profile_phone, profile_industry,
               profile_position, profile_website, profile_location
        FROM sender_settings
        ORDER BY id DESC
        LIMIT 1
    `
	var p model.SenderProfile
	err := r.DB.QueryRow(query).Scan(
		&p.SMTPHost, &p.SMTPPort, &p.SMTPSecure, &p.SMTPUser, &p.SMTPPassword,
		&p.FromEmail, &p.FromName,
		&p.Name, &p.Company, &p.Phone, &p.Industry,
		&p.Position, &p.Website, &p.Location,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if p.SMTPHost == "" {
		return nil, nil
	}
	return &p, nil
}

var _ SettingsRepositoryInterface = (*SettingsRepository)(nil)
