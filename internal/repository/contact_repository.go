package repository

import (
	"database/sql"

	"github.com/outreachkit/outreach-backend/internal/model"
)

// ContactRepositoryInterface defines the recipient lookups the dispatcher
// needs. Only active contacts are ever returned.
type ContactRepositoryInterface interface {
	GetByID(id int) (*model.Contact, error)
	ListActiveByListID(listID int) ([]model.Contact, error)
}

type ContactRepository struct {
	DB *sql.DB
}

const contactColumns = `id, email, name, company, position, phone, industry, pain_points, website, active`

// GetByID fetches a contact by ID. Returns (nil, nil) when not found.
func (r *ContactRepository) GetByID(id int) (*model.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE id = $1`
	row := r.DB.QueryRow(query, id)

	var c model.Contact
	if err := row.Scan(&c.ID, &c.Email, &c.Name, &c.Company, &c.Position,
		&c.Phone, &c.Industry, &c.PainPoints, &c.Website, &c.Active); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListActiveByListID fetches the active members of a mailing list. An
// empty slice is a valid outcome, not an error.
func (r *ContactRepository) ListActiveByListID(listID int) ([]model.Contact, error) {
	query := `
        SELECT c.id, c.email, c.name, c.company, c.position, c.phone,
               c.industry, c.pain_points, c.website, c.active
        FROM contacts c
        JOIN contact_list_members m ON m.contact_id = c.id
        WHERE m.list_id = $1 AND c.active = TRUE
        ORDER BY c.id
    `
	rows, err := r.DB.Query(query, listID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		if err := rows.Scan(&c.ID, &c.Email, &c.Name, &c.Company, &c.Position,
			&c.Phone, &c.Industry, &c.PainPoints, &c.Website, &c.Active); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
