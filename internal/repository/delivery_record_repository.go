package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/outreachkit/outreach-backend/internal/model"
)

type DeliveryRecordRepositoryInterface interface {
	Create(r *model.DeliveryRecord) error
	UpdateStatus(id int, status model.DeliveryStatus) error
	MarkSent(id int, at time.Time) error
	MarkDeliveredIfSent(id int, at time.Time) error
	FailPendingByRecipient(recipientEmail string, status model.DeliveryStatus, errMsg string) (int, error)
	FindByTrackingID(trackingID string) (*model.DeliveryRecord, error)
	ApplyOpen(trackingID string, at time.Time) error
	ApplyClick(trackingID string, at time.Time) error
	CountByStatus() (map[string]int, error)
}

type DeliveryRecordRepository struct {
	DB *sql.DB
}

const deliveryColumns = `id, public_id, recipient_email, recipient_name, subject, html_body, text_body,
        from_email, from_name, smtp_host, smtp_port, status, tracking_id,
        opened, clicked, bounced, sent_at, delivered_at, opened_at, clicked_at,
        error_message, created_at, updated_at`

// Create inserts a new delivery record and fills in its ID. Assigns the
// public id here so callers never insert without one.
func (r *DeliveryRecordRepository) Create(rec *model.DeliveryRecord) error {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.PublicID == "" {
		rec.PublicID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = model.StatusPending
	}

	query := `
        INSERT INTO delivery_records
        (public_id, recipient_email, recipient_name, subject, html_body, text_body,
         from_email, from_name, smtp_host, smtp_port, status, tracking_id,
         error_message, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id
    `
	return r.DB.QueryRow(query,
		rec.PublicID, rec.RecipientEmail, rec.RecipientName, rec.Subject,
		rec.HTMLBody, rec.TextBody, rec.FromEmail, rec.FromName,
		rec.SMTPHost, rec.SMTPPort, rec.Status, rec.TrackingID,
		rec.ErrorMessage, rec.CreatedAt, rec.UpdatedAt,
	).Scan(&rec.ID)
}

func (r *DeliveryRecordRepository) UpdateStatus(id int, status model.DeliveryStatus) error {
	query := `UPDATE delivery_records SET status=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.DB.Exec(query, status, id)
	return err
}

func (r *DeliveryRecordRepository) MarkSent(id int, at time.Time) error {
	query := `
        UPDATE delivery_records
        SET status='sent', sent_at=COALESCE(sent_at, $1), updated_at=NOW()
        WHERE id=$2
    `
	_, err := r.DB.Exec(query, at, id)
	return err
}

// MarkDeliveredIfSent applies the simulated delivery confirmation. The
// status guard keeps a record that was opened in the meantime where it is.
func (r *DeliveryRecordRepository) MarkDeliveredIfSent(id int, at time.Time) error {
	query := `
        UPDATE delivery_records
        SET status='delivered', delivered_at=COALESCE(delivered_at, $1), updated_at=NOW()
        WHERE id=$2 AND status='sent'
    `
	_, err := r.DB.Exec(query, at, id)
	return err
}

// FailPendingByRecipient moves every pending/sending record for a
// recipient into the given failure state. Deliberately keyed by recipient
// rather than record id: it also catches a record whose id was lost to an
// error between create and send.
func (r *DeliveryRecordRepository) FailPendingByRecipient(recipientEmail string, status model.DeliveryStatus, errMsg string) (int, error) {
	query := `
        UPDATE delivery_records
        SET status=$2, error_message=$3, bounced=($2='bounced'), updated_at=NOW()
        WHERE recipient_email=$1 AND status IN ('pending','sending')
    `
	res, err := r.DB.Exec(query, recipientEmail, status, errMsg)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *DeliveryRecordRepository) FindByTrackingID(trackingID string) (*model.DeliveryRecord, error) {
	query := `SELECT ` + deliveryColumns + ` FROM delivery_records WHERE tracking_id=$1`
	var rec model.DeliveryRecord
	err := r.DB.QueryRow(query, trackingID).Scan(
		&rec.ID, &rec.PublicID, &rec.RecipientEmail, &rec.RecipientName,
		&rec.Subject, &rec.HTMLBody, &rec.TextBody,
		&rec.FromEmail, &rec.FromName, &rec.SMTPHost, &rec.SMTPPort,
		&rec.Status, &rec.TrackingID,
		&rec.Opened, &rec.Clicked, &rec.Bounced,
		&rec.SentAt, &rec.DeliveredAt, &rec.OpenedAt, &rec.ClickedAt,
		&rec.ErrorMessage, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// ApplyOpen persists an open event. The status guard and COALESCE give
// first-write-wins semantics under concurrent duplicate beacon hits,
// without any in-process locking.
func (r *DeliveryRecordRepository) ApplyOpen(trackingID string, at time.Time) error {
	query := `
        UPDATE delivery_records
        SET status='opened', opened=TRUE, opened_at=COALESCE(opened_at, $1), updated_at=NOW()
        WHERE tracking_id=$2 AND status IN ('sent','delivered')
    `
	_, err := r.DB.Exec(query, at, trackingID)
	return err
}

// ApplyClick persists a click event, implying the open when it never
// arrived. Same first-write-wins discipline as ApplyOpen.
func (r *DeliveryRecordRepository) ApplyClick(trackingID string, at time.Time) error {
	query := `
        UPDATE delivery_records
        SET status='clicked', clicked=TRUE, clicked_at=COALESCE(clicked_at, $1),
            opened=TRUE, opened_at=COALESCE(opened_at, $1), updated_at=NOW()
        WHERE tracking_id=$2 AND status IN ('sent','delivered','opened')
    `
	_, err := r.DB.Exec(query, at, trackingID)
	return err
}

func (r *DeliveryRecordRepository) CountByStatus() (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM delivery_records GROUP BY status`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := map[string]int{
		"pending": 0, "sending": 0, "sent": 0, "delivered": 0,
		"opened": 0, "clicked": 0, "bounced": 0, "failed": 0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

var _ DeliveryRecordRepositoryInterface = (*DeliveryRecordRepository)(nil)
