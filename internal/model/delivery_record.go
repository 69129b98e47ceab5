// internal/model/delivery_record.go
package model

import "time"

// DeliveryStatus is the lifecycle state of one outbound email.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusOpened    DeliveryStatus = "opened"
	StatusClicked   DeliveryStatus = "clicked"
	StatusBounced   DeliveryStatus = "bounced"
	StatusFailed    DeliveryStatus = "failed"
)

var statusRank = map[DeliveryStatus]int{
	StatusPending:   1,
	StatusSending:   2,
	StatusSent:      3,
	StatusDelivered: 4,
	StatusOpened:    5,
	StatusClicked:   6,
	StatusBounced:   7,
	StatusFailed:    8,
}

// Rank returns the position of the status in the lifecycle ordering.
// Status only ever moves to a higher rank, never back.
func (s DeliveryStatus) Rank() int {
	return statusRank[s]
}

// Terminal reports whether the status is a send-failure end state.
func (s DeliveryStatus) Terminal() bool {
	return s == StatusBounced || s == StatusFailed
}

// DeliveryRecord is one send attempt to one recipient. Created by the
// dispatcher right before the send, updated out-of-band by the tracking
// endpoints when beacon/redirect hits arrive.
type DeliveryRecord struct {
	ID             int            `db:"id" json:"id"`
	PublicID       string         `db:"public_id" json:"public_id"`
	RecipientEmail string         `db:"recipient_email" json:"recipient_email"`
	RecipientName  string         `db:"recipient_name" json:"recipient_name"`
	Subject        string         `db:"subject" json:"subject"`
	HTMLBody       string         `db:"html_body" json:"html_body,omitempty"`
	TextBody       string         `db:"text_body" json:"text_body,omitempty"`
	FromEmail      string         `db:"from_email" json:"from_email"`
	FromName       string         `db:"from_name" json:"from_name"`
	SMTPHost       string         `db:"smtp_host" json:"smtp_host"`
	SMTPPort       int            `db:"smtp_port" json:"smtp_port"`
	Status         DeliveryStatus `db:"status" json:"status"`
	TrackingID     string         `db:"tracking_id" json:"tracking_id"`
	Opened         bool           `db:"opened" json:"opened"`
	Clicked        bool           `db:"clicked" json:"clicked"`
	Bounced        bool           `db:"bounced" json:"bounced"`
	SentAt         *time.Time     `db:"sent_at" json:"sent_at,omitempty"`
	DeliveredAt    *time.Time     `db:"delivered_at" json:"delivered_at,omitempty"`
	OpenedAt       *time.Time     `db:"opened_at" json:"opened_at,omitempty"`
	ClickedAt      *time.Time     `db:"clicked_at" json:"clicked_at,omitempty"`
	ErrorMessage   string         `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}
