// internal/model/sender_profile.go
package model

// SenderProfile is the sending configuration plus the sender-side
// placeholder values. It may be rotated by the user between campaigns,
// so the dispatcher must not cache it across invocations.
type SenderProfile struct {
	SMTPHost     string `db:"smtp_host" json:"smtp_host"`
	SMTPPort     int    `db:"smtp_port" json:"smtp_port"`
	SMTPSecure   bool   `db:"smtp_secure" json:"smtp_secure"`
	SMTPUser     string `db:"smtp_user" json:"-"`
	SMTPPassword string `db:"smtp_password" json:"-"`

	FromEmail string `db:"from_email" json:"from_email"`
	FromName  string `db:"from_name" json:"from_name"`

	Name     string `db:"profile_name" json:"profile_name"`
	Company  string `db:"profile_company" json:"profile_company"`
	Phone    string `db:"profile_phone" json:"profile_phone"`
	Industry string `db:"profile_industry" json:"profile_industry"`
	Position string `db:"profile_position" json:"profile_position"`
	Website  string `db:"profile_website" json:"profile_website"`
	Location string `db:"profile_location" json:"profile_location"`
}
