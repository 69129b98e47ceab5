// internal/model/contact.go
package model

// Contact is the recipient projection used for personalization. The
// persistence gateway owns the full contact; the dispatcher borrows this
// by value for the duration of one send.
type Contact struct {
	ID         int    `db:"id" json:"id"`
	Email      string `db:"email" json:"email"`
	Name       string `db:"name" json:"name"`
	Company    string `db:"company" json:"company"`
	Position   string `db:"position" json:"position"`
	Phone      string `db:"phone" json:"phone"`
	Industry   string `db:"industry" json:"industry"`
	PainPoints string `db:"pain_points" json:"pain_points"`
	Website    string `db:"website" json:"website"`
	Active     bool   `db:"active" json:"active"`
}
