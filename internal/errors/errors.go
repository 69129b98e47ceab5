// internal/errors/errors.go
package appErrors

import "fmt"

// ErrNoSenderConfig means SMTP has never been configured; the campaign
// aborts before any record is created.
type ErrNoSenderConfig struct{}

func (e *ErrNoSenderConfig) Error() string {
	return "smtp sender is not configured"
}

func NewNoSenderConfig() error {
	return &ErrNoSenderConfig{}
}

// ErrNoRecipients means the contact/list lookup resolved to nothing
// sendable. Distinct from "not found": an empty but existing list also
// produces this.
type ErrNoRecipients struct {
	ContactID int
	ListID    int
}

func (e *ErrNoRecipients) Error() string {
	if e.ListID > 0 {
		return fmt.Sprintf("list %d resolved to no active recipients", e.ListID)
	}
	return fmt.Sprintf("contact %d resolved to no active recipients", e.ContactID)
}

func NewNoRecipients(contactID, listID int) error {
	return &ErrNoRecipients{ContactID: contactID, ListID: listID}
}

// ErrSMTPConnect wraps a pre-flight connection failure.
type ErrSMTPConnect struct {
	Host string
	Port int
	Err  error
}

func (e *ErrSMTPConnect) Error() string {
	return fmt.Sprintf("cannot reach smtp server %s:%d: %v", e.Host, e.Port, e.Err)
}

func (e *ErrSMTPConnect) Unwrap() error { return e.Err }

func NewSMTPConnect(host string, port int, err error) error {
	return &ErrSMTPConnect{Host: host, Port: port, Err: err}
}
