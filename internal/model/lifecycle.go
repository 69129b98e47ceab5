// internal/model/lifecycle.go
package model

import "time"

// Lifecycle transitions for a DeliveryRecord. The send path
// (pending -> sending -> sent / bounced / failed) is driven synchronously
// by the dispatcher; open and click events arrive later from the tracking
// endpoints. Status never moves backward, and the failure terminals are
// never overwritten by later events.

// BeginSending moves a pending record into sending. Returns false if the
// record is not in pending.
func BeginSending(r *DeliveryRecord) bool {
	if r.Status != StatusPending {
		return false
	}
	r.Status = StatusSending
	return true
}

// MarkSent records a successful send. Legal from pending or sending.
func MarkSent(r *DeliveryRecord, at time.Time) bool {
	if r.Status.Rank() >= StatusSent.Rank() {
		return false
	}
	r.Status = StatusSent
	if r.SentAt == nil {
		t := at
		r.SentAt = &t
	}
	return true
}

// MarkSendFailure moves a record into bounced or failed. Legal from any
// non-terminal state at or before sent; opens/clicks already applied are
// never rolled back into a failure.
func MarkSendFailure(r *DeliveryRecord, status DeliveryStatus, errMsg string) bool {
	if !status.Terminal() {
		return false
	}
	if r.Status.Terminal() || r.Status.Rank() > StatusSent.Rank() {
		return false
	}
	r.Status = status
	r.Bounced = status == StatusBounced
	r.ErrorMessage = errMsg
	return true
}

// MarkDelivered records the simulated provider-side delivery
// confirmation. Only legal from sent; a record that has already been
// opened or clicked stays where it is.
func MarkDelivered(r *DeliveryRecord, at time.Time) bool {
	if r.Status != StatusSent {
		return false
	}
	r.Status = StatusDelivered
	if r.DeliveredAt == nil {
		t := at
		r.DeliveredAt = &t
	}
	return true
}

// ApplyOpenEvent handles a beacon hit. Legal while the record sits in
// sent or delivered; anything else (including a repeat open) is a silent
// no-op. OpenedAt is first-write-wins.
func ApplyOpenEvent(r *DeliveryRecord, at time.Time) bool {
	rank := r.Status.Rank()
	if r.Status.Terminal() || rank < StatusSent.Rank() || rank >= StatusOpened.Rank() {
		return false
	}
	r.Status = StatusOpened
	if !r.Opened {
		r.Opened = true
		t := at
		r.OpenedAt = &t
	}
	return true
}

// ApplyClickEvent handles a redirect hit. Legal from sent, delivered or
// opened. A click on a message that was never marked opened implies the
// open as well. Timestamps are first-write-wins.
func ApplyClickEvent(r *DeliveryRecord, at time.Time) bool {
	rank := r.Status.Rank()
	if r.Status.Terminal() || rank < StatusSent.Rank() || rank > StatusOpened.Rank() {
		return false
	}
	r.Status = StatusClicked
	if !r.Opened {
		r.Opened = true
		t := at
		r.OpenedAt = &t
	}
	if !r.Clicked {
		r.Clicked = true
		t := at
		r.ClickedAt = &t
	}
	return true
}
