// internal/service/plan.go
package service

import (
	"time"

	"github.com/outreachkit/outreach-backend/internal/model"
)

// BatchPlan is the pacing for one campaign: fixed-size batches, a
// per-recipient stagger inside each batch, and a pause between batches.
type BatchPlan struct {
	BatchSize    int
	MessageDelay time.Duration
	BatchDelay   time.Duration
}

// PlanFor picks the pacing tier for a recipient count. Larger sends get
// smaller batches and longer pauses.
func PlanFor(total int) BatchPlan {
	switch {
	case total > 50:
		return BatchPlan{BatchSize: 3, MessageDelay: 2000 * time.Millisecond, BatchDelay: 5000 * time.Millisecond}
	case total > 20:
		return BatchPlan{BatchSize: 4, MessageDelay: 1500 * time.Millisecond, BatchDelay: 4000 * time.Millisecond}
	default:
		return BatchPlan{BatchSize: 5, MessageDelay: 1000 * time.Millisecond, BatchDelay: 3000 * time.Millisecond}
	}
}

// Split partitions recipients into consecutive batches of BatchSize.
func (p BatchPlan) Split(contacts []model.Contact) [][]model.Contact {
	if p.BatchSize < 1 {
		return [][]model.Contact{contacts}
	}
	var batches [][]model.Contact
	for start := 0; start < len(contacts); start += p.BatchSize {
		end := start + p.BatchSize
		if end > len(contacts) {
			end = len(contacts)
		}
		batches = append(batches, contacts[start:end])
	}
	return batches
}
