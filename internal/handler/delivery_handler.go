// internal/handler/delivery_handler.go
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/outreachkit/outreach-backend/internal/repository"
)

// DeliveryHandler exposes delivery-record aggregates.
type DeliveryHandler struct {
	Deliveries repository.DeliveryRecordRepositoryInterface
}

// Stats returns counts of delivery records grouped by lifecycle status.
func (h *DeliveryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Deliveries.CountByStatus()
	if err != nil {
		http.Error(w, "failed to fetch delivery stats: "+err.Error(), http.StatusInternalServerError)
		return
	}

	total := 0
	for _, n := range stats {
		total += n
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"total":    total,
		"byStatus": stats,
	})
}
