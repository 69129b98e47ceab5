// internal/handler/tracking_handler.go
package handler

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/outreachkit/outreach-backend/internal/model"
	"github.com/outreachkit/outreach-backend/internal/repository"
	"github.com/outreachkit/outreach-backend/internal/tracking"
)

// transparent 1x1 PNG
var pixelPNG, _ = base64.StdEncoding.DecodeString(
	"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

// TrackingHandler serves the open beacon and click redirect. Both
// endpoints answer for the email client first and record state second:
// no internal failure may surface as a non-image or a blocked redirect.
type TrackingHandler struct {
	Deliveries repository.DeliveryRecordRepositoryInterface
	Secret     string
	Now        func() time.Time
}

func NewTrackingHandler(deliveries repository.DeliveryRecordRepositoryInterface, secret string) *TrackingHandler {
	return &TrackingHandler{Deliveries: deliveries, Secret: secret, Now: time.Now}
}

// Open handles GET /track/open/{trackingID}. Always 200 with the pixel:
// many clients render a broken image for anything else.
func (h *TrackingHandler) Open(w http.ResponseWriter, r *http.Request) {
	h.recordEvent(r, false)

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelPNG)
}

// Click handles GET /track/click/{trackingID}?url=...&t=... and redirects
// to the original destination whether or not the lookup succeeds. 400
// only when there is no destination to redirect to.
func (h *TrackingHandler) Click(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "missing url parameter"})
		return
	}

	h.recordEvent(r, true)

	http.Redirect(w, r, target, http.StatusFound)
}

// recordEvent is the best-effort side of both endpoints; its outcome
// never changes the response.
func (h *TrackingHandler) recordEvent(r *http.Request, click bool) {
	trackingID := chi.URLParam(r, "trackingID")
	if trackingID == "" {
		return
	}
	if !tracking.VerifyToken(trackingID, r.URL.Query().Get("t"), h.Secret) {
		return
	}
	if !tracking.IsLikelyHuman(r.Header.Get("User-Agent"), r.Header.Get("Referer")) {
		return
	}

	rec, err := h.Deliveries.FindByTrackingID(trackingID)
	if err != nil {
		log.Println("tracking: lookup:", err)
		return
	}
	if rec == nil {
		return
	}

	now := h.Now()
	var applied bool
	if click {
		applied = model.ApplyClickEvent(rec, now)
	} else {
		applied = model.ApplyOpenEvent(rec, now)
	}
	if !applied {
		if rec.Status.Terminal() {
			// engagement on a failed delivery is an inconsistency worth a
			// line in the log, not a state change
			log.Printf("tracking: ignoring event for %s delivery %s", rec.Status, trackingID)
		}
		return
	}

	if click {
		err = h.Deliveries.ApplyClick(trackingID, now)
	} else {
		err = h.Deliveries.ApplyOpen(trackingID, now)
	}
	if err != nil {
		log.Println("tracking: persist event:", err)
	}
}
