// internal/controller/campaign_controller.go
package controller

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/streadway/amqp"

	appErrors "github.com/outreachkit/outreach-backend/internal/errors"
	"github.com/outreachkit/outreach-backend/internal/model"
	"github.com/outreachkit/outreach-backend/internal/queue"
	"github.com/outreachkit/outreach-backend/internal/service"
)

// CampaignDispatcher is the slice of the dispatcher the controller needs.
type CampaignDispatcher interface {
	Dispatch(ctx context.Context, req model.CampaignRequest) (*service.DispatchSummary, error)
}

type CampaignController struct {
	Dispatcher CampaignDispatcher
	Queue      queue.Queue
	AMQPURL    string
}

// SendCampaign handles POST /campaigns/send: runs the dispatch
// synchronously and returns the summary. Partial failure is a 200 with
// counts; only configuration/connectivity problems are HTTP errors.
func (c *CampaignController) SendCampaign(w http.ResponseWriter, r *http.Request) {
	var req model.CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.ContactID == 0 && req.ListID == 0 {
		http.Error(w, "contact_id or list_id is required", http.StatusBadRequest)
		return
	}

	summary, err := c.Dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		var noSender *appErrors.ErrNoSenderConfig
		var noRecipients *appErrors.ErrNoRecipients
		var smtpErr *appErrors.ErrSMTPConnect
		switch {
		case errors.As(err, &noSender), errors.As(err, &noRecipients):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.As(err, &smtpErr):
			http.Error(w, err.Error(), http.StatusBadGateway)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(summary)
}

// QueueCampaign handles POST /campaigns/queue: enqueues the dispatch for
// the worker (AMQP when configured, in-process queue otherwise) and
// returns 202.
func (c *CampaignController) QueueCampaign(w http.ResponseWriter, r *http.Request) {
	var req model.CampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}
	if req.ContactID == 0 && req.ListID == 0 {
		http.Error(w, "contact_id or list_id is required", http.StatusBadRequest)
		return
	}

	if c.AMQPURL != "" {
		if err := publishToBroker(c.AMQPURL, req); err != nil {
			log.Println("failed to publish campaign to broker:", err)
			http.Error(w, "failed to enqueue campaign", http.StatusInternalServerError)
			return
		}
	} else if err := c.Queue.Publish(queue.TopicCampaignDispatch, req); err != nil {
		http.Error(w, "failed to enqueue campaign", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "queued"})
}

func publishToBroker(amqpURL string, req model.CampaignRequest) error {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(
		queue.TopicCampaignDispatch,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return ch.Publish("", q.Name, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        body,
	})
}
