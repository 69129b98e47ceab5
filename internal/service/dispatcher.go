// internal/service/dispatcher.go
package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	appErrors "github.com/outreachkit/outreach-backend/internal/errors"
	"github.com/outreachkit/outreach-backend/internal/mailer"
	"github.com/outreachkit/outreach-backend/internal/model"
	"github.com/outreachkit/outreach-backend/internal/personalize"
	"github.com/outreachkit/outreach-backend/internal/repository"
	"github.com/outreachkit/outreach-backend/internal/tracking"
)

// Dispatcher drives one campaign invocation end to end: resolve the
// recipient set, personalize and track each message, persist one delivery
// record per recipient, and push everything through a pooled SMTP
// connection in rate-limited batches.
type Dispatcher struct {
	Contacts   repository.ContactRepositoryInterface
	Settings   repository.SettingsRepositoryInterface
	Deliveries repository.DeliveryRecordRepositoryInterface

	Rewriter tracking.LinkRewriter
	BaseURL  string

	// NewSender builds the transport for one invocation. The returned
	// Sender is owned by that invocation: verified before the first
	// batch, closed after the last.
	NewSender func(*model.SenderProfile) mailer.Sender

	// Plan picks the pacing tier for a recipient count.
	Plan func(total int) BatchPlan

	// Deferred runs the simulated delivered-confirmation tasks.
	Deferred       TaskRunner
	DeliveredAfter time.Duration
}

func NewDispatcher(
	contacts repository.ContactRepositoryInterface,
	settings repository.SettingsRepositoryInterface,
	deliveries repository.DeliveryRecordRepositoryInterface,
	rewriter tracking.LinkRewriter,
	baseURL string,
) *Dispatcher {
	return &Dispatcher{
		Contacts:   contacts,
		Settings:   settings,
		Deliveries: deliveries,
		Rewriter:   rewriter,
		BaseURL:    baseURL,
		NewSender: func(p *model.SenderProfile) mailer.Sender {
			return mailer.NewPool(p)
		},
		Plan:           PlanFor,
		Deferred:       NewTimerRunner(),
		DeliveredAfter: 2 * time.Second,
	}
}

// RecipientResult is the per-recipient success detail in a summary.
type RecipientResult struct {
	RecordID   int    `json:"record_id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	TrackingID string `json:"tracking_id"`
}

// RecipientError is the per-recipient failure detail in a summary.
type RecipientError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// DispatchSummary is the campaign-level outcome. Partial failure is data
// here, never an error from Dispatch.
type DispatchSummary struct {
	Total       int               `json:"total"`
	Sent        int               `json:"sent"`
	Failed      int               `json:"failed"`
	SuccessRate float64           `json:"success_rate"`
	Results     []RecipientResult `json:"results"`
	Errors      []RecipientError  `json:"errors"`
}

// Dispatch runs one campaign. Only configuration and connectivity
// problems come back as errors, and always before any delivery record
// has been created; everything after the pre-flight check lands in the
// summary.
func (d *Dispatcher) Dispatch(ctx context.Context, req model.CampaignRequest) (*DispatchSummary, error) {
	recipients, err := d.resolveRecipients(req)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, appErrors.NewNoRecipients(req.ContactID, req.ListID)
	}

	profile, err := d.Settings.GetSenderConfig()
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, appErrors.NewNoSenderConfig()
	}

	sender := d.NewSender(profile)
	defer sender.Close()

	if err := sender.Verify(ctx); err != nil {
		return nil, appErrors.NewSMTPConnect(profile.SMTPHost, profile.SMTPPort, err)
	}

	plan := d.Plan(len(recipients))
	batches := plan.Split(recipients)
	log.Printf("dispatching %d recipients in %d batches of up to %d",
		len(recipients), len(batches), plan.BatchSize)

	summary := &DispatchSummary{Total: len(recipients)}
	for bi, batch := range batches {
		outcomes := make([]unitOutcome, len(batch))
		var wg sync.WaitGroup
		for i, contact := range batch {
			wg.Add(1)
			go func(i int, c model.Contact) {
				defer wg.Done()
				// stagger sends inside the batch
				sleepCtx(ctx, time.Duration(i)*plan.MessageDelay)
				outcomes[i] = d.sendOne(ctx, sender, profile, req, c)
			}(i, contact)
		}
		wg.Wait()

		for _, o := range outcomes {
			if o.err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, RecipientError{Email: o.email, Error: o.err.Error()})
			} else {
				summary.Sent++
				summary.Results = append(summary.Results, RecipientResult{
					RecordID: o.recordID, Email: o.email, Name: o.name, TrackingID: o.trackingID,
				})
			}
		}

		if bi < len(batches)-1 {
			sleepCtx(ctx, plan.BatchDelay)
		}
	}

	summary.SuccessRate = float64(summary.Sent) / float64(summary.Total)
	return summary, nil
}

func (d *Dispatcher) resolveRecipients(req model.CampaignRequest) ([]model.Contact, error) {
	if req.ContactID > 0 {
		c, err := d.Contacts.GetByID(req.ContactID)
		if err != nil {
			return nil, err
		}
		if c == nil || !c.Active {
			return nil, nil
		}
		return []model.Contact{*c}, nil
	}
	return d.Contacts.ListActiveByListID(req.ListID)
}

type unitOutcome struct {
	email      string
	name       string
	recordID   int
	trackingID string
	err        error
}

// sendOne is the per-recipient unit of work: fresh tracking id,
// personalize, embed tracking, create record, send, settle the record.
func (d *Dispatcher) sendOne(ctx context.Context, sender mailer.Sender, profile *model.SenderProfile, req model.CampaignRequest, c model.Contact) unitOutcome {
	out := unitOutcome{email: c.Email, name: c.Name}

	trackingID := tracking.NewTrackingID()
	subject := personalize.Personalize(req.Subject, c, profile)
	html := personalize.Personalize(req.HTMLBody, c, profile)
	text := personalize.Personalize(req.TextBody, c, profile)
	if d.Rewriter != nil {
		html = d.Rewriter.EmbedAll(html, trackingID, d.BaseURL)
	}

	rec := &model.DeliveryRecord{
		RecipientEmail: c.Email,
		RecipientName:  c.Name,
		Subject:        subject,
		HTMLBody:       html,
		TextBody:       text,
		FromEmail:      profile.FromEmail,
		FromName:       profile.FromName,
		SMTPHost:       profile.SMTPHost,
		SMTPPort:       profile.SMTPPort,
		Status:         model.StatusPending,
		TrackingID:     trackingID,
	}
	if err := d.Deliveries.Create(rec); err != nil {
		out.err = fmt.Errorf("create delivery record: %w", err)
		return out
	}
	out.recordID = rec.ID
	out.trackingID = trackingID

	model.BeginSending(rec)
	if err := d.Deliveries.UpdateStatus(rec.ID, model.StatusSending); err != nil {
		log.Println("dispatcher: update to sending:", err)
	}

	err := sender.Send(ctx, &mailer.Message{
		From:     profile.FromEmail,
		FromName: profile.FromName,
		To:       c.Email,
		ToName:   c.Name,
		Subject:  subject,
		HTML:     html,
		Text:     text,
	})
	if err != nil {
		status := ClassifySendError(err)
		model.MarkSendFailure(rec, status, err.Error())
		// keyed by recipient, not record id: also settles a record whose
		// id was lost between create and send
		if _, ferr := d.Deliveries.FailPendingByRecipient(c.Email, status, err.Error()); ferr != nil {
			log.Println("dispatcher: record send failure:", ferr)
		}
		out.err = err
		return out
	}

	now := time.Now()
	model.MarkSent(rec, now)
	if err := d.Deliveries.MarkSent(rec.ID, now); err != nil {
		log.Println("dispatcher: mark sent:", err)
	}

	// no delivery webhook exists, so confirm delivery on a timer
	recordID := rec.ID
	d.Deferred.AfterFunc(d.DeliveredAfter, func() {
		if err := d.Deliveries.MarkDeliveredIfSent(recordID, time.Now()); err != nil {
			log.Println("dispatcher: mark delivered:", err)
		}
	})

	return out
}

// bounceIndicators are the error-text fragments treated as a receiving
// server rejecting the message rather than a transport fault. Heuristic
// and provider-specific; extend as providers surface new phrasings.
var bounceIndicators = []string{
	"bounce",
	"rejected",
	"mailbox unavailable",
	"mailbox not found",
	"user unknown",
	"no such user",
	"recipient refused",
	"does not exist",
}

// ClassifySendError buckets a per-recipient send error into bounced or
// failed.
func ClassifySendError(err error) model.DeliveryStatus {
	msg := strings.ToLower(err.Error())
	for _, tok := range bounceIndicators {
		if strings.Contains(msg, tok) {
			return model.StatusBounced
		}
	}
	return model.StatusFailed
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
