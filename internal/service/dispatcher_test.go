package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	appErrors "github.com/outreachkit/outreach-backend/internal/errors"
	"github.com/outreachkit/outreach-backend/internal/mailer"
	"github.com/outreachkit/outreach-backend/internal/model"
	"github.com/outreachkit/outreach-backend/internal/service"
	"github.com/outreachkit/outreach-backend/internal/tracking"
)

// --- Mocks ---

type mockContactRepo struct {
	byID map[int]*model.Contact
	list []model.Contact
}

func (m *mockContactRepo) GetByID(id int) (*model.Contact, error) {
	return m.byID[id], nil
}

func (m *mockContactRepo) ListActiveByListID(listID int) ([]model.Contact, error) {
	return m.list, nil
}

type mockSettingsRepo struct {
	profile *model.SenderProfile
}

func (m *mockSettingsRepo) GetSenderConfig() (*model.SenderProfile, error) {
	return m.profile, nil
}

type mockDeliveryRepo struct {
	mu        sync.Mutex
	nextID    int
	records   map[int]*model.DeliveryRecord
	statusLog map[int][]model.DeliveryStatus
}

func newMockDeliveryRepo() *mockDeliveryRepo {
	return &mockDeliveryRepo{
		records:   map[int]*model.DeliveryRecord{},
		statusLog: map[int][]model.DeliveryStatus{},
	}
}

func (m *mockDeliveryRepo) Create(r *model.DeliveryRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	r.ID = m.nextID
	cp := *r
	m.records[r.ID] = &cp
	m.statusLog[r.ID] = append(m.statusLog[r.ID], r.Status)
	return nil
}

func (m *mockDeliveryRepo) UpdateStatus(id int, status model.DeliveryStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[id].Status = status
	m.statusLog[id] = append(m.statusLog[id], status)
	return nil
}

func (m *mockDeliveryRepo) MarkSent(id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	rec.Status = model.StatusSent
	if rec.SentAt == nil {
		t := at
		rec.SentAt = &t
	}
	m.statusLog[id] = append(m.statusLog[id], model.StatusSent)
	return nil
}

func (m *mockDeliveryRepo) MarkDeliveredIfSent(id int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.records[id]
	if rec.Status != model.StatusSent {
		return nil
	}
	rec.Status = model.StatusDelivered
	t := at
	rec.DeliveredAt = &t
	m.statusLog[id] = append(m.statusLog[id], model.StatusDelivered)
	return nil
}

func (m *mockDeliveryRepo) FailPendingByRecipient(email string, status model.DeliveryStatus, errMsg string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, rec := range m.records {
		if rec.RecipientEmail == email && (rec.Status == model.StatusPending || rec.Status == model.StatusSending) {
			rec.Status = status
			rec.Bounced = status == model.StatusBounced
			rec.ErrorMessage = errMsg
			m.statusLog[id] = append(m.statusLog[id], status)
			n++
		}
	}
	return n, nil
}

func (m *mockDeliveryRepo) FindByTrackingID(trackingID string) (*model.DeliveryRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.TrackingID == trackingID {
			return rec, nil
		}
	}
	return nil, nil
}

func (m *mockDeliveryRepo) ApplyOpen(trackingID string, at time.Time) error  { return nil }
func (m *mockDeliveryRepo) ApplyClick(trackingID string, at time.Time) error { return nil }

func (m *mockDeliveryRepo) CountByStatus() (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := map[string]int{}
	for _, rec := range m.records {
		stats[string(rec.Status)]++
	}
	return stats, nil
}

func (m *mockDeliveryRepo) byEmail(email string) *model.DeliveryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.RecipientEmail == email {
			return rec
		}
	}
	return nil
}

// fakeSender is a scripted mailer.Sender.
type fakeSender struct {
	mu        sync.Mutex
	verifyErr error
	failFor   map[string]error // recipient address -> send error
	sent      []string
	closed    int
}

func (f *fakeSender) Verify(ctx context.Context) error { return f.verifyErr }

func (f *fakeSender) Send(ctx context.Context, msg *mailer.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[msg.To]; ok {
		return err
	}
	f.sent = append(f.sent, msg.To)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

// manualRunner captures deferred tasks so tests can run them without
// waiting.
type manualRunner struct {
	mu    sync.Mutex
	tasks []func()
}

func (r *manualRunner) AfterFunc(d time.Duration, f func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, f)
}

func (r *manualRunner) StopAll() {}

func (r *manualRunner) Flush() {
	r.mu.Lock()
	tasks := r.tasks
	r.tasks = nil
	r.mu.Unlock()
	for _, f := range tasks {
		f()
	}
}

// --- Helpers ---

func testProfile() *model.SenderProfile {
	return &model.SenderProfile{
		SMTPHost:  "smtp.example.org",
		SMTPPort:  587,
		FromEmail: "sam@acme.example",
		FromName:  "Sam Seller",
	}
}

func newTestDispatcher(contacts *mockContactRepo, settings *mockSettingsRepo, deliveries *mockDeliveryRepo, sender *fakeSender) (*service.Dispatcher, *manualRunner) {
	d := service.NewDispatcher(contacts, settings, deliveries,
		tracking.NewRewriter("test-secret"), "https://track.example.com")
	d.NewSender = func(*model.SenderProfile) mailer.Sender { return sender }
	d.Plan = func(int) service.BatchPlan { return service.BatchPlan{BatchSize: 5} }
	runner := &manualRunner{}
	d.Deferred = runner
	return d, runner
}

func listOf(names ...string) []model.Contact {
	contacts := make([]model.Contact, len(names))
	for i, n := range names {
		contacts[i] = model.Contact{
			ID:     i + 1,
			Name:   n,
			Email:  strings.ToLower(n) + "@example.org",
			Active: true,
		}
	}
	return contacts
}

// --- Tests ---

func TestDispatchAllSucceed(t *testing.T) {
	deliveries := newMockDeliveryRepo()
	sender := &fakeSender{}
	d, runner := newTestDispatcher(
		&mockContactRepo{list: listOf("Ana", "Bob", "Carla")},
		&mockSettingsRepo{profile: testProfile()},
		deliveries, sender,
	)

	summary, err := d.Dispatch(context.Background(), model.CampaignRequest{
		ListID:   1,
		Subject:  "Hi {{contactName}}",
		HTMLBody: `<html><body><a href="https://example.org/pricing">Pricing</a></body></html>`,
	})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Total != 3 || summary.Sent != 3 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}
	if summary.SuccessRate != 1.0 {
		t.Errorf("success rate = %f", summary.SuccessRate)
	}
	if len(summary.Results) != 3 || len(summary.Errors) != 0 {
		t.Fatalf("results/errors = %d/%d", len(summary.Results), len(summary.Errors))
	}

	// one record per recipient, distinct tracking ids
	seen := map[string]bool{}
	for _, res := range summary.Results {
		if res.TrackingID == "" || seen[res.TrackingID] {
			t.Errorf("tracking id missing or reused: %q", res.TrackingID)
		}
		seen[res.TrackingID] = true
	}

	// each record walked pending -> sending -> sent
	for id, logLine := range deliveries.statusLog {
		want := []model.DeliveryStatus{model.StatusPending, model.StatusSending, model.StatusSent}
		if len(logLine) != len(want) {
			t.Fatalf("record %d status log = %v", id, logLine)
		}
		for i := range want {
			if logLine[i] != want[i] {
				t.Errorf("record %d step %d = %s, want %s", id, i, logLine[i], want[i])
			}
		}
	}

	// delivery confirmation is deferred, then applied
	runner.Flush()
	for _, rec := range deliveries.records {
		if rec.Status != model.StatusDelivered || rec.DeliveredAt == nil {
			t.Errorf("record %d not delivered after flush: %s", rec.ID, rec.Status)
		}
	}

	if sender.closed != 1 {
		t.Errorf("sender closed %d times, want 1", sender.closed)
	}
}

func TestDispatchPersonalizesAndEmbedsTracking(t *testing.T) {
	deliveries := newMockDeliveryRepo()
	d, _ := newTestDispatcher(
		&mockContactRepo{list: listOf("Ana")},
		&mockSettingsRepo{profile: testProfile()},
		deliveries, &fakeSender{},
	)

	summary, err := d.Dispatch(context.Background(), model.CampaignRequest{
		ListID:   1,
		Subject:  "Hi {{contactName}}",
		HTMLBody: `<html><body>From {{senderName}}: <a href="https://example.org/pricing">Pricing</a></body></html>`,
	})
	if err != nil {
		t.Fatal(err)
	}

	rec := deliveries.byEmail("ana@example.org")
	if rec == nil {
		t.Fatal("no record for ana")
	}
	if rec.Subject != "Hi Ana" {
		t.Errorf("subject = %q", rec.Subject)
	}
	if !strings.Contains(rec.HTMLBody, "From Sam Seller") {
		t.Errorf("sender placeholder not substituted: %s", rec.HTMLBody)
	}
	if !strings.Contains(rec.HTMLBody, "/track/open/"+rec.TrackingID) {
		t.Errorf("beacon missing from stored body")
	}
	if !strings.Contains(rec.HTMLBody, "/track/click/"+rec.TrackingID) {
		t.Errorf("click tracking missing from stored body")
	}
	if rec.TrackingID != summary.Results[0].TrackingID {
		t.Errorf("summary tracking id mismatch")
	}
}

func TestDispatchBounceClassification(t *testing.T) {
	deliveries := newMockDeliveryRepo()
	sender := &fakeSender{failFor: map[string]error{
		"bob@example.org": errors.New("550 recipient rejected"),
	}}
	d, _ := newTestDispatcher(
		&mockContactRepo{list: listOf("Ana", "Bob")},
		&mockSettingsRepo{profile: testProfile()},
		deliveries, sender,
	)

	summary, err := d.Dispatch(context.Background(), model.CampaignRequest{
		ListID: 1, Subject: "s", HTMLBody: "<p>x</p>",
	})
	if err != nil {
		t.Fatal(err)
	}

	if summary.Sent != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].Email != "bob@example.org" {
		t.Fatalf("errors = %+v", summary.Errors)
	}

	if rec := deliveries.byEmail("ana@example.org"); rec.Status != model.StatusSent {
		t.Errorf("ana status = %s, want sent", rec.Status)
	}
	bob := deliveries.byEmail("bob@example.org")
	if bob.Status != model.StatusBounced || !bob.Bounced {
		t.Errorf("bob status = %s, want bounced", bob.Status)
	}
	if bob.ErrorMessage == "" {
		t.Error("bounced record must carry the error message")
	}
}

func TestDispatchNoSenderConfig(t *testing.T) {
	deliveries := newMockDeliveryRepo()
	d, _ := newTestDispatcher(
		&mockContactRepo{list: listOf("Ana")},
		&mockSettingsRepo{profile: nil},
		deliveries, &fakeSender{},
	)

	_, err := d.Dispatch(context.Background(), model.CampaignRequest{ListID: 1})
	var want *appErrors.ErrNoSenderConfig
	if !errors.As(err, &want) {
		t.Fatalf("err = %v, want ErrNoSenderConfig", err)
	}
	if len(deliveries.records) != 0 {
		t.Error("no records may be created when configuration is missing")
	}
}

func TestDispatchPreflightFailure(t *testing.T) {
	deliveries := newMockDeliveryRepo()
	sender := &fakeSender{verifyErr: errors.New("dial tcp: connection refused")}
	d, _ := newTestDispatcher(
		&mockContactRepo{list: listOf("Ana", "Bob")},
		&mockSettingsRepo{profile: testProfile()},
		deliveries, sender,
	)

	_, err := d.Dispatch(context.Background(), model.CampaignRequest{ListID: 1})
	var want *appErrors.ErrSMTPConnect
	if !errors.As(err, &want) {
		t.Fatalf("err = %v, want ErrSMTPConnect", err)
	}
	if len(deliveries.records) != 0 {
		t.Error("no records may be created when the pre-flight check fails")
	}
	if sender.closed != 1 {
		t.Errorf("sender must still be closed exactly once, got %d", sender.closed)
	}
}

func TestDispatchNoRecipients(t *testing.T) {
	d, _ := newTestDispatcher(
		&mockContactRepo{list: nil},
		&mockSettingsRepo{profile: testProfile()},
		newMockDeliveryRepo(), &fakeSender{},
	)

	_, err := d.Dispatch(context.Background(), model.CampaignRequest{ListID: 7})
	var want *appErrors.ErrNoRecipients
	if !errors.As(err, &want) {
		t.Fatalf("err = %v, want ErrNoRecipients", err)
	}
}

func TestDispatchInactiveSingleContact(t *testing.T) {
	d, _ := newTestDispatcher(
		&mockContactRepo{byID: map[int]*model.Contact{
			4: {ID: 4, Email: "dan@example.org", Active: false},
		}},
		&mockSettingsRepo{profile: testProfile()},
		newMockDeliveryRepo(), &fakeSender{},
	)

	_, err := d.Dispatch(context.Background(), model.CampaignRequest{ContactID: 4})
	var want *appErrors.ErrNoRecipients
	if !errors.As(err, &want) {
		t.Fatalf("err = %v, want ErrNoRecipients", err)
	}
}

func TestClassifySendError(t *testing.T) {
	cases := []struct {
		msg  string
		want model.DeliveryStatus
	}{
		{"550 recipient rejected", model.StatusBounced},
		{"hard bounce detected", model.StatusBounced},
		{"mailbox unavailable", model.StatusBounced},
		{"smtp: user unknown", model.StatusBounced},
		{"dial tcp: i/o timeout", model.StatusFailed},
		{"535 authentication failed", model.StatusFailed},
	}
	for _, c := range cases {
		if got := service.ClassifySendError(errors.New(c.msg)); got != c.want {
			t.Errorf("ClassifySendError(%q) = %s, want %s", c.msg, got, c.want)
		}
	}
}
