package controller_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/outreachkit/outreach-backend/internal/controller"
	appErrors "github.com/outreachkit/outreach-backend/internal/errors"
	"github.com/outreachkit/outreach-backend/internal/model"
	"github.com/outreachkit/outreach-backend/internal/queue"
	"github.com/outreachkit/outreach-backend/internal/service"
)

// stubDispatcher returns a scripted summary or error.
type stubDispatcher struct {
	mu      sync.Mutex
	summary *service.DispatchSummary
	err     error
	got     []model.CampaignRequest
}

func (s *stubDispatcher) Dispatch(ctx context.Context, req model.CampaignRequest) (*service.DispatchSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, req)
	return s.summary, s.err
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest("POST", "/campaigns/send", bytes.NewReader(raw)))
	return w
}

func TestSendCampaignReturnsSummary(t *testing.T) {
	stub := &stubDispatcher{summary: &service.DispatchSummary{
		Total: 3, Sent: 2, Failed: 1, SuccessRate: 2.0 / 3.0,
	}}
	c := &controller.CampaignController{Dispatcher: stub}

	w := postJSON(t, c.SendCampaign, map[string]any{
		"list_id": 1, "subject": "s", "html_body": "<p>x</p>",
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var summary service.DispatchSummary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatal(err)
	}
	if summary.Total != 3 || summary.Sent != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if len(stub.got) != 1 || stub.got[0].ListID != 1 {
		t.Errorf("dispatcher got %+v", stub.got)
	}
}

func TestSendCampaignRequiresTarget(t *testing.T) {
	c := &controller.CampaignController{Dispatcher: &stubDispatcher{}}

	w := postJSON(t, c.SendCampaign, map[string]any{"subject": "s"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSendCampaignConfigurationErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{appErrors.NewNoSenderConfig(), http.StatusBadRequest},
		{appErrors.NewNoRecipients(0, 9), http.StatusBadRequest},
		{appErrors.NewSMTPConnect("smtp.example.org", 587, context.DeadlineExceeded), http.StatusBadGateway},
	}
	for _, tc := range cases {
		c := &controller.CampaignController{Dispatcher: &stubDispatcher{err: tc.err}}
		w := postJSON(t, c.SendCampaign, map[string]any{"list_id": 9})
		if w.Code != tc.want {
			t.Errorf("err %v: status = %d, want %d", tc.err, w.Code, tc.want)
		}
	}
}

func TestQueueCampaignEnqueues(t *testing.T) {
	q := queue.NewInMemoryQueue()

	done := make(chan model.CampaignRequest, 1)
	q.Subscribe(queue.TopicCampaignDispatch, func(payload any) error {
		if req, ok := payload.(model.CampaignRequest); ok {
			done <- req
		}
		return nil
	})

	c := &controller.CampaignController{Dispatcher: &stubDispatcher{}, Queue: q}
	w := postJSON(t, c.QueueCampaign, map[string]any{
		"list_id": 5, "subject": "s", "html_body": "<p>x</p>",
	})

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	select {
	case req := <-done:
		if req.ListID != 5 {
			t.Errorf("queued request = %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("queued campaign never reached the subscriber")
	}
}
