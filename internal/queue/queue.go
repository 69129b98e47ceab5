package queue

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/outreachkit/outreach-backend/internal/model"
	"github.com/outreachkit/outreach-backend/internal/service"
)

// TopicCampaignDispatch carries queued model.CampaignRequest payloads.
const TopicCampaignDispatch = "campaign_dispatch"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue is an in-process queue with retry, used when no broker is
// configured.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("job failed (attempt %d/%d): %v", job.RetryCount, job.MaxRetries, err)

		if job.RetryCount > job.MaxRetries {
			log.Printf("job permanently failed after %d attempts", job.MaxRetries)
			return // no requeue
		}

		// backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// StartCampaignDispatchSubscriber wires queued campaign requests into the
// dispatcher. Configuration-class errors are not retried: redelivering a
// campaign with no SMTP config just fails again.
func StartCampaignDispatchSubscriber(q Queue, d *service.Dispatcher) {
	err := q.Subscribe(TopicCampaignDispatch, func(payload any) error {
		req, ok := payload.(model.CampaignRequest)
		if !ok {
			log.Printf("campaign subscriber: unexpected payload type %T", payload)
			return nil
		}

		summary, err := d.Dispatch(context.Background(), req)
		if err != nil {
			log.Println("queued campaign aborted:", err)
			return nil
		}

		log.Printf("queued campaign done: total=%d sent=%d failed=%d",
			summary.Total, summary.Sent, summary.Failed)
		return nil
	})
	if err != nil {
		log.Println("failed to start campaign dispatch subscriber:", err)
	}
}
