package queue

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/scoutier-backend/internal/logger"
)

// DispatchTopic carries campaign ids that should be ticked right away.
const DispatchTopic = "campaign_dispatch"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// CampaignJob asks a worker to run one batch for a campaign.
type CampaignJob struct {
	CampaignID string `json:"campaign_id"`
}

// InMemoryQueue is a process-local queue with retry
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error

	MaxRetries int
	Backoff    time.Duration

	log *logrus.Entry
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers:   make(map[string][]func(payload any) error),
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		log:        logger.WithComponent("queue"),
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
		MaxRetries: q.MaxRetries,
	}

	for _, handler := range handlers {
		go q.processJob(topic, handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(topic string, handler func(payload any) error, job JobPayload) {
	log := q.log.WithField("topic", topic)
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			log.WithField("payload", job.Payload).Debug("job processed")
			return // ACK
		}

		job.RetryCount++
		log.WithError(err).WithFields(logrus.Fields{
			"attempt": job.RetryCount,
			"max":     job.MaxRetries,
		}).Warn("job failed")

		if job.RetryCount > job.MaxRetries {
			log.WithField("payload", job.Payload).Error("job permanently failed")
			return // No requeue
		}

		// Linear backoff before retry
		time.Sleep(time.Duration(job.RetryCount) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// PublishCampaign enqueues a dispatch job for campaignID.
func PublishCampaign(q Queue, campaignID string) error {
	return q.Publish(DispatchTopic, CampaignJob{CampaignID: campaignID})
}

// SubscribeCampaigns decodes dispatch jobs and hands their campaign ids to handle.
// Malformed jobs are dropped rather than retried.
func SubscribeCampaigns(q Queue, handle func(campaignID string) error) error {
	log := logger.WithComponent("queue").WithField("topic", DispatchTopic)
	return q.Subscribe(DispatchTopic, func(payload any) error {
		job, err := DecodeCampaignJob(payload)
		if err != nil {
			log.WithError(err).Warn("dropping malformed dispatch job")
			return nil
		}
		return handle(job.CampaignID)
	})
}

// DecodeCampaignJob accepts the payload shapes the in-memory and AMQP queues deliver.
func DecodeCampaignJob(payload any) (CampaignJob, error) {
	var job CampaignJob
	switch p := payload.(type) {
	case CampaignJob:
		job = p
	case *CampaignJob:
		if p != nil {
			job = *p
		}
	case string:
		job.CampaignID = p
	case []byte:
		if err := json.Unmarshal(p, &job); err != nil {
			return job, fmt.Errorf("decode dispatch job: %w", err)
		}
	default:
		return job, fmt.Errorf("unexpected payload type %T", payload)
	}
	if job.CampaignID == "" {
		return job, fmt.Errorf("dispatch job without campaign_id")
	}
	return job, nil
}
