package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"lift-maintenance-backend/internal/model"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of Sender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job is one schedule-change event to fan out to zone subscribers.
type Job struct {
	ZoneID     int64
	ScheduleID int64
	Event      string
}

// WorkerPool manages a pool of workers for sending notifications. Dispatch
// is fire-and-forget: a failed or dropped notification never affects the
// mutation that triggered it.
type WorkerPool struct {
	size    int
	jobs    chan Job
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, db *gorm.DB, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.sendForJob(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// ScheduleChanged implements the scheduler's Notifier contract. A full
// queue drops the job rather than stalling the request that produced it.
func (wp *WorkerPool) ScheduleChanged(zoneID, scheduleID int64, event string) {
	select {
	case wp.jobs <- Job{ZoneID: zoneID, ScheduleID: scheduleID, Event: event}:
	default:
		log.Printf("Notification queue full; dropping %s event for schedule %d", event, scheduleID)
	}
}

// sendForJob fetches the zone's subscriptions and pushes the event to each.
func (wp *WorkerPool) sendForJob(ctx context.Context, job Job) {
	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_zone_mapping szm ON szm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("szm.zone_id = ?", job.ZoneID).
		Find(&subscriptions).Error
	if err != nil {
		log.Printf("Error fetching subscriptions for zone %d: %v", job.ZoneID, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	var sched model.Schedule
	label := fmt.Sprintf("schedule %d", job.ScheduleID)
	if err := wp.db.WithContext(ctx).
		Preload("Equipment").
		First(&sched, job.ScheduleID).Error; err != nil {
		log.Printf("Error fetching schedule %d: %v", job.ScheduleID, err)
	} else if sched.Equipment.Number != "" {
		label = sched.Equipment.Number
	}

	message := fmt.Sprintf("Maintenance for %s: %s", label, job.Event)
	log.Printf("Sending %d notifications for schedule %d (%s)", len(subscriptions), job.ScheduleID, job.Event)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, []byte(message))
	}
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
