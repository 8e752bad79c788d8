package notifications

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tecscanner/internal/logging"
)

const publishTimeout = 30 * time.Second

// Observer turns recorder telemetry into alerts. Every publish runs on its
// own goroutine; Wait blocks until in-flight alerts finish.
type Observer struct {
	svc      Service
	logger   *slog.Logger
	cooldown time.Duration
	now      func() time.Time

	mu           sync.Mutex
	lastLogAlert time.Time
	lidarSeen    bool
	wg           sync.WaitGroup
}

// NewObserver wraps svc. Log failure alerts are sent at most once per
// cooldown.
func NewObserver(svc Service, cooldown time.Duration, logger *slog.Logger) *Observer {
	if svc == nil {
		svc = noopService{}
	}
	return &Observer{
		svc:      svc,
		logger:   logging.NewComponentLogger(logger, "notify"),
		cooldown: cooldown,
		now:      time.Now,
	}
}

func (o *Observer) FrameCaptured(time.Duration) {}

func (o *Observer) CaptureFailed() {}

// SessionFinished alerts on any outcome other than a clean stop.
func (o *Observer) SessionFinished(result string) {
	if result == "" || result == "completed" {
		return
	}
	o.publish(EventSessionFailed, Payload{"result": result})
}

func (o *Observer) LogWriteFailed() {
	now := o.now()
	o.mu.Lock()
	if !o.lastLogAlert.IsZero() && now.Sub(o.lastLogAlert) < o.cooldown {
		o.mu.Unlock()
		return
	}
	o.lastLogAlert = now
	o.mu.Unlock()
	o.publish(EventLogUnwritable, nil)
}

// LidarPresence alerts once when a previously seen sensor disappears.
func (o *Observer) LidarPresence(detected bool) {
	o.mu.Lock()
	lost := o.lidarSeen && !detected
	o.lidarSeen = detected
	o.mu.Unlock()
	if lost {
		o.publish(EventLidarLost, nil)
	}
}

// Wait blocks until every pending alert has been attempted.
func (o *Observer) Wait() {
	o.wg.Wait()
}

func (o *Observer) publish(event Event, payload Payload) {
	if !o.svc.Enabled() {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := o.svc.Publish(ctx, event, payload); err != nil {
			logging.WarnWithContext(o.logger, "notification failed", "notification_failed",
				logging.String("event", string(event)),
				logging.Error(err),
				logging.String(logging.FieldImpact, "alert not delivered"),
			)
			return
		}
		o.logger.Debug("notification sent", logging.String("event", string(event)))
	}()
}
