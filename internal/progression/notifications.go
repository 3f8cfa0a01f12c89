package progression

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/JunoAX/greenquest-go/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultNotificationLimit is the feed size returned when no limit is given
const DefaultNotificationLimit = 20

// lateDeliveryTimeout bounds a notification emitted after Close
const lateDeliveryTimeout = 10 * time.Second

// EventType is the kind of state transition that raises a notification
type EventType string

const (
	EventLevelUp            EventType = "level_up"
	EventChallengeUnlocked  EventType = "challenge_unlocked"
	EventBadgeEarned        EventType = "badge_earned"
	EventChallengeCompleted EventType = "challenge_completed"
	EventReminder           EventType = "reminder"
)

// Event is raised after a transition commits
type Event struct {
	Type      EventType
	AccountID uuid.UUID
	Level     int
	Badge     string
	Challenge string
	Points    int
	Message   string
}

// Notification maps the event to the feed row it produces
func (e Event) Notification() (models.NotificationType, string) {
	switch e.Type {
	case EventLevelUp:
		return models.NotificationAchievement, fmt.Sprintf("You reached level %d!", e.Level)
	case EventBadgeEarned:
		return models.NotificationAchievement, fmt.Sprintf("You earned the %s badge!", e.Badge)
	case EventChallengeCompleted:
		return models.NotificationAchievement, fmt.Sprintf("Challenge completed: %s! +%d points", e.Challenge, e.Points)
	case EventChallengeUnlocked:
		return models.NotificationChallengeUnlock, fmt.Sprintf("New challenge unlocked: %s", e.Challenge)
	default:
		return models.NotificationReminder, e.Message
	}
}

// Broadcaster pushes persisted notifications to live subscribers
type Broadcaster interface {
	Broadcast(ctx context.Context, n models.Notification) error
}

// EmitterConfig sizes the persistence pipeline
type EmitterConfig struct {
	Workers      int
	QueueSize    int
	MaxRetries   uint64
	RetryBackoff time.Duration
}

// DefaultEmitterConfig returns the defaults used when config leaves values unset
func DefaultEmitterConfig() EmitterConfig {
	return EmitterConfig{
		Workers:      4,
		QueueSize:    256,
		MaxRetries:   5,
		RetryBackoff: 100 * time.Millisecond,
	}
}

// Emitter persists notifications off the request path. A failed insert is
// retried and then logged; it never affects the transition that raised it.
type Emitter struct {
	store       Store
	broadcaster Broadcaster
	logger      *zap.Logger
	cfg         EmitterConfig
	now         func() time.Time

	queue   chan models.Notification
	pending sync.WaitGroup
	late    sync.WaitGroup
	workers sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc

	mu     sync.RWMutex
	closed bool
}

func NewEmitter(store Store, broadcaster Broadcaster, cfg EmitterConfig, logger *zap.Logger) *Emitter {
	def := DefaultEmitterConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = def.RetryBackoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Emitter{
		store:       store,
		broadcaster: broadcaster,
		logger:      logger,
		cfg:         cfg,
		now:         time.Now,
		queue:       make(chan models.Notification, cfg.QueueSize),
		ctx:         ctx,
		cancel:      cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		e.workers.Add(1)
		go e.worker()
	}
	return e
}

// Emit queues one notification per event and returns immediately
func (e *Emitter) Emit(events ...Event) {
	for _, ev := range events {
		typ, msg := ev.Notification()
		n := models.Notification{
			ID:        uuid.New(),
			AccountID: ev.AccountID,
			Type:      typ,
			Message:   msg,
			Read:      false,
			CreatedAt: e.now().UTC(),
		}
		e.enqueue(n)
	}
}

func (e *Emitter) enqueue(n models.Notification) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.deliverLate(n)
		return
	}

	// Close flips closed under the write lock before it waits, so no Add races its Wait
	e.pending.Add(1)
	select {
	case e.queue <- n:
	default:
		// queue full: persist on a goroutine of its own rather than block the caller
		e.logger.Warn("Notification queue full, delivering inline",
			zap.String("account_id", n.AccountID.String()))
		go func() {
			defer e.pending.Done()
			e.deliver(e.ctx, n)
		}()
	}
}

// deliverLate persists a notification raised after Close. The workers are gone
// and e.ctx is cancelled, so it runs on its own bounded context.
func (e *Emitter) deliverLate(n models.Notification) {
	e.logger.Warn("Notification emitted after close",
		zap.String("notification_id", n.ID.String()),
		zap.String("account_id", n.AccountID.String()))

	e.late.Add(1)
	go func() {
		defer e.late.Done()
		ctx, cancel := context.WithTimeout(context.Background(), lateDeliveryTimeout)
		defer cancel()
		e.deliver(ctx, n)
	}()
}

func (e *Emitter) worker() {
	defer e.workers.Done()
	for n := range e.queue {
		e.deliver(e.ctx, n)
		e.pending.Done()
	}
}

func (e *Emitter) deliver(ctx context.Context, n models.Notification) {
	operation := func() error {
		err := e.store.InsertNotification(ctx, &n)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		e.logger.Warn("Retrying notification insert",
			zap.String("notification_id", n.ID.String()),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, e.cfg.MaxRetries), ctx)

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		e.logger.Error("Failed to persist notification",
			zap.String("notification_id", n.ID.String()),
			zap.String("account_id", n.AccountID.String()),
			zap.String("type", string(n.Type)),
			zap.Error(err))
		return
	}

	if e.broadcaster == nil {
		return
	}
	if err := e.broadcaster.Broadcast(ctx, n); err != nil {
		e.logger.Warn("Failed to broadcast notification",
			zap.String("notification_id", n.ID.String()),
			zap.Error(err))
	}
}

// Wait blocks until every notification emitted so far has been handled
func (e *Emitter) Wait() {
	e.pending.Wait()
	e.late.Wait()
}

// Close drains the queue and stops the workers. If ctx expires first the
// remaining inserts are abandoned.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.workers.Wait()
		e.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		e.logger.Warn("Notification emitter stop timeout")
		return ctx.Err()
	}
}

// List returns the account's newest notifications
func (e *Emitter) List(ctx context.Context, accountID uuid.UUID, limit int) ([]models.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	return e.store.ListNotifications(ctx, accountID, min(limit, 100))
}

// MarkRead sets read=true. Marking an already read notification is not an error.
func (e *Emitter) MarkRead(ctx context.Context, accountID, id uuid.UUID) (*models.Notification, error) {
	return e.store.MarkNotificationRead(ctx, accountID, id)
}

// Remind queues a reminder for the account. It is the entry point for the reminder scheduler.
func (e *Emitter) Remind(ctx context.Context, accountID uuid.UUID, message string) error {
	message = strings.TrimSpace(message)
	if message == "" {
		return Validation("message is required")
	}
	if _, err := e.store.GetAccount(ctx, accountID); err != nil {
		return err
	}
	e.Emit(Event{Type: EventReminder, AccountID: accountID, Message: message})
	return nil
}
