// Package notify defines the best-effort notification contract: progression
// milestones are announced to downstream consumers after the state change
// commits, and delivery failure never rolls progression back.
package notify

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/evergrind/evergrind/internal/platform/timeouts"
)

// Kind identifies one notification event type.
type Kind string

const (
	KindLevelUp         Kind = "level_up"
	KindStatLevelUp     Kind = "stat_level_up"
	KindNodeAllocated   Kind = "node_allocated"
	KindSkillUnlocked   Kind = "skill_unlocked"
	KindRespecPerformed Kind = "respec_performed"
)

// Event is one progression milestone. Only the fields relevant to the kind
// are set.
type Event struct {
	Kind        Kind
	CharacterID string
	Level       int
	Stat        string
	StatLevel   int
	NodeCode    string
	SkillCode   string
}

// Notifier delivers one event to a downstream consumer.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the process log. It is the default sink when
// no downstream consumer is wired.
type LogNotifier struct{}

// Notify logs one event.
func (LogNotifier) Notify(_ context.Context, event Event) error {
	log.Printf("progression notification kind=%s character_id=%s level=%d stat=%s stat_level=%d node=%s skill=%s",
		event.Kind, event.CharacterID, event.Level, event.Stat, event.StatLevel, event.NodeCode, event.SkillCode)
	return nil
}

// Dispatcher fans events out to one notifier with a per-batch timeout.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
}

// NewDispatcher builds a dispatcher. A nil notifier falls back to the log
// sink; a non-positive timeout falls back to timeouts.NotifyDelivery.
func NewDispatcher(notifier Notifier, timeout time.Duration) *Dispatcher {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if timeout <= 0 {
		timeout = timeouts.NotifyDelivery
	}
	return &Dispatcher{notifier: notifier, timeout: timeout}
}

// maxConcurrentDeliveries bounds parallel notifier calls per batch.
const maxConcurrentDeliveries = 4

// Dispatch delivers events best-effort. It runs after the owning state
// change has committed, so it uses a fresh bounded context rather than the
// request context and only logs failures. Events within a batch are
// delivered concurrently; one slow or failing delivery does not block the
// rest beyond the shared timeout.
func (d *Dispatcher) Dispatch(events []Event) {
	if d == nil || len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	group := new(errgroup.Group)
	group.SetLimit(maxConcurrentDeliveries)
	for _, event := range events {
		group.Go(func() error {
			if err := d.notifier.Notify(ctx, event); err != nil {
				log.Printf("progression notification delivery failed kind=%s character_id=%s error=%v",
					event.Kind, event.CharacterID, err)
			}
			return nil
		})
	}
	_ = group.Wait()
}
