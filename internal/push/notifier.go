package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/dutyroster/internal/model"
)

const queueSize = 64

type Subscriptions interface {
	ListByMember(memberID int64) ([]model.PushSubscription, error)
	DeleteByEndpoint(endpoint string) error
}

type notice struct {
	memberID int64
	payload  Payload
}

// Notifier delivers notices to members' devices from a background worker so
// request handlers never wait on push services.
type Notifier struct {
	mu      sync.RWMutex
	service *Service
	subs    Subscriptions
	queue   chan notice
	logger  *slog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewNotifier(svc *Service, subs Subscriptions, logger *slog.Logger) *Notifier {
	return &Notifier{
		service: svc,
		subs:    subs,
		queue:   make(chan notice, queueSize),
		logger:  logger,
	}
}

// Start begins the delivery loop.
func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		for {
			select {
			case <-ctx.Done():
				n.drain()
				return
			case nt := <-n.queue:
				n.deliver(nt)
			}
		}
	}()
}

// Stop delivers what is already queued and stops the loop.
func (n *Notifier) Stop() {
	n.mu.RLock()
	cancel := n.cancel
	done := n.done
	n.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (n *Notifier) drain() {
	for {
		select {
		case nt := <-n.queue:
			n.deliver(nt)
		default:
			return
		}
	}
}

// TaskApproved queues a notice for the assignee of an approved task. It
// returns false when push is disabled or the queue is full.
func (n *Notifier) TaskApproved(t model.Task) bool {
	if !n.service.Enabled() {
		return false
	}
	nt := notice{
		memberID: t.MemberID,
		payload: Payload{
			Title: "Chore approved",
			Body:  approvedBody(t),
			URL:   "/me/tasks",
			Tag:   fmt.Sprintf("task-%d", t.ID),
		},
	}
	select {
	case n.queue <- nt:
		return true
	default:
		n.logger.Warn("push queue full, notice dropped", "task_id", t.ID, "member_id", t.MemberID)
		return false
	}
}

func approvedBody(t model.Task) string {
	label := "cleaning"
	if t.Kind == model.KindMeal {
		label = "meal"
	}
	if t.Place == "" || t.Place == model.UnspecifiedPlace {
		return fmt.Sprintf("You are on %s duty today", label)
	}
	return fmt.Sprintf("You are on %s duty today: %s", label, t.Place)
}

// deliver sends to every device of the member. Expired subscriptions are
// removed.
func (n *Notifier) deliver(nt notice) {
	subs, err := n.subs.ListByMember(nt.memberID)
	if err != nil {
		n.logger.Error("list push subscriptions", "member_id", nt.memberID, "error", err)
		return
	}
	for _, sub := range subs {
		err := n.service.Send(&sub, nt.payload)
		switch {
		case errors.Is(err, ErrExpired):
			if err := n.subs.DeleteByEndpoint(sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "subscription_id", sub.ID, "error", err)
			}
		case err != nil:
			n.logger.Warn("send push", "subscription_id", sub.ID, "error", err)
		}
	}
}
