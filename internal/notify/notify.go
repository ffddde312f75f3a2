// Package notify delivers workflow notifications after the state change that
// caused them has committed. Delivery is best effort: a failure is logged and
// counted, and never reaches the caller that triggered it.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/metrics"
)

// Contact identifies the recipient of a notification.
type Contact struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
}

// ContactOf builds a Contact from a user projection. u may be nil when the
// account is unknown, in which case only the id is filled.
func ContactOf(userID string, u *domain.User) Contact {
	c := Contact{UserID: userID, Name: u.DisplayName(userID)}
	if u != nil {
		c.Email = u.Email
		c.Phone = u.Phone
	}
	return c
}

// DecisionNotice tells a student their application was decided.
type DecisionNotice struct {
	Student       Contact                  `json:"student"`
	ApplicationID string                   `json:"applicationId"`
	JobID         string                   `json:"jobId"`
	JobTitle      string                   `json:"jobTitle"`
	Decision      domain.ApplicationStatus `json:"decision"`
	ProviderName  string                   `json:"providerName"`
}

// NewApplicationNotice tells a provider a student applied to one of their jobs.
type NewApplicationNotice struct {
	Provider      Contact         `json:"provider"`
	ApplicationID string          `json:"applicationId"`
	JobID         string          `json:"jobId"`
	JobTitle      string          `json:"jobTitle"`
	StudentName   string          `json:"studentName"`
	Metadata      domain.Metadata `json:"metadata"`
}

// Notifier delivers notices to some channel.
type Notifier interface {
	NotifyApplicationDecision(ctx context.Context, n DecisionNotice) error
	NotifyNewApplication(ctx context.Context, n NewApplicationNotice) error
}

// Nop discards every notice.
type Nop struct{}

func (Nop) NotifyApplicationDecision(context.Context, DecisionNotice) error    { return nil }
func (Nop) NotifyNewApplication(context.Context, NewApplicationNotice) error { return nil }

// Multi fans a notice out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) NotifyApplicationDecision(ctx context.Context, n DecisionNotice) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.NotifyApplicationDecision(ctx, n))
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyNewApplication(ctx context.Context, n NewApplicationNotice) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.NotifyNewApplication(ctx, n))
	}
	return errors.Join(errs...)
}

// ─── Dispatcher ──────────────────────────────────────────────────────────────

// Dispatcher runs each delivery on its own goroutine with its own deadline,
// detached from the request that triggered it. A nil Dispatcher drops
// everything.
type Dispatcher struct {
	n       Notifier
	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// NewDispatcher wraps n. A nil n behaves like Nop.
func NewDispatcher(n Notifier, timeout time.Duration, log *slog.Logger, m *metrics.Metrics) *Dispatcher {
	if n == nil {
		n = Nop{}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{n: n, timeout: timeout, log: log, metrics: m}
}

// ApplicationDecided schedules a decision notice.
func (d *Dispatcher) ApplicationDecided(n DecisionNotice) {
	d.dispatch("decision", func(ctx context.Context) error {
		return d.n.NotifyApplicationDecision(ctx, n)
	}, "applicationId", n.ApplicationID, "decision", n.Decision)
}

// ApplicationSubmitted schedules a new-application notice.
func (d *Dispatcher) ApplicationSubmitted(n NewApplicationNotice) {
	d.dispatch("submitted", func(ctx context.Context) error {
		return d.n.NotifyNewApplication(ctx, n)
	}, "applicationId", n.ApplicationID, "jobId", n.JobID)
}

// Wait blocks until every scheduled delivery has finished.
func (d *Dispatcher) Wait() {
	if d != nil {
		d.wg.Wait()
	}
}

func (d *Dispatcher) dispatch(kind string, send func(context.Context) error, attrs ...any) {
	if d == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		err := send(ctx)
		d.metrics.Notification(kind, err)
		if err != nil {
			d.log.Warn("notification failed", append([]any{"kind", kind, "err", err}, attrs...)...)
		}
	}()
}
