package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/workforce-service/internal/domain"
	"jobmate/workforce-service/internal/metrics"
)

// recorder captures notices and optionally fails.
type recorder struct {
	mu        sync.Mutex
	decisions []DecisionNotice
	submitted []NewApplicationNotice
	err       error
}

func (r *recorder) NotifyApplicationDecision(_ context.Context, n DecisionNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decisions = append(r.decisions, n)
	return r.err
}

func (r *recorder) NotifyNewApplication(_ context.Context, n NewApplicationNotice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submitted = append(r.submitted, n)
	return r.err
}

func TestDispatcher_DeliversAsync(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher(rec, time.Second, nil, nil)

	d.ApplicationDecided(DecisionNotice{ApplicationID: "app-1", Decision: domain.ApplicationApproved})
	d.ApplicationSubmitted(NewApplicationNotice{ApplicationID: "app-2"})
	d.Wait()

	require.Len(t, rec.decisions, 1)
	require.Len(t, rec.submitted, 1)
	assert.Equal(t, "app-1", rec.decisions[0].ApplicationID)
}

func TestDispatcher_FailureIsLoggedNotReturned(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	rec := &recorder{err: errors.New("smtp down")}
	d := NewDispatcher(rec, time.Second, log, metrics.New())

	d.ApplicationDecided(DecisionNotice{ApplicationID: "app-1", Decision: domain.ApplicationRejected})
	d.Wait()

	assert.Contains(t, buf.String(), "notification failed")
	assert.Contains(t, buf.String(), "smtp down")
}

func TestMulti_JoinsErrors(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("boom")}

	err := Multi{ok, bad}.NotifyNewApplication(context.Background(), NewApplicationNotice{JobTitle: "Barista"})
	assert.ErrorContains(t, err, "boom")
	assert.Len(t, ok.submitted, 1, "a failing sink must not stop the others")
}

func TestContactOf_UnknownUser(t *testing.T) {
	c := ContactOf("stu-1", nil)
	assert.Equal(t, Contact{UserID: "stu-1", Name: "stu-1"}, c)

	c = ContactOf("stu-1", &domain.User{ID: "stu-1", FullName: "Lan", Email: "lan@example.com"})
	assert.Equal(t, "Lan", c.Name)
	assert.Equal(t, "lan@example.com", c.Email)
}

func TestRelay_HandleDecodesEvents(t *testing.T) {
	rec := &recorder{}
	r := NewRelay(nil, rec, nil)

	body, err := json.Marshal(event[any]{Type: ChannelApplicationDecided, Payload: DecisionNotice{
		ApplicationID: "app-1", JobTitle: "Barista", Decision: domain.ApplicationApproved,
	}})
	require.NoError(t, err)
	require.NoError(t, r.Handle(context.Background(), ChannelApplicationDecided, body))

	require.Len(t, rec.decisions, 1)
	assert.Equal(t, domain.ApplicationApproved, rec.decisions[0].Decision)
	assert.Equal(t, "Barista", rec.decisions[0].JobTitle)

	assert.Error(t, r.Handle(context.Background(), "OTHER", body))
	assert.Error(t, r.Handle(context.Background(), ChannelApplicationSubmitted, []byte("{")))
}

type fakeSender struct{ sent []tgbotapi.MessageConfig }

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func TestTelegramSink_EscapesHTML(t *testing.T) {
	fs := &fakeSender{}
	sink := &TelegramSink{bot: fs, chatID: 42}

	err := sink.NotifyApplicationDecision(context.Background(), DecisionNotice{
		Student:      Contact{Name: "<Lan>"},
		JobTitle:     "Barista & Cashier",
		Decision:     domain.ApplicationApproved,
		ProviderName: "Cafe",
	})
	require.NoError(t, err)
	require.Len(t, fs.sent, 1)

	msg := fs.sent[0]
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "&lt;Lan&gt;")
	assert.Contains(t, msg.Text, "Barista &amp; Cashier")
}
