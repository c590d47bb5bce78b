package notification_test

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"sync"
	"testing"
	"time"

	"github.com/bruss-it/overtime-manager/backend/internal/domain"
	"github.com/bruss-it/overtime-manager/backend/internal/notification"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

func TestRender(t *testing.T) {
	data := domain.OvertimeMailData{
		RecipientName: "Anna",
		InternalID:    "12/26",
		Hours:         4,
		WorkDate:      "2026-10-17",
		ActorName:     "Piotr",
		Reason:        "<script>alert(1)</script>",
		Link:          "http://intranet/overtime/1",
	}

	t.Run("polish", func(t *testing.T) {
		r, err := notification.Render(domain.MailOvertimeRejected, domain.LanguagePolish, data)
		require.NoError(t, err)
		assert.Equal(t, "Zlecenie nadgodzin 12/26 zostało odrzucone", r.Subject)
		assert.Contains(t, r.HTMLBody, "Dzień dobry Anna")
		assert.NotContains(t, r.HTMLBody, "<script>")
	})

	t.Run("english", func(t *testing.T) {
		r, err := notification.Render(domain.MailOvertimeApproved, domain.LanguageEnglish, data)
		require.NoError(t, err)
		assert.Equal(t, "Overtime request 12/26 approved", r.Subject)
		assert.Contains(t, r.HTMLBody, "approved by Piotr")
	})

	t.Run("unknown language falls back to english", func(t *testing.T) {
		r, err := notification.Render(domain.MailOvertimePending, domain.Language("de"), data)
		require.NoError(t, err)
		assert.Equal(t, "Overtime request 12/26 awaits your approval", r.Subject)
	})

	t.Run("unknown kind", func(t *testing.T) {
		_, err := notification.Render(domain.MailKind("nope"), domain.LanguageEnglish, data)
		assert.Error(t, err)
	})
}

func TestRender_IsPure(t *testing.T) {
	data := domain.CreateUserMailData{FullName: "Jan", Username: "jkowalski", Password: "secret"}
	a, err := notification.Render(domain.MailCreateUser, domain.LanguagePolish, data)
	require.NoError(t, err)
	b, err := notification.Render(domain.MailCreateUser, domain.LanguagePolish, data)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []amqp.Publishing
	err       error
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, msg)
	return nil
}

func TestDispatcher_Notify(t *testing.T) {
	pub := &fakePublisher{}
	d := notification.NewDispatcher(pub, "email_queue", time.Second, nil)

	manager := &domain.User{Email: "boss@bruss.local", Roles: []domain.Role{domain.RoleTeamManager}}
	worker := &domain.User{Email: "worker@bruss.local", Roles: []domain.Role{domain.RoleEmployee}}

	d.Notify(domain.MailOvertimePending, manager, domain.OvertimeMailData{InternalID: "1/26"})
	d.Notify(domain.MailOvertimeApproved, worker, domain.OvertimeMailData{InternalID: "1/26"})
	d.Notify(domain.MailOvertimeApproved, &domain.User{}, domain.OvertimeMailData{})
	d.Wait()

	require.Len(t, pub.published, 2)

	langs := map[string]domain.Language{}
	for _, p := range pub.published {
		var m domain.MailMessage
		require.NoError(t, json.Unmarshal(p.Body, &m))
		langs[m.To] = m.Lang
	}
	assert.Equal(t, domain.LanguageEnglish, langs["boss@bruss.local"])
	assert.Equal(t, domain.LanguagePolish, langs["worker@bruss.local"])
}

func TestDispatcher_NotifySwallowsErrors(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	d := notification.NewDispatcher(pub, "email_queue", time.Second, nil)

	assert.NotPanics(t, func() {
		d.Notify(domain.MailOvertimeApproved, &domain.User{Email: "a@b.c"}, domain.OvertimeMailData{})
		d.Wait()
	})
	assert.Error(t, d.Publish(domain.MailMessage{Type: domain.MailOvertimeApproved, To: "a@b.c"}))
}

type fakeAcknowledger struct {
	acked     bool
	nacked    bool
	requeued  bool
	nackCount int
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acked = true
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacked = true
	f.requeued = requeue
	f.nackCount++
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

type fakeSender struct {
	sent []*mail.Msg
	err  error
}

func (f *fakeSender) DialAndSend(messages ...*mail.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, messages...)
	return nil
}

func queued(t *testing.T, m domain.MailMessage) []byte {
	t.Helper()
	body, err := json.Marshal(m)
	require.NoError(t, err)
	return body
}

func TestDeliverer_Handle(t *testing.T) {
	body := queued(t, domain.MailMessage{
		Type: domain.MailOvertimeApproved,
		To:   "worker@bruss.local",
		Lang: domain.LanguagePolish,
		Data: domain.OvertimeMailData{RecipientName: "Anna", InternalID: "3/26", Hours: 2, ActorName: "Piotr"},
	})

	t.Run("sent and acked", func(t *testing.T) {
		sender := &fakeSender{}
		ack := &fakeAcknowledger{}
		d := notification.NewDeliverer(sender, "noreply@bruss.local", nil)

		d.Handle(amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body})

		assert.True(t, ack.acked)
		require.Len(t, sender.sent, 1)
		subject := sender.sent[0].GetGenHeader(mail.HeaderSubject)
		require.Len(t, subject, 1)
		// 非 ASCII 主题会按 RFC 2047 编码
		decoded, err := new(mime.WordDecoder).DecodeHeader(subject[0])
		require.NoError(t, err)
		assert.Equal(t, "Zlecenie nadgodzin 3/26 zostało zatwierdzone", decoded)
	})

	t.Run("smtp failure requeues", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("smtp down")}
		ack := &fakeAcknowledger{}
		d := notification.NewDeliverer(sender, "noreply@bruss.local", nil)

		d.Handle(amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body})

		assert.True(t, ack.nacked)
		assert.True(t, ack.requeued)
	})

	t.Run("malformed message is dropped", func(t *testing.T) {
		sender := &fakeSender{}
		ack := &fakeAcknowledger{}
		d := notification.NewDeliverer(sender, "noreply@bruss.local", nil)

		d.Handle(amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("{not json")})

		assert.True(t, ack.nacked)
		assert.False(t, ack.requeued)
		assert.Empty(t, sender.sent)
	})
}
