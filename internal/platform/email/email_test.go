package email

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/gomail.v2"

	"staffdesk/internal/platform/config"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func TestNewReturnsNoopWhenDisabled(t *testing.T) {
	mailer := New(config.Defaults(), zaptest.NewLogger(t))
	_, ok := mailer.(noopMailer)
	assert.True(t, ok)
	assert.NoError(t, mailer.Send(context.Background(), Message{To: "a@example.com"}))
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	d := &fakeDialer{}
	mailer := &smtpMailer{dialer: d, from: "hr@example.com", logger: zaptest.NewLogger(t)}

	err := mailer.Send(context.Background(), Message{
		To:      "jane@example.com",
		Subject: "Your vacation request was approved",
		Body:    "Enjoy.",
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"hr@example.com"}, d.sent[0].GetHeader("From"))
	assert.Equal(t, []string{"jane@example.com"}, d.sent[0].GetHeader("To"))
	assert.Equal(t, []string{"Your vacation request was approved"}, d.sent[0].GetHeader("Subject"))
}

func TestSMTPMailerSkipsEmptyRecipient(t *testing.T) {
	d := &fakeDialer{}
	mailer := &smtpMailer{dialer: d, from: "hr@example.com", logger: zaptest.NewLogger(t)}
	require.NoError(t, mailer.Send(context.Background(), Message{To: " "}))
	assert.Empty(t, d.sent)
}

func TestSMTPMailerPropagatesDialError(t *testing.T) {
	d := &fakeDialer{err: errors.New("connection refused")}
	mailer := &smtpMailer{dialer: d, from: "hr@example.com", logger: zaptest.NewLogger(t)}
	assert.Error(t, mailer.Send(context.Background(), Message{To: "jane@example.com"}))
}
