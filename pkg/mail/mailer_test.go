package mail

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDisabledMailerShortCircuits(t *testing.T) {
	mailer := NewSMTPMailer(SMTPSettings{Enabled: false})
	err := mailer.Send(context.Background(), Message{To: []string{"a@b.com"}})
	require.ErrorIs(t, err, ErrSMTPDisabled)
}

func TestSendRequiresSenderAndRecipients(t *testing.T) {
	mailer := NewSMTPMailer(SMTPSettings{Enabled: true, Host: "localhost", Port: 2525})

	err := mailer.Send(context.Background(), Message{To: []string{"a@b.com"}})
	require.Error(t, err) // no sender configured

	err = mailer.Send(context.Background(), Message{From: "noreply@example.com"})
	require.Error(t, err) // no recipients
}

func TestBuildPayloadIncludesHeaders(t *testing.T) {
	payload := string(buildPayload("noreply@example.com", Message{
		To:      []string{"a@b.com", "c@d.com"},
		Subject: "Confirm your account",
		Body:    "hello",
	}))

	require.Contains(t, payload, "From: noreply@example.com\r\n")
	require.Contains(t, payload, "To: a@b.com, c@d.com\r\n")
	require.Contains(t, payload, "Subject: Confirm your account\r\n")
	require.Contains(t, payload, "\r\n\r\nhello")
}
