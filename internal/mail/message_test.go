package mail

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	netmail "net/mail"
	"strings"
	"testing"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotification() *models.Notification {
	return &models.Notification{
		Application: "app1",
		Subject:     "Welcome aboard",
		EventID:     "evt-1",
		From:        models.Profile{FirstName: "Support", LastName: "Team", Email: "support@example.org"},
		Contacts:    []models.Profile{{ID: "u1", FirstName: "Ada", Email: "ada@example.com"}},
		Cc:          []models.Profile{{FirstName: "Carl", LastName: "Copy", Email: "carl@example.com"}},
		Bcc:         []models.Profile{{FirstName: "Blind", LastName: "Copy", Email: "blind@example.com"}},
	}
}

func TestBuild_Addressing(t *testing.T) {
	msg, err := Build(newTestNotification(), "<p>hi</p>")
	require.NoError(t, err)

	assert.Equal(t, "Support Team <support@example.org>", msg.Header("From"))
	assert.Equal(t, "Ada  <ada@example.com>", msg.Header("To"))
	assert.Equal(t, "Carl Copy <carl@example.com>", msg.Header("Cc"))
	assert.Empty(t, msg.Header("Bcc"))

	require.Len(t, msg.Bcc, 1)
	assert.Equal(t, "blind@example.com", msg.Bcc[0].Email)
	assert.Equal(t, []string{"ada@example.com", "carl@example.com", "blind@example.com"}, msg.Recipients())

	assert.True(t, strings.HasSuffix(msg.ID, "@example.org>"))
	assert.True(t, strings.HasPrefix(msg.ID, "<"))
}

func TestBuild_WireFormat(t *testing.T) {
	n := newTestNotification()
	n.Subject = "Réinitialisation du mot de passe"
	html := "<p>Bonjour Zoé, voici un lien très long " + strings.Repeat("x", 120) + "</p>"

	msg, err := Build(n, html)
	require.NoError(t, err)

	raw := msg.Bytes()
	assert.NotContains(t, string(raw), "Bcc:")
	assert.NotContains(t, string(raw), "blind@example.com")

	parsed, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "text/html; charset=UTF-8", parsed.Header.Get("Content-Type"))
	assert.Equal(t, "quoted-printable", parsed.Header.Get("Content-Transfer-Encoding"))
	assert.Equal(t, "1.0", parsed.Header.Get("MIME-Version"))
	assert.Equal(t, msg.ID, parsed.Header.Get("Message-ID"))
	assert.True(t, strings.HasPrefix(parsed.Header.Get("Subject"), "=?utf-8?q?"))

	dec := new(netmail.AddressParser)
	to, err := dec.ParseList(parsed.Header.Get("To"))
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "ada@example.com", to[0].Address)

	body, err := io.ReadAll(quotedprintable.NewReader(parsed.Body))
	require.NoError(t, err)
	assert.Equal(t, html, string(body))
}

func TestBuild_LongHeadersAreFolded(t *testing.T) {
	n := newTestNotification()
	n.Subject = strings.Repeat("Rappel de votre rendez-vous médical ", 8)
	n.Cc = nil
	for i := 0; i < 40; i++ {
		n.Cc = append(n.Cc, models.Profile{
			FirstName: "Colleague",
			LastName:  fmt.Sprintf("%d", i),
			Email:     fmt.Sprintf("colleague%02d@example.com", i),
		})
	}

	msg, err := Build(n, "<p>hi</p>")
	require.NoError(t, err)
	raw := msg.Bytes()

	head := string(raw[:bytes.Index(raw, []byte("\r\n\r\n"))])
	for _, line := range strings.Split(head, "\r\n") {
		assert.LessOrEqual(t, len(line), 998, line)
		// an encoded-word may itself run to 75 octets and is never split
		if !strings.Contains(line, "=?utf-8?") {
			assert.LessOrEqual(t, len(line), 78, line)
		}
	}

	parsed, err := netmail.ReadMessage(bytes.NewReader(raw))
	require.NoError(t, err)

	cc, err := parsed.Header.AddressList("Cc")
	require.NoError(t, err)
	require.Len(t, cc, 40)
	assert.Equal(t, "colleague00@example.com", cc[0].Address)
	assert.Equal(t, "Colleague 39", cc[39].Name)

	subject, err := new(mime.WordDecoder).DecodeHeader(parsed.Header.Get("Subject"))
	require.NoError(t, err)
	assert.Equal(t, n.Subject, subject)
}

func TestBuild_SubjectLineBreaksAreFolded(t *testing.T) {
	n := newTestNotification()
	n.Subject = "Hello\r\nBcc: attacker@example.com"

	msg, err := Build(n, "<p/>")
	require.NoError(t, err)

	assert.Equal(t, "Hello Bcc: attacker@example.com", msg.Header("Subject"))
	assert.NotContains(t, string(msg.Bytes()), "\r\nBcc:")
}

func TestBuild_NoCcHeaderWhenEmpty(t *testing.T) {
	n := newTestNotification()
	n.Cc = nil

	msg, err := Build(n, "<p/>")
	require.NoError(t, err)
	assert.NotContains(t, string(msg.Bytes()), "\r\nCc:")
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(n *models.Notification)
	}{
		{
			name:   "contact without email",
			mutate: func(n *models.Notification) { n.Contacts[0].Email = "" },
		},
		{
			name:   "bad cc",
			mutate: func(n *models.Notification) { n.Cc[0].Email = "nope" },
		},
		{
			name:   "bad bcc",
			mutate: func(n *models.Notification) { n.Bcc[0].Email = "nope" },
		},
		{
			name:   "bad sender",
			mutate: func(n *models.Notification) { n.From.Email = "" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := newTestNotification()
			tt.mutate(n)

			msg, err := Build(n, "<p/>")
			assert.Nil(t, msg)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeAddressEncodingFailed))
		})
	}
}
