package mail

import (
	"bytes"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"strings"
	"time"

	"notification-workers/internal/models"

	"github.com/google/uuid"
)

const htmlContentType = "text/html; charset=UTF-8"

// Message is a fully addressed single-part HTML email.
type Message struct {
	ID      string
	Date    time.Time
	From    *Address
	To      []*Address
	Cc      []*Address
	Bcc     []*Address
	Subject string
	HTML    string
}

// Build assembles the message for n. Every contact, cc and bcc profile and
// the sender go through NewAddress; the first failure aborts the build.
func Build(n *models.Notification, html string) (*Message, error) {
	from, err := NewAddress(n.From.FirstName, n.From.LastName, n.From.Email)
	if err != nil {
		return nil, err
	}

	to, err := mapProfiles(n.Contacts)
	if err != nil {
		return nil, err
	}
	cc, err := mapProfiles(n.Cc)
	if err != nil {
		return nil, err
	}
	bcc, err := mapProfiles(n.Bcc)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:      newMessageID(from.Email),
		Date:    time.Now(),
		From:    from,
		To:      to,
		Cc:      cc,
		Bcc:     bcc,
		Subject: n.Subject,
		HTML:    html,
	}, nil
}

func mapProfiles(profiles []models.Profile) ([]*Address, error) {
	out := make([]*Address, 0, len(profiles))
	for _, p := range profiles {
		addr, err := NewAddress(p.FirstName, p.LastName, p.Email)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func newMessageID(fromEmail string) string {
	domain := "localhost"
	if at := strings.LastIndexByte(fromEmail, '@'); at >= 0 && at < len(fromEmail)-1 {
		domain = fromEmail[at+1:]
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// Recipients returns the SMTP envelope recipients, Bcc included.
func (m *Message) Recipients() []string {
	out := make([]string, 0, len(m.To)+len(m.Cc)+len(m.Bcc))
	for _, group := range [][]*Address{m.To, m.Cc, m.Bcc} {
		for _, a := range group {
			out = append(out, a.Email)
		}
	}
	return out
}

// Header returns the value that would be written for name, or "" when the
// header is not emitted. Bcc is never emitted.
func (m *Message) Header(name string) string {
	switch strings.ToLower(name) {
	case "from":
		return m.From.String()
	case "to":
		return joinAddresses(m.To)
	case "cc":
		return joinAddresses(m.Cc)
	case "subject":
		return encodeHeaderText(m.Subject)
	case "message-id":
		return m.ID
	case "content-type":
		return htmlContentType
	}
	return ""
}

// Bytes renders the wire form with CRLF line endings and a quoted-printable body.
// Address lists and the subject are folded so header lines stay near 78
// octets and well under the 998 limit.
func (m *Message) Bytes() []byte {
	var buf bytes.Buffer

	writeHeader(&buf, "Message-ID", m.ID)
	writeHeader(&buf, "Date", m.Date.Format(time.RFC1123Z))
	writeFoldedHeader(&buf, "From", []string{m.From.String()}, "")
	writeFoldedHeader(&buf, "To", addressTokens(m.To), ",")
	if len(m.Cc) > 0 {
		writeFoldedHeader(&buf, "Cc", addressTokens(m.Cc), ",")
	}
	writeFoldedHeader(&buf, "Subject", strings.Split(encodeHeaderText(m.Subject), " "), "")
	writeHeader(&buf, "MIME-Version", "1.0")
	writeHeader(&buf, "Content-Type", htmlContentType)
	writeHeader(&buf, "Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")

	qp := quotedprintable.NewWriter(&buf)
	_, _ = qp.Write([]byte(m.HTML))
	_ = qp.Close()

	return buf.Bytes()
}

// foldWidth is the recommended header line length of RFC 5322 section 2.1.1.
const foldWidth = 78

func writeHeader(buf *bytes.Buffer, name, value string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// writeFoldedHeader joins tokens with delim followed by a single space, and
// replaces that space with CRLF+space whenever the next token would push the
// line past foldWidth. Unfolding gives back the unfolded value. A token is
// never split.
func writeFoldedHeader(buf *bytes.Buffer, name string, tokens []string, delim string) {
	buf.WriteString(name)
	buf.WriteString(": ")
	line := len(name) + 2

	for i, tok := range tokens {
		if i > 0 {
			buf.WriteString(delim)
			line += len(delim)
			if line+1+len(tok) > foldWidth {
				buf.WriteString("\r\n ")
				line = 1
			} else {
				buf.WriteByte(' ')
				line++
			}
		}
		buf.WriteString(tok)
		line += len(tok)
	}
	buf.WriteString("\r\n")
}

func addressTokens(addrs []*Address) []string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return parts
}

func joinAddresses(addrs []*Address) string {
	return strings.Join(addressTokens(addrs), ", ")
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func encodeHeaderText(s string) string {
	return mime.QEncoding.Encode("utf-8", headerBreaks.Replace(s))
}
