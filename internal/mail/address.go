package mail

import (
	"fmt"
	"mime"
	netmail "net/mail"
	"strings"
	"unicode/utf8"

	"notification-workers/internal/common/errors"
)

// Address is a display name plus mailbox, formatted for RFC 2822 headers.
type Address struct {
	Name  string
	Email string
}

// NewAddress builds an address whose display name is firstName + " " +
// lastName, used verbatim even when either part is empty.
func NewAddress(firstName, lastName, email string) (*Address, error) {
	if strings.TrimSpace(email) == "" {
		return nil, errors.NewAddressEncodingFailedError(email, fmt.Errorf("empty email address"))
	}

	parsed, err := netmail.ParseAddress(email)
	if err != nil {
		return nil, errors.NewAddressEncodingFailedError(email, err)
	}
	if parsed.Name != "" || parsed.Address != email {
		return nil, errors.NewAddressEncodingFailedError(email, fmt.Errorf("expected a bare mailbox"))
	}

	name := firstName + " " + lastName
	if !utf8.ValidString(name) {
		return nil, errors.NewAddressEncodingFailedError(email, fmt.Errorf("display name is not valid UTF-8"))
	}

	return &Address{Name: name, Email: email}, nil
}

// String renders the header form. ASCII names without specials are kept
// verbatim, ASCII names with specials are quoted, anything else becomes an
// RFC 2047 encoded-word.
func (a *Address) String() string {
	mailbox := "<" + a.Email + ">"
	if a.Name == "" {
		return mailbox
	}
	return encodeDisplayName(a.Name) + " " + mailbox
}

const rfc5322Specials = `()<>[]:;@\,."`

// encoded-words inside a phrase may not carry these in Q form
const qUnsafeInPhrase = "\"#$%&'(),.:;<>@[]^`{|}~"

func encodeDisplayName(name string) string {
	ascii := true
	specials := false
	for _, r := range name {
		if r >= utf8.RuneSelf || (r < 0x20 && r != '\t') || r == 0x7f {
			ascii = false
			break
		}
		if strings.ContainsRune(rfc5322Specials, r) {
			specials = true
		}
	}

	switch {
	case ascii && !specials:
		return name
	case ascii:
		return quoteString(name)
	case strings.ContainsAny(name, qUnsafeInPhrase):
		return mime.BEncoding.Encode("utf-8", name)
	default:
		return mime.QEncoding.Encode("utf-8", name)
	}
}

func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
	return b.String()
}
