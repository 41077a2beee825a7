package mail

import (
	netmail "net/mail"
	"strings"
	"testing"

	"notification-workers/internal/common/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddress_HeaderForm(t *testing.T) {
	tests := []struct {
		name      string
		firstName string
		lastName  string
		email     string
		want      string
	}{
		{
			name:      "empty last name keeps trailing space",
			firstName: "Ada",
			email:     "a@x",
			want:      "Ada  <a@x>",
		},
		{
			name:      "plain ascii",
			firstName: "Jean",
			lastName:  "Dupont",
			email:     "jean@example.com",
			want:      "Jean Dupont <jean@example.com>",
		},
		{
			name:      "ascii with specials is quoted",
			firstName: "Doe,",
			lastName:  "John",
			email:     "john@example.com",
			want:      `"Doe, John" <john@example.com>`,
		},
		{
			name:      "embedded quote is escaped",
			firstName: `Al "Bird"`,
			lastName:  "Parker",
			email:     "al@example.com",
			want:      `"Al \"Bird\" Parker" <al@example.com>`,
		},
		{
			name:  "no name parts at all",
			email: "nobody@example.com",
			want:  "  <nobody@example.com>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := NewAddress(tt.firstName, tt.lastName, tt.email)
			require.NoError(t, err)
			assert.Equal(t, tt.want, addr.String())
		})
	}
}

func TestNewAddress_NonASCIIUsesEncodedWord(t *testing.T) {
	tests := []struct {
		name      string
		firstName string
		lastName  string
		prefix    string
	}{
		{name: "q form", firstName: "Zoé", lastName: "Durand", prefix: "=?utf-8?q?"},
		{name: "b form when phrase specials present", firstName: "Zoé", lastName: "(admin)", prefix: "=?utf-8?b?"},
		{name: "cjk", firstName: "山田", lastName: "太郎", prefix: "=?utf-8?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := NewAddress(tt.firstName, tt.lastName, "zoe@example.com")
			require.NoError(t, err)

			header := addr.String()
			assert.True(t, strings.HasPrefix(header, tt.prefix), "header %q", header)
			assert.True(t, strings.HasSuffix(header, " <zoe@example.com>"))

			parsed, err := netmail.ParseAddress(header)
			require.NoError(t, err)
			assert.Equal(t, tt.firstName+" "+tt.lastName, parsed.Name)
			assert.Equal(t, "zoe@example.com", parsed.Address)
		})
	}
}

func TestNewAddress_Errors(t *testing.T) {
	tests := []struct {
		name  string
		email string
	}{
		{name: "empty", email: ""},
		{name: "blank", email: "   "},
		{name: "no at sign", email: "not-an-email"},
		{name: "display name smuggled in", email: "Bob <bob@example.com>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := NewAddress("Bob", "Smith", tt.email)
			assert.Nil(t, addr)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.ErrCodeAddressEncodingFailed))
		})
	}
}

func TestNewAddress_InvalidUTF8Name(t *testing.T) {
	_, err := NewAddress("\xff\xfe", "", "a@example.com")
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeAddressEncodingFailed))
}
