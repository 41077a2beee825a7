package render

import (
	"strings"

	"notification-workers/internal/models"
)

const lineBreak = "<br />"

type attribute struct {
	name  string
	value func(p models.Profile) string
}

// substitutable lists every recipient attribute a {{name}} placeholder may
// reference. Anything else is left in place.
var substitutable = []attribute{
	{"id", func(p models.Profile) string { return p.ID }},
	{"firstName", func(p models.Profile) string { return p.FirstName }},
	{"lastName", func(p models.Profile) string { return p.LastName }},
	{"civility", func(p models.Profile) string { return p.Civility }},
	{"email", func(p models.Profile) string { return p.Email }},
	{"phone", func(p models.Profile) string {
		if p.Phone == "" {
			return ""
		}
		return "00" + p.PhoneIndex + p.Phone
	}},
	{"phoneIndex", func(p models.Profile) string { return p.PhoneIndex }},
}

// Interpolate replaces {{attribute}} placeholders in message with the
// recipient's non-empty attributes, then turns each literal backslash-n pair
// into an HTML line break. Real newlines are left alone.
func Interpolate(message string, p models.Profile) string {
	out := message
	for _, attr := range substitutable {
		v := attr.value(p)
		if v == "" {
			continue
		}
		out = strings.ReplaceAll(out, "{{"+attr.name+"}}", v)
	}
	return strings.ReplaceAll(out, `\n`, lineBreak)
}

// RecipientKey is the model entry InterpolateRefs points placeholders at.
// It overrides any parameter of the same name.
const RecipientKey = "inlineRecipient"

// InterpolateRefs is Interpolate for a message that is still source: each
// {{attribute}} placeholder with a non-empty value for p is rewritten to
// {{inlineRecipient.attribute}} instead of the value itself, and the values
// are returned for binding under RecipientKey. Recipient data is therefore
// never parsed as Markdown or engine syntax. Placeholders left in place and
// the backslash-n rule behave as in Interpolate.
func InterpolateRefs(message string, p models.Profile) (string, map[string]interface{}) {
	out := message
	values := make(map[string]interface{}, len(substitutable))
	for _, attr := range substitutable {
		v := attr.value(p)
		if v == "" {
			continue
		}
		values[attr.name] = strings.ReplaceAll(v, `\n`, lineBreak)
		out = strings.ReplaceAll(out, "{{"+attr.name+"}}", "{{"+RecipientKey+"."+attr.name+"}}")
	}
	return strings.ReplaceAll(out, `\n`, lineBreak), values
}
