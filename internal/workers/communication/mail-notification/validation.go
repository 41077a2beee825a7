package mailnotification

import "notification-workers/internal/common/validation"

// InputVariables are fetched with each job; everything else in the process
// scope is left on the broker.
var InputVariables = []string{
	"application", "template", "subject", "eventId", "message", "channels",
	"from", "contacts", "cc", "bcc", "cci", "params",
}

func profileProperty(description string) validation.Property {
	return validation.Property{
		Type:        "object",
		Description: description,
		Properties: map[string]validation.Property{
			"id":         {Type: "string", Nullable: true},
			"firstName":  {Type: "string", Nullable: true},
			"lastName":   {Type: "string", Nullable: true},
			"civility":   {Type: "string", Nullable: true},
			"email":      {Type: "string", Nullable: true},
			"phone":      {Type: "string", Nullable: true},
			"phoneIndex": {Type: "string", Nullable: true},
		},
	}
}

func profileList(description string) validation.Property {
	item := profileProperty(description)
	return validation.Property{
		Type:        "array",
		Description: description,
		Nullable:    true,
		Items:       &item,
	}
}

func GetInputSchema() validation.JSONSchema {
	contacts := profileList("Recipients, one email each")
	contacts.Nullable = false
	contacts.MinItems = validation.IntPtr(1)

	from := profileProperty("Sender; falls back to the configured default")
	from.Nullable = true

	return validation.JSONSchema{
		Type:     "object",
		Required: []string{"subject", "contacts"},
		Properties: map[string]validation.Property{
			"application": {
				Type:        "string",
				Description: "Owning application, scopes template lookup",
				Nullable:    true,
			},
			"template": {
				Type:        "string",
				Description: "Stored template name; blank selects the inline message",
				Nullable:    true,
			},
			"subject": {
				Type:        "string",
				Description: "Subject line",
			},
			"eventId": {
				Type:        "string",
				Description: "Correlation id copied to every status",
				Nullable:    true,
			},
			"message": {
				Type:        "string",
				Description: "Inline Markdown body",
				Nullable:    true,
			},
			"channels": {
				Type:        "array",
				Description: "Requested channels; empty means MAIL",
				Nullable:    true,
				Items: &validation.Property{
					Type: "string",
					Enum: []string{"MAIL", "SMS", "WHATSAPP"},
				},
			},
			"from":     from,
			"contacts": contacts,
			"cc":       profileList("Copied on every message"),
			"bcc":      profileList("Blind-copied on every message"),
			"cci":      profileList("Legacy alias of bcc"),
			"params": {
				Type:        "object",
				Description: "Template model",
				Nullable:    true,
			},
		},
		AdditionalProperties: true,
	}
}
