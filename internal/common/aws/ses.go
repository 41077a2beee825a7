package aws

import (
	"context"
	"fmt"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/common/logger"
	"notification-workers/internal/mail"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

const providerSES = "SES"

// RawEmailAPI is the slice of the SES client used for delivery.
type RawEmailAPI interface {
	SendRawEmail(ctx context.Context, params *ses.SendRawEmailInput, optFns ...func(*ses.Options)) (*ses.SendRawEmailOutput, error)
}

// SESSender submits assembled MIME messages through SendRawEmail so the
// headers built by the mail package reach recipients unchanged.
type SESSender struct {
	client           RawEmailAPI
	configurationSet string
	logger           logger.Logger
}

func NewSESClient(ctx context.Context, region string) (*ses.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return ses.NewFromConfig(cfg), nil
}

func NewSESSender(client RawEmailAPI, configurationSet string, log logger.Logger) *SESSender {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &SESSender{client: client, configurationSet: configurationSet, logger: log}
}

func (s *SESSender) Send(ctx context.Context, msg *mail.Message) error {
	input := &ses.SendRawEmailInput{
		Source:       awssdk.String(msg.From.Email),
		Destinations: msg.Recipients(),
		RawMessage:   &types.RawMessage{Data: msg.Bytes()},
	}
	if s.configurationSet != "" {
		input.ConfigurationSetName = awssdk.String(s.configurationSet)
	}

	out, err := s.client.SendRawEmail(ctx, input)
	if err != nil {
		return errors.NewMailSendFailedError(providerSES, err)
	}

	s.logger.Debug("Email submitted", map[string]interface{}{
		"messageId":    msg.ID,
		"sesMessageId": awssdk.ToString(out.MessageId),
		"recipients":   len(input.Destinations),
	})
	return nil
}
