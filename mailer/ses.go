package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

const charset = "UTF-8"

// SESClient is the subset of the SESv2 client used by SES.
type SESClient interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig holds the credentials and sender used by NewSES.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	From            string
}

// SES sends email through Amazon SES.
type SES struct {
	client SESClient
	from   string
}

// NewSES builds an SES transport from static credentials.
func NewSES(ctx context.Context, cfg SESConfig) (*SES, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewSESWithClient(sesv2.NewFromConfig(awsCfg), cfg.From), nil
}

// NewSESWithClient wraps an existing client. from is used when a message
// has no sender of its own.
func NewSESWithClient(client SESClient, from string) *SES {
	return &SES{client: client, from: from}
}

// Send delivers msg. Any provider error is wrapped with ErrDelivery.
func (s *SES) Send(ctx context.Context, msg Email) error {
	from := msg.From
	if from == "" {
		from = s.from
	}
	body := &types.Body{
		Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String(charset)},
	}
	if msg.Text != "" {
		body.Text = &types.Content{Data: aws.String(msg.Text), Charset: aws.String(charset)}
	}
	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String(charset)},
				Body:    body,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDelivery, msg.To, err)
	}
	return nil
}
