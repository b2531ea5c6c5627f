// Package ses implements a Provider that sends mail via AWS SES v2.
package ses

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/shineum/mailbatch/internal/email"
	"github.com/shineum/mailbatch/internal/provider"
)

// Config holds the configuration for creating a Provider.
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Sender          string
}

// SendEmailAPI is the subset of the SES v2 client used by Provider.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Provider sends mail through the SES v2 SendEmail operation.
type Provider struct {
	sender string
	client SendEmailAPI
}

// New creates a Provider. Static credentials are used when both keys are
// set; otherwise the default AWS credential chain applies.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewWithClient(cfg.Sender, sesv2.NewFromConfig(awsCfg)), nil
}

// NewWithClient creates a Provider with a custom client, used for testing.
func NewWithClient(sender string, client SendEmailAPI) *Provider {
	return &Provider{
		sender: sender,
		client: client,
	}
}

// Send delivers msg. A record with an attachment is sent as raw MIME,
// anything else as SES simple content.
func (s *Provider) Send(ctx context.Context, msg *email.Email) error {
	att, err := email.LoadAttachment(msg)
	if err != nil {
		return err
	}

	var input *sesv2.SendEmailInput
	if att != nil {
		raw, err := email.BuildMIME(s.sender, msg, att, time.Now())
		if err != nil {
			return fmt.Errorf("failed to build raw message: %w", err)
		}
		input = &sesv2.SendEmailInput{
			Content: &types.EmailContent{
				Raw: &types.RawMessage{Data: raw},
			},
		}
	} else {
		input = buildSimpleInput(s.sender, msg)
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("%w: SES SendEmail: %v", provider.ErrUnavailable, err)
	}

	return nil
}

// Name returns the provider name.
func (s *Provider) Name() string {
	return "ses"
}

func buildSimpleInput(sender string, msg *email.Email) *sesv2.SendEmailInput {
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(sender),
		Destination: &types.Destination{
			ToAddresses: email.SplitAddresses(msg.To),
			CcAddresses: email.SplitAddresses(msg.Cc),
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(msg.Subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Text: &types.Content{
						Data:    aws.String(msg.Body),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
}
