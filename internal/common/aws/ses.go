package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESClient mails stock alerts to a fixed recipient.
type SESClient struct {
	client sesAPI
	from   string
	to     string
}

func NewSESClient(ctx context.Context, region, from, to string) (*SESClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SESClient{client: ses.NewFromConfig(cfg), from: from, to: to}, nil
}

func newSESClientWithAPI(api sesAPI, from, to string) *SESClient {
	return &SESClient{client: api, from: from, to: to}
}

func (s *SESClient) Channel() string { return "email" }

// Send mails a plain-text message and returns the SES message id.
func (s *SESClient) Send(ctx context.Context, subject, body string) (string, error) {
	if s.from == "" || s.to == "" {
		return "", fmt.Errorf("%w: email sender or recipient is not configured", ErrNotConfigured)
	}
	out, err := s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(s.from),
		Destination: &types.Destination{ToAddresses: []string{s.to}},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("ses send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
