package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient publishes stock alerts to a topic.
type SNSClient struct {
	client   snsAPI
	topicARN string
}

func NewSNSClient(ctx context.Context, region, topicARN string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, err
	}
	return &SNSClient{client: sns.NewFromConfig(cfg), topicARN: topicARN}, nil
}

func newSNSClientWithAPI(api snsAPI, topicARN string) *SNSClient {
	return &SNSClient{client: api, topicARN: topicARN}
}

func (s *SNSClient) Channel() string { return "sns" }

// Send publishes one message and returns the SNS message id.
func (s *SNSClient) Send(ctx context.Context, subject, body string) (string, error) {
	if s.topicARN == "" {
		return "", fmt.Errorf("%w: sns topic ARN is not configured", ErrNotConfigured)
	}
	out, err := s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(truncate(subject, 100)),
		Message:  aws.String(body),
	})
	if err != nil {
		return "", fmt.Errorf("sns publish: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}
