package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/luminapress/comms-engine/internal/pkg/logger"
)

// SESSender delivers email through AWS SES using the SDK v2.
type SESSender struct {
	fromName  string
	fromEmail string
	client    *sesv2.Client
	timeout   time.Duration
}

// NewSESSender creates the email channel adapter. Returns an error if
// credentials are missing so a misconfigured campaign fails fast instead of
// at first send.
func NewSESSender(accessKey, secretKey, region, fromName, fromEmail string) (*SESSender, error) {
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("ses: credentials not configured")
	}
	if region == "" {
		region = "us-east-1"
	}

	cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("ses: load aws config: %w", err)
	}

	return &SESSender{
		fromName:  fromName,
		fromEmail: fromEmail,
		client:    sesv2.NewFromConfig(cfg),
		timeout:   30 * time.Second,
	}, nil
}

// Send delivers a single email through AWS SES.
func (s *SESSender) Send(ctx context.Context, msg *Message) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", s.fromName, s.fromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.Recipient}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("campaign_id"), Value: aws.String(msg.CampaignID)},
			{Name: aws.String("subscriber_id"), Value: aws.String(msg.SubscriberID)},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return nil, classifySESError(err)
	}

	messageID := ""
	if result.MessageId != nil {
		messageID = *result.MessageId
	}
	logger.Debug("ses send accepted", "recipient", msg.Recipient, "message_id", messageID)

	return &Result{ProviderMessageID: messageID}, nil
}

// classifySESError maps SES failures onto the transient/permanent taxonomy.
// Rejected messages and bad destinations never succeed on retry; throttling
// and service errors do.
func classifySESError(err error) error {
	var rejected *types.MessageRejected
	var badRequest *types.BadRequestException
	var suspended *types.AccountSuspendedException
	switch {
	case errors.As(err, &rejected), errors.As(err, &badRequest), errors.As(err, &suspended):
		return Permanent(err)
	default:
		return Transient(err)
	}
}
