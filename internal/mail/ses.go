package mail

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/zahid-mohammadi/pivotalb2b-corp-sub000/internal/pkg/logger"
)

// SESTransport sends through AWS SES v2. It satisfies the same
// Transport contract as the API-key provider and is selected by
// configuration when SES is the transactional backend of choice.
type SESTransport struct {
	client *sesv2.Client
}

// NewSESTransport creates an SES transport from static credentials.
// Returns a transport with a nil client when credentials are missing;
// Send reports that as a configuration error.
func NewSESTransport(accessKey, secretKey, region string) *SESTransport {
	if region == "" {
		region = "us-east-1"
	}

	t := &SESTransport{}
	if accessKey != "" && secretKey != "" {
		cfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
		)
		if err != nil {
			logger.Warn("ses transport init failed", "error", err.Error())
		} else {
			t.client = sesv2.NewFromConfig(cfg)
		}
	}
	return t
}

// Send delivers a single email through SES.
func (t *SESTransport) Send(ctx context.Context, msg *Message) (*SendResult, error) {
	if t.client == nil {
		return nil, fmt.Errorf("SES client not initialized - check credentials")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(fmt.Sprintf("%s <%s>", msg.FromName, msg.FromEmail)),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(msg.HTMLContent), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("campaign_id"), Value: aws.String(msg.CampaignID)},
			{Name: aws.String("send_id"), Value: aws.String(msg.SendID)},
		},
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		logger.Error("ses send failed", "recipient", msg.To, "send_id", msg.SendID, "error", err.Error())
		return &SendResult{Success: false, Reason: err.Error(), Transport: "ses"}, nil
	}

	return &SendResult{
		Success:   true,
		MessageID: aws.ToString(out.MessageId),
		Transport: "ses",
	}, nil
}
