package mailer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"github.com/sirupsen/logrus"

	"github.com/unclebandit/scoutier-backend/internal/logger"
)

// sesAPI is the part of *sesv2.Client used by SESMailer.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESMailer sends mail through AWS SES v2.
type SESMailer struct {
	client   sesAPI
	from     string
	fromName string
}

// NewSESMailer builds an SES client from static credentials.
func NewSESMailer(ctx context.Context, region, accessKey, secretKey, from, fromName string) (*SESMailer, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return &SESMailer{client: sesv2.NewFromConfig(cfg), from: from, fromName: fromName}, nil
}

func (m *SESMailer) Send(ctx context.Context, msg Message) Result {
	from := m.from
	if m.fromName != "" {
		from = fmt.Sprintf("%s <%s>", m.fromName, m.from)
	}
	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Body), Charset: aws.String("UTF-8")},
				},
			},
		},
	}

	out, err := m.client.SendEmail(ctx, input)
	if err != nil {
		res := Failed(err)
		logger.WithComponent("mailer").WithFields(logrus.Fields{
			"to":     logger.RedactEmail(msg.To),
			"reason": res.Reason,
		}).Warn("ses send failed")
		return res
	}

	messageID := ""
	if out.MessageId != nil {
		messageID = *out.MessageId
	}
	logger.WithComponent("mailer").WithFields(logrus.Fields{
		"to": logger.RedactEmail(msg.To),
		"id": messageID,
	}).Debug("ses send accepted")
	return Result{Status: StatusSent}
}
