package sender

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/sony/gobreaker"

	"github.com/havenloop/dispatch-api/internal/config"
	"github.com/havenloop/dispatch-api/internal/model"
	"github.com/havenloop/dispatch-api/pkg/circuitbreaker"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SMSSender delivers over SNS.
type SMSSender struct {
	client   snsAPI
	senderID string
	cb       *gobreaker.CircuitBreaker
}

func NewSMSSender(ctx context.Context, cfg config.SNSConfig) (*SMSSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return &SMSSender{
		client:   sns.NewFromConfig(awsCfg),
		senderID: cfg.SenderID,
		cb:       circuitbreaker.New("sns"),
	}, nil
}

// NewSMSSenderWithClient wires a prebuilt client, used by tests.
func NewSMSSenderWithClient(client snsAPI, senderID string) *SMSSender {
	return &SMSSender{
		client:   client,
		senderID: senderID,
		cb:       circuitbreaker.New("sns"),
	}
}

func (s *SMSSender) Channel() model.Channel {
	return model.ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, address, subject, body string) (string, error) {
	if err := ValidateAddress(model.ChannelSMS, address); err != nil {
		return "", err
	}

	// Subject is meaningless for SMS; the body alone goes out.
	input := &sns.PublishInput{
		PhoneNumber: aws.String(address),
		Message:     aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}
	if s.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	out, err := s.cb.Execute(func() (interface{}, error) {
		return s.client.Publish(ctx, input)
	})
	if err != nil {
		return "", apperrors.ChannelSendFailed(string(model.ChannelSMS), err)
	}

	resp := out.(*sns.PublishOutput)
	if resp.MessageId == nil {
		return "", nil
	}
	return *resp.MessageId, nil
}
