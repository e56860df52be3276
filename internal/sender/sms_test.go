package sender

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

type stubSNS struct {
	input *sns.PublishInput
	err   error
}

func (s *stubSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-msg-001")}, nil
}

func TestSMSSender_Send(t *testing.T) {
	stub := &stubSNS{}
	snd := NewSMSSenderWithClient(stub, "HAVENLOOP")

	id, err := snd.Send(context.Background(), "+15551234567", "ignored subject", "hello")
	require.NoError(t, err)
	assert.Equal(t, "sns-msg-001", id)

	require.NotNil(t, stub.input)
	assert.Equal(t, "+15551234567", *stub.input.PhoneNumber)
	assert.Equal(t, "hello", *stub.input.Message)
	assert.Equal(t, "Transactional", *stub.input.MessageAttributes["AWS.SNS.SMS.SMSType"].StringValue)
	assert.Equal(t, "HAVENLOOP", *stub.input.MessageAttributes["AWS.SNS.SMS.SenderID"].StringValue)
}

func TestSMSSender_NoSenderIDAttribute(t *testing.T) {
	stub := &stubSNS{}
	snd := NewSMSSenderWithClient(stub, "")

	_, err := snd.Send(context.Background(), "+15551234567", "", "hello")
	require.NoError(t, err)
	assert.NotContains(t, stub.input.MessageAttributes, "AWS.SNS.SMS.SenderID")
}

func TestSMSSender_InvalidAddressSkipsPublish(t *testing.T) {
	stub := &stubSNS{}
	snd := NewSMSSenderWithClient(stub, "")

	_, err := snd.Send(context.Background(), "555-1234", "", "hello")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidAddress))
	assert.Nil(t, stub.input)
}

func TestSMSSender_GatewayError(t *testing.T) {
	stub := &stubSNS{err: errors.New("throttled")}
	snd := NewSMSSenderWithClient(stub, "")

	_, err := snd.Send(context.Background(), "+15551234567", "", "hello")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrChannelSendFailed))
}
