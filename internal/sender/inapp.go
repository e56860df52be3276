package sender

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/havenloop/dispatch-api/internal/model"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
	"github.com/havenloop/dispatch-api/pkg/messaging"
)

const inAppTopic = "notifications:in_app"

// InAppSender publishes to the broker; clients pull notifications from
// there, which is why in-app delivery never counts as an interruption.
type InAppSender struct {
	broker messaging.Broker
}

func NewInAppSender(broker messaging.Broker) *InAppSender {
	return &InAppSender{broker: broker}
}

func (s *InAppSender) Channel() model.Channel {
	return model.ChannelInApp
}

func (s *InAppSender) Send(ctx context.Context, address, subject, body string) (string, error) {
	if err := ValidateAddress(model.ChannelInApp, address); err != nil {
		return "", err
	}
	userID, err := uuid.Parse(address)
	if err != nil {
		return "", apperrors.InvalidAddress(address)
	}

	event := &model.NotificationEvent{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     subject,
		Body:      body,
		CreatedAt: time.Now(),
	}
	if err := s.broker.Publish(ctx, inAppTopic, event); err != nil {
		return "", apperrors.ChannelSendFailed(string(model.ChannelInApp), err)
	}
	return event.ID.String(), nil
}
