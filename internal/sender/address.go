package sender

import (
	"net/mail"
	"regexp"

	"github.com/havenloop/dispatch-api/internal/model"
	apperrors "github.com/havenloop/dispatch-api/pkg/errors"
)

// E.164: plus sign, then up to 15 digits, no leading zero.
var phoneRe = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// ValidateAddress rejects addresses that can never succeed, so the
// dispatcher can finalize them as terminal without burning retries.
func ValidateAddress(ch model.Channel, address string) error {
	if address == "" {
		return apperrors.InvalidAddress(address)
	}

	switch ch {
	case model.ChannelEmail:
		if _, err := mail.ParseAddress(address); err != nil {
			return apperrors.InvalidAddress(address)
		}
	case model.ChannelSMS:
		if !phoneRe.MatchString(address) {
			return apperrors.InvalidAddress(address)
		}
	case model.ChannelInApp:
		// In-app addresses are user ids; presence is enough.
	}
	return nil
}
