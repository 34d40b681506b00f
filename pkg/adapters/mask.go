package adapters

import (
	"strings"

	masker "github.com/goliatone/go-masker"
)

const recipientMask = "preserveEnds(2,2)"

var recipientFields = []string{
	"phoneNumber", "phone_number", "to", "token",
}

func init() {
	for _, field := range recipientFields {
		masker.Default.RegisterMaskField(field, recipientMask)
	}
}

// MaskRecipient hides the middle of a phone number or device token for logging.
func MaskRecipient(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if masked, err := masker.Default.String(recipientMask, value); err == nil {
		return masked
	}
	runes := []rune(value)
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return string(runes[:2]) + strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-2:])
}
