// Package push turns phone/message records into push notification jobs and
// delivers them through the adapters registry.
package push

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-jobqueue/pkg/queue"
)

// DefaultRevision is the notification template revision encoded in job types.
const DefaultRevision = 3

const typePrefix = "push_notification_code_"

const (
	FieldPhoneNumber = "phoneNumber"
	FieldMessage     = "message"
)

// Notification is the payload of a push notification job.
type Notification struct {
	PhoneNumber string `json:"phoneNumber" mapstructure:"phoneNumber"`
	Message     string `json:"message" mapstructure:"message"`
}

// Payload returns the job payload for n.
func (n Notification) Payload() map[string]any {
	return map[string]any{
		FieldPhoneNumber: n.PhoneNumber,
		FieldMessage:     n.Message,
	}
}

// TypeForRevision builds the job type tag, e.g. push_notification_code_3.
func TypeForRevision(revision int) string {
	if revision <= 0 {
		revision = DefaultRevision
	}
	return fmt.Sprintf("%s%d", typePrefix, revision)
}

// IsPushType reports whether typ was produced by TypeForRevision.
func IsPushType(typ string) bool {
	return strings.HasPrefix(typ, typePrefix)
}

// Schema lists the required payload fields for the given revision.
func Schema(revision int) queue.Schema {
	return queue.Schema{
		Type:     TypeForRevision(revision),
		Required: []string{FieldPhoneNumber, FieldMessage},
	}
}
