// README: Moderation action records (append-only audit log).
package admin

import (
	"time"

	"unipool/internal/types"
)

const (
	ActionSuspendUser      = "suspend_user"
	ActionUnsuspendUser    = "unsuspend_user"
	ActionForceCancelTrip  = "force_cancel_trip"
	ActionCorrectBooking   = "correct_booking"
	ActionPublishBan       = "publish_ban"
	ActionPublishBanLifted = "publish_ban_lifted"
)

// ModerationAction is one audit record. Every admin override mutation appends
// exactly one; records are never updated or deleted.
type ModerationAction struct {
	ID         types.ID
	EntityType string
	EntityID   types.ID
	ActorID    types.ID
	Action     string
	Reason     string
	CreatedAt  time.Time
}
