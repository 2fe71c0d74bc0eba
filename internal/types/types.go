// README: Shared identifier and role types used across modules.
package types

// ID is an opaque entity identifier (32-char hex for trips/bookings, UUID for
// transactions and moderation records).
type ID string

// Role is the authenticated actor role supplied by the auth layer.
type Role string

const (
	RolePassenger Role = "passenger"
	RoleDriver    Role = "driver"
	RoleAdmin     Role = "admin"
)

// Actor is the request-scoped identity passed explicitly into core calls.
type Actor struct {
	ID   ID
	Role Role
}
