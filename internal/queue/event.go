// Package queue defines the auth events exchanged over the message broker
// and the background consumer that turns them into an audit trail.
package queue

// AuthEventsQueue is the durable queue all auth lifecycle events go to.
const AuthEventsQueue = "auth.events"

// Event types carried in AuthEvent.Event.
const (
	EventIdentityRegistered = "identity.registered"
	EventLogin              = "auth.login"
)

// AuthEvent is published after a successful register, login, or federated
// login. It carries enough for downstream consumers to audit or notify
// without querying the identity store. Delivery is best-effort; a publish
// failure never fails the originating request.
type AuthEvent struct {
	Event      string `json:"event"`            // identity.registered | auth.login
	IdentityID uint64 `json:"identity_id"`
	Email      string `json:"email"`
	Provider   string `json:"provider"`         // local | oauth:<name>
	Method     string `json:"method,omitempty"` // password | oauth | refresh
	OccurredAt string `json:"occurred_at"`      // RFC 3339, UTC
}
