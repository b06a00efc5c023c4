package events

import "time"

// Kind distinguishes mutation changes from status changes.
type Kind string

const (
	// KindMutation marks a committed state mutation.
	KindMutation Kind = "mutation"

	// KindStatus marks an action status transition.
	KindStatus Kind = "status"
)

// Change is the published representation of one state change.
//
// Change is optimised for JSON serialisation (used by the inspector's SSE
// stream). It is decoupled from the module hook types so the wire format can
// evolve independently.
type Change struct {
	// Seq is assigned by the broker and increases monotonically.
	Seq uint64 `json:"seq"`

	// Kind is either "mutation" or "status".
	Kind Kind `json:"kind"`

	// Module is the namespace that changed.
	Module string `json:"module"`

	// Mutation is the mutation type (set, append, delete, clear, ...).
	// Empty for status changes.
	Mutation string `json:"mutation,omitempty"`

	// Action is the tracked action name. Empty for mutations.
	Action string `json:"action,omitempty"`

	// Status is the new action status. Empty for mutations.
	Status string `json:"status,omitempty"`

	// Error is the failure message for status "error".
	Error *string `json:"error,omitempty"`

	// At is when the change was committed.
	At time.Time `json:"at"`
}

// Publisher accepts changes for fan-out.
type Publisher interface {
	// Publish sequences and fans out change, returning it with Seq set.
	Publish(change Change) Change
}

// Source is the read side of a change stream.
//
// Implementations must be safe for concurrent access.
type Source interface {
	// Latest returns the most recent change per module, ordered by Seq.
	Latest() []Change

	// Subscribe returns a channel that receives changes.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Change

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Change)
}
