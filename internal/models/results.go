package models

// Store operations never propagate raw errors to callers. Every public
// operation resolves to one of these discriminated results; the
// underlying error is logged where it happened.

// ErrorKind classifies an error-status result so the transport layer
// can pick a status code without parsing messages.
type ErrorKind string

const (
	ErrKindAuth       ErrorKind = "auth"
	ErrKindValidation ErrorKind = "validation"
	ErrKindBackend    ErrorKind = "backend"
)

type AddStatus string

const (
	AddStatusAdded   AddStatus = "added"
	AddStatusUpdated AddStatus = "updated"
	AddStatusError   AddStatus = "error"
)

// AddResult reports the outcome of an add-card operation. Kind is set
// only when Status is error.
type AddResult struct {
	Status      AddStatus `json:"status"`
	NewQuantity int       `json:"new_quantity,omitempty"`
	Kind        ErrorKind `json:"kind,omitempty"`
	Message     string    `json:"message,omitempty"`
}

// AddError builds an error-status result with a human-readable message.
func AddError(kind ErrorKind, msg string) AddResult {
	return AddResult{Status: AddStatusError, Kind: kind, Message: msg}
}

type RemoveStatus string

const (
	RemoveStatusDecremented RemoveStatus = "decremented"
	RemoveStatusRemoved     RemoveStatus = "removed"
	RemoveStatusNotFound    RemoveStatus = "not_found"
	RemoveStatusError       RemoveStatus = "error"
)

// RemoveResult reports the outcome of a remove-card operation. NotFound
// is a distinct status, not an error: removing a card that is not in the
// collection is a no-op from the caller's point of view.
type RemoveResult struct {
	Status      RemoveStatus `json:"status"`
	NewQuantity int          `json:"new_quantity,omitempty"`
	Kind        ErrorKind    `json:"kind,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// RemoveError builds an error-status result with a human-readable message.
func RemoveError(kind ErrorKind, msg string) RemoveResult {
	return RemoveResult{Status: RemoveStatusError, Kind: kind, Message: msg}
}

type GroupStatus string

const (
	GroupStatusOK       GroupStatus = "ok"
	GroupStatusInvalid  GroupStatus = "invalid"
	GroupStatusNotFound GroupStatus = "not_found"
	GroupStatusError    GroupStatus = "error"
)

// GroupResult reports the outcome of a group lifecycle operation.
// Invalid covers validation failures such as touching the protected
// default group or an empty name.
type GroupResult struct {
	Status  GroupStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}
