package wizard

import "errors"

var (
	ErrAtStart              = errors.New("already at the first step")
	ErrPhotoRequired        = errors.New("photo required")
	ErrNotEnoughHailHits    = errors.New("not enough hail hits")
	ErrUnknownStep          = errors.New("unknown step")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrUnknownAccessoryType = errors.New("unknown accessory type")
	ErrInterviewIncomplete  = errors.New("interview incomplete")
)

// RuleError is a wizard rule violation carrying the message shown to the
// inspector. It unwraps to one of the sentinel errors above.
type RuleError struct {
	Err     error
	Message string
}

func (e *RuleError) Error() string { return e.Message }

func (e *RuleError) Unwrap() error { return e.Err }

func ruleError(err error, msg string) error {
	return &RuleError{Err: err, Message: msg}
}
