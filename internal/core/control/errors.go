package control

import "errors"

var (
	ErrUnknownAction = errors.New("unknown action")
	ErrUnknownTarget = errors.New("unknown target entity")
	ErrWrongKind     = errors.New("target has the wrong kind for this action")
)
