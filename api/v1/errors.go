package v1

import "errors"

var (
	ErrContentType = errors.New("Content-Type must be application/json")
	ErrInstallPath = errors.New("installPath is required")
	ErrUnknownAct  = errors.New("unknown action")
)
