package domain

import "errors"

var ErrUnknownEventType = errors.New("unknown event type")
