package roles

import "errors"

var ErrUnknownRole = errors.New("unknown role")
