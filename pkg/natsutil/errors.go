package natsutil

import "errors"

var errNotUserKey = errors.New("nkey seed is not a user seed")
