package domain

import "errors"

var (
	ErrMissingIdentifier  = errors.New("missing identifier: no email or user id to identify visitor")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrWidgetLoadFailed   = errors.New("widget load failed")
	ErrSnapshotNotFound   = errors.New("identity snapshot not found")
	ErrValueNotFound      = errors.New("value not found")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrIncompleteForm     = errors.New("please fill in all fields")
)
