package chat

import "errors"

var (
	ErrEmptyMessage    = errors.New("message cannot be empty")
	ErrMessageTooLong  = errors.New("message is too long")
	ErrUnknownReceiver = errors.New("receiver does not exist")
)
