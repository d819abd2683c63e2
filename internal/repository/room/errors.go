package room

import "errors"

var (
	ErrRoomNotFound              = errors.New("room not found")
	ErrMemberNotFound            = errors.New("member not found")
	ErrPlayerNotFound            = errors.New("player not found")
	ErrConnectTokenNotFound      = errors.New("connect token not found")
	ErrConnectTokenAlreadyExists = errors.New("connect token already exists")
)
