package service

import "errors"

// 业务层错误。
var (
	ErrTagNotFound        = errors.New("tag not found")
	ErrTagExists          = errors.New("tag name already exists")
	ErrInvalidTag         = errors.New("invalid tag")
	ErrImageNotFound      = errors.New("image not found")
	ErrInvalidImage       = errors.New("invalid image")
	ErrImageConflict      = errors.New("image conflicts with an existing record")
	ErrAlbumNotFound      = errors.New("album not found")
	ErrAlbumExists        = errors.New("album value already exists")
	ErrInvalidAlbum       = errors.New("invalid album")
	ErrInvalidMove        = errors.New("invalid tag move")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// MoveValidationError 说明标签移动被拒绝的原因。
type MoveValidationError struct {
	Reason string
}

func (e *MoveValidationError) Error() string {
	return "invalid tag move: " + e.Reason
}

func (e *MoveValidationError) Unwrap() error {
	return ErrInvalidMove
}
