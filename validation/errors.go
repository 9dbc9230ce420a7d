package validation

import "errors"

var (
	ErrNotVideo     = errors.New("file is not a supported video container")
	ErrFileTooLarge = errors.New("file size exceeds the upload limit")
	ErrEmptyFile    = errors.New("file is empty")
)
