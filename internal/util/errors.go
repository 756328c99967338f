package util

import "errors"

var (
	ErrUnknownFormat = errors.New("unknown render format")
	ErrRunNotFound   = errors.New("conversion run not found")
	ErrStudyNotFound = errors.New("study not found")
	ErrNotXML        = errors.New("document is not an xml file")
)
