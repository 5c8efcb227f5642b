package store

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrProfessionalInactive = errors.New("professional is inactive")
	ErrNotGroupBooking      = errors.New("booking does not track participants")
)
