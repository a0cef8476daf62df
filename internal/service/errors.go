package service

import "errors"

var (
	// ErrNoConflict is returned when a resolution is requested for a
	// document with no pending conflict record.
	ErrNoConflict = errors.New("no pending conflict for document")

	// ErrInvalidChoice is returned for an unknown resolution choice.
	ErrInvalidChoice = errors.New("invalid resolution choice")

	// ErrNotPromotable is returned when promotion is requested for a
	// document that is already remote-identified.
	ErrNotPromotable = errors.New("document is already remote-identified")
)
