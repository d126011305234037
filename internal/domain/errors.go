package domain

import "errors"

var (
	// ErrTemplateNotFound is returned when a page has no record template to mutate
	ErrTemplateNotFound = errors.New("template not found in page")

	// ErrPageNotFound is returned when a wiki page does not exist
	ErrPageNotFound = errors.New("page not found")

	// ErrSnapshotMalformed is returned when the chain-data snapshot cannot be parsed
	ErrSnapshotMalformed = errors.New("malformed chain data snapshot")
)
