package id

import "github.com/google/uuid"

type UUIDGenerator struct{}

func NewUUIDGenerator() UUIDGenerator { return UUIDGenerator{} }

// NewID returns a random version 4 UUID.
func (UUIDGenerator) NewID() string { return uuid.NewString() }
