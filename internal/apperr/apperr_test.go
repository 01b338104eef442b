package apperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCauseAndKind(t *testing.T) {
	cause := errors.New("stock")
	err := Wrap(ErrConflict, cause)

	assert.ErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrConflict, Kind(err))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(ErrExternal, nil))
}

func TestWrapDoesNotDoubleTag(t *testing.T) {
	err := Validation("quantity must be positive")
	assert.Same(t, err, Wrap(ErrValidation, err))
	assert.Equal(t, "validation: quantity must be positive", err.Error())
}

func TestKindUnclassified(t *testing.T) {
	assert.Nil(t, Kind(errors.New("boom")))
}
