package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("create phase: %w", Conflictf("phase %s already exists", PhaseInception))

	assert.Equal(t, KindConflict, KindOf(err))
	assert.True(t, IsConflict(err))
	assert.False(t, IsNotFound(err))
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("boom")))
	assert.Equal(t, ErrorKind(""), KindOf(nil))
}

func TestErrorIs_MatchesKindOnly(t *testing.T) {
	err := NotFoundf("project %s not found", "PROJ-1")

	assert.True(t, errors.Is(err, &Error{Kind: KindNotFound}))
	assert.False(t, errors.Is(err, &Error{Kind: KindConflict}))
}

func TestStoreFailure_HidesCause(t *testing.T) {
	cause := errors.New("database is locked")
	err := StoreFailure(cause)

	assert.Equal(t, GenericStoreMessage, err.Message)
	assert.NotContains(t, err.Error(), "locked")
	assert.ErrorIs(t, err, cause)
}

func TestUnauthenticated_GenericMessage(t *testing.T) {
	a := Unauthenticated()
	b := Unauthenticated()

	assert.Equal(t, a.Error(), b.Error())
	assert.Equal(t, GenericCredentialMessage, a.Message)
}
