package apperr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/agentfleet/coordinator/internal/domain/apperr"
)

func TestErrorsIsSentinels(t *testing.T) {
	err := New(KindConflict, "already_holds_task")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("row locked")
	err := Wrap(KindStorageFault, "claim failed", cause)
	assert.True(t, errors.Is(err, ErrStorageFault))
	assert.ErrorIs(t, err, cause)
}

func TestKindOfUnclassifiedDefaultsToStorageFault(t *testing.T) {
	assert.Equal(t, KindStorageFault, KindOf(errors.New("surprise")))
	assert.Equal(t, KindNotFound, KindOf(NotFoundf("task %s", "t1")))
}

func TestDetailOfFallsBackToErrorString(t *testing.T) {
	plain := errors.New("boom")
	assert.Equal(t, "boom", DetailOf(plain))
	assert.Equal(t, "missing role", DetailOf(New(KindBadRequest, "missing role")))
}
