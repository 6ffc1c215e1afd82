package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := fmt.Errorf("list records: %w", sql.ErrConnDone)
	err := Wrap(cause, ErrInternal.Code, ErrInternal.Status, "statistics step PROGRESS failed")

	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.Equal(t, "statistics step PROGRESS failed: list records: sql: connection is already closed", err.Error())
}

func TestCloneMatchesOriginalByCode(t *testing.T) {
	busy := Clone(ErrStatsRunActive, "")
	assert.Equal(t, ErrStatsRunActive.Message, busy.Message)
	assert.True(t, errors.Is(busy, ErrStatsRunActive))
	assert.False(t, errors.Is(busy, ErrConflict))

	wrapped := fmt.Errorf("execute run: %w", Clone(ErrNotFound, "statistics run not found"))
	assert.True(t, errors.Is(wrapped, ErrNotFound))
}

func TestCloneDoesNotMutatePredefined(t *testing.T) {
	_ = Clone(ErrValidation, "invalid period")
	assert.Equal(t, "validation failed", ErrValidation.Message)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	typed := Clone(ErrUnsupportedFormat, "")
	assert.Same(t, typed, FromError(fmt.Errorf("render: %w", typed)))

	plain := FromError(errors.New("boom"))
	require.NotNil(t, plain)
	assert.Equal(t, ErrInternal.Code, plain.Code)
	assert.Equal(t, http.StatusInternalServerError, plain.Status)
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "", CodeOf(nil))
	assert.Equal(t, "STATS_RUN_IN_PROGRESS", CodeOf(Clone(ErrStatsRunActive, "")))
	assert.Equal(t, "INTERNAL_ERROR", CodeOf(errors.New("boom")))
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	assert.Equal(t, "<nil>", e.Error())
	assert.Nil(t, e.Unwrap())
	assert.Nil(t, Clone(nil, "x"))
}
