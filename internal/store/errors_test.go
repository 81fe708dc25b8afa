package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantNotFound  bool
		wantDuplicate bool
	}{
		{name: "nil error"},
		{name: "generic error", err: errors.New("some error")},
		{name: "ErrNotFound", err: ErrNotFound, wantNotFound: true},
		{name: "wrapped ErrNotFound", err: fmt.Errorf("load envelope: %w", ErrNotFound), wantNotFound: true},
		{name: "ErrDuplicate", err: ErrDuplicate, wantDuplicate: true},
		{
			name:          "store error wrapping ErrDuplicate",
			err:           NewStoreError("envelope", "append", "insert failed", ErrDuplicate),
			wantDuplicate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantNotFound, IsNotFoundError(tt.err))
			assert.Equal(t, tt.wantDuplicate, IsDuplicateError(tt.err))
		})
	}
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection reset")
	err := NewStoreError("envelope", "remove", "delete failed", cause)
	assert.Equal(t, "remove operation on envelope failed: delete failed: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)

	var storeErr *StoreError
	assert.True(t, errors.As(fmt.Errorf("outer: %w", err), &storeErr))
	assert.Equal(t, "remove", storeErr.Operation)

	bare := NewStoreError("envelope", "load", "no rows", nil)
	assert.Equal(t, "load operation on envelope failed: no rows", bare.Error())
}
