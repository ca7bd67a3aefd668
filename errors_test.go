package register_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/goliatone/go-register"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"duplicate sentinel", register.ErrDuplicateUser, register.IsDuplicate, true},
		{"duplicate with metadata", register.ErrDuplicateUser.WithMetadata(map[string]any{"username": "alice"}), register.IsDuplicate, true},
		{"wrapped duplicate", fmt.Errorf("registering: %w", register.ErrDuplicateUser), register.IsDuplicate, true},
		{"read only sentinel", register.ErrReadOnlyField, register.IsReadOnlyFieldError, true},
		{"illegal state sentinel", register.ErrIllegalUserState, register.IsIllegalState, true},
		{"plain error is not a duplicate", errors.New("boom"), register.IsDuplicate, false},
		{"nil is not a duplicate", nil, register.IsDuplicate, false},
		{"not found is not read only", register.ErrUserNotFound, register.IsReadOnlyFieldError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}
