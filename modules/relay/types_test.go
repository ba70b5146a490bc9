package relay

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		input   string
		want    Policy
		wantErr bool
	}{
		{"", PolicyReplace, false},
		{"replace", PolicyReplace, false},
		{" Notify ", PolicyNotify, false},
		{"REJECT", PolicyReject, false},
		{"kick", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParsePolicy(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("alice"))
	assert.NoError(t, ValidateUsername(strings.Repeat("é", MaxUsernameLength)))
	assert.ErrorIs(t, ValidateUsername(""), ErrUsernameEmpty)
	assert.ErrorIs(t, ValidateUsername(strings.Repeat("a", MaxUsernameLength+1)), ErrUsernameTooLong)
}

func TestValidateMessage(t *testing.T) {
	assert.NoError(t, ValidateMessage("hello", 5))
	assert.NoError(t, ValidateMessage("héllo", 5))
	assert.ErrorIs(t, ValidateMessage(" \n\t", 5), ErrMessageEmpty)
	assert.ErrorIs(t, ValidateMessage("hello!", 5), ErrMessageTooLong)
	assert.ErrorIs(t, ValidateMessage("bad \xc3", 50), ErrMessageInvalid)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "anonymous", StateAnonymous.String())
	assert.Equal(t, "registered", StateRegistered.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "unknown", State(42).String())
}
