package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestStatus(t *testing.T) {
	t.Run("canonical values parse", func(t *testing.T) {
		for _, raw := range []string{"submitted", "paid", "fulfilled", "declined_customer", "declined_business"} {
			status, err := ParseRequestStatus(raw)
			require.NoError(t, err)
			assert.Equal(t, raw, string(status))
		}
	})

	t.Run("legacy values normalize to paid", func(t *testing.T) {
		for _, raw := range []string{"in_progress", "contacted"} {
			status, err := ParseRequestStatus(raw)
			require.NoError(t, err)
			assert.Equal(t, StatusPaid, status)
		}
	})

	t.Run("unknown value rejected", func(t *testing.T) {
		_, err := ParseRequestStatus("shipped")
		assert.ErrorIs(t, err, ErrInvalidEnum)
	})
}

func TestEvaluateTransition(t *testing.T) {
	tests := []struct {
		name          string
		current       RequestStatus
		target        RequestStatus
		reopenEnabled bool
		wantKind      TransitionKind
		wantErr       error
	}{
		{name: "submitted to paid", current: StatusSubmitted, target: StatusPaid, wantKind: TransitionForward},
		{name: "paid to fulfilled", current: StatusPaid, target: StatusFulfilled, wantKind: TransitionForward},
		{name: "paid to declined_customer", current: StatusPaid, target: StatusDeclinedCustomer, wantKind: TransitionForward},
		{name: "paid to declined_business", current: StatusPaid, target: StatusDeclinedBusiness, wantKind: TransitionForward},
		{name: "submitted to fulfilled skips paid", current: StatusSubmitted, target: StatusFulfilled, wantErr: ErrInvalidTransition},
		{name: "fulfilled is terminal", current: StatusFulfilled, target: StatusPaid, wantErr: ErrInvalidTransition},
		{name: "declined is terminal", current: StatusDeclinedCustomer, target: StatusFulfilled, wantErr: ErrInvalidTransition},
		{name: "same status is a noop", current: StatusPaid, target: StatusPaid, wantKind: TransitionNoop},
		{name: "terminal noop stays a noop", current: StatusFulfilled, target: StatusFulfilled, wantKind: TransitionNoop},
		{name: "reopen rejected when disabled", current: StatusFulfilled, target: StatusSubmitted, wantErr: ErrReopenDisabled},
		{name: "reopen allowed when enabled", current: StatusFulfilled, target: StatusSubmitted, reopenEnabled: true, wantKind: TransitionReopen},
		{name: "reopen from paid when enabled", current: StatusPaid, target: StatusSubmitted, reopenEnabled: true, wantKind: TransitionReopen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := EvaluateTransition(tt.current, tt.target, tt.reopenEnabled)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusSubmitted.IsTerminal())
	assert.False(t, StatusPaid.IsTerminal())
	assert.True(t, StatusFulfilled.IsTerminal())
	assert.True(t, StatusDeclinedCustomer.IsTerminal())
	assert.True(t, StatusDeclinedBusiness.IsTerminal())
}
