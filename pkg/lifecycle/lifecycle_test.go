package lifecycle

import (
	"testing"

	"github.com/containerd/errdefs"
	"github.com/cuemby/storefront/pkg/types"
	"github.com/stretchr/testify/assert"
)

const (
	pending    = types.OrderStatusPending
	processing = types.OrderStatusProcessing
	completed  = types.OrderStatusCompleted
	cancelled  = types.OrderStatusCancelled
)

func TestValidate(t *testing.T) {
	tests := []struct {
		from, to   types.OrderStatus
		permissive bool
		strict     bool
	}{
		{pending, processing, true, true},
		{processing, completed, true, true},
		{pending, completed, true, false},
		{completed, pending, true, false},
		{processing, pending, true, false},
		{pending, pending, true, false},
		{pending, cancelled, true, true},
		{processing, cancelled, true, true},
		{completed, cancelled, true, true},
		{cancelled, pending, false, false},
		{cancelled, completed, false, false},
		{cancelled, cancelled, false, false},
		{pending, "shipped", false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			check := func(m Machine, want bool) {
				err := m.Validate(tt.from, tt.to)
				if want {
					assert.NoError(t, err)
					return
				}
				assert.True(t, errdefs.IsInvalidArgument(err), "strict=%v: %v", m.Strict, err)
			}
			check(Machine{}, tt.permissive)
			check(Machine{Strict: true}, tt.strict)
		})
	}
}

func TestNext(t *testing.T) {
	assert.ElementsMatch(t, []types.OrderStatus{processing, completed, cancelled}, Machine{}.Next(pending))
	assert.ElementsMatch(t, []types.OrderStatus{processing, cancelled}, Machine{Strict: true}.Next(pending))
	assert.Empty(t, Machine{}.Next(cancelled))
	assert.Equal(t, []types.OrderStatus{cancelled}, Machine{Strict: true}.Next(completed))
}

func TestTerminalAndCancel(t *testing.T) {
	assert.Equal(t, pending, Initial)
	assert.False(t, Terminal(pending))
	assert.False(t, Terminal(processing))
	assert.True(t, Terminal(completed))
	assert.True(t, Terminal(cancelled))

	assert.True(t, CanCancel(pending))
	assert.True(t, CanCancel(completed))
	assert.False(t, CanCancel(cancelled))
}
