package ops

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRegistryPreRegistersBuiltinsWithZeroTick(t *testing.T) {
	r := NewRegistry()
	list := r.List()
	require.Len(t, list, 7)
	for _, svc := range list {
		require.True(t, svc.LastTickAt.IsZero())
	}
}

func TestTickUpdatesOnlyNamedService(t *testing.T) {
	r := NewRegistry()
	r.Tick(ServiceRuleEvaluator)

	for _, svc := range r.List() {
		if svc.Name == ServiceRuleEvaluator {
			require.False(t, svc.LastTickAt.IsZero())
		} else {
			require.True(t, svc.LastTickAt.IsZero())
		}
	}
}

func TestTickOnUnknownServiceIsNoop(t *testing.T) {
	r := NewRegistry()
	require.NotPanics(t, func() { r.Tick("not-a-real-service") })
	require.Len(t, r.List(), 7)
}
