package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager_ReverseOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	sm := NewShutdownManager(logger, time.Second)

	var order []string
	step := func(name string, err error) ShutdownFunc {
		return func(ctx context.Context) error {
			order = append(order, name)
			return err
		}
	}
	sm.RegisterShutdownFunc("state store", step("state store", nil))
	sm.RegisterShutdownFunc("plugins", step("plugins", errors.New("flush failed")))
	sm.RegisterShutdownFunc("http server", step("http server", nil))

	err := sm.Shutdown(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugins: flush failed")
	assert.Equal(t, []string{"http server", "plugins", "state store"}, order)

	// second call is a no-op
	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.Len(t, order, 3)
}

func TestShutdownManager_Timeout(t *testing.T) {
	sm := NewShutdownManager(nil, 20*time.Millisecond)

	var ran []string
	sm.RegisterShutdownFunc("first", func(ctx context.Context) error {
		ran = append(ran, "first")
		return nil
	})
	sm.RegisterShutdownFunc("slow", func(ctx context.Context) error {
		ran = append(ran, "slow")
		<-ctx.Done()
		return ctx.Err()
	})

	err := sm.Shutdown(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"slow"}, ran)
}
