package relayer

import (
	"context"
	"errors"
	"fmt"

	"github.com/MoonbridgeInc/hermes/internal/constants"
)

// Handle identifies a running relayer
type Handle interface {
	Name() string
}

// Supervisor starts and stops a relayer instance
type Supervisor interface {
	Start(ctx context.Context) (Handle, error)
	Stop(ctx context.Context, h Handle) error
}

// WithSupervisor runs fn while a relayer started by sup is running. The relayer
// is stopped on every exit path: success, error and panic. A stop failure is
// joined to the error of fn; a panic in fn keeps unwinding after the stop.
func WithSupervisor(ctx context.Context, sup Supervisor, fn func(ctx context.Context) error) (err error) {
	h, err := sup.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start relayer: %w", err)
	}

	defer func() {
		// the stop must run even when ctx is already done
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.RelayerStopTimeout)
		defer cancel()

		if stopErr := sup.Stop(stopCtx, h); stopErr != nil {
			err = errors.Join(err, fmt.Errorf("failed to stop relayer %s: %w", h.Name(), stopErr))
		}
	}()

	return fn(ctx)
}
