package relayer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/MoonbridgeInc/hermes/internal/constants"
)

// ProcessSupervisor runs the relayer binary as a local child process
type ProcessSupervisor struct {
	logger *slog.Logger
	Binary string
	Args   []string
	// Output receives the relayer's stdout and stderr; nil discards them
	Output io.Writer
	// Grace is how long Stop waits after SIGTERM before killing the process
	Grace time.Duration
}

// NewProcessSupervisor creates a supervisor running `<binary> --config <configPath> start`
func NewProcessSupervisor(logger *slog.Logger, binary, configPath string) *ProcessSupervisor {
	return &ProcessSupervisor{
		logger: logger,
		Binary: binary,
		Args:   []string{"--config", configPath, "start"},
		Grace:  constants.RelayerStopTimeout / 3,
	}
}

type processHandle struct {
	cmd  *exec.Cmd
	done chan error
}

func (h *processHandle) Name() string {
	return fmt.Sprintf("%s[%d]", h.cmd.Path, h.cmd.Process.Pid)
}

// Start launches the process. Its lifetime is bounded by Stop, not by ctx.
func (s *ProcessSupervisor) Start(ctx context.Context) (Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(s.Binary, s.Args...)
	cmd.Stdout = s.Output
	cmd.Stderr = s.Output

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", s.Binary, err)
	}

	h := &processHandle{cmd: cmd, done: make(chan error, 1)}
	go func() {
		h.done <- cmd.Wait()
	}()

	s.logger.Info("Started relayer process", "binary", s.Binary, "pid", cmd.Process.Pid)
	return h, nil
}

// Stop sends SIGTERM and waits for the process to exit, killing it once the
// grace period or ctx runs out. A process that already exited on its own is
// reported as an error.
func (s *ProcessSupervisor) Stop(ctx context.Context, h Handle) error {
	ph, ok := h.(*processHandle)
	if !ok {
		return fmt.Errorf("unexpected handle type %T", h)
	}

	select {
	case err := <-ph.done:
		return fmt.Errorf("relayer exited before stop: %v", exitReason(err))
	default:
	}

	if err := ph.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warn("Failed to signal relayer process", "pid", ph.cmd.Process.Pid, "error", err)
	}

	grace := s.Grace
	if grace <= 0 {
		grace = constants.RelayerStopTimeout
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-ph.done:
		s.logger.Info("Stopped relayer process", "pid", ph.cmd.Process.Pid)
		return nil
	case <-timer.C:
		s.logger.Warn("Relayer did not exit after SIGTERM, killing", "pid", ph.cmd.Process.Pid, "grace", grace)
	case <-ctx.Done():
		s.logger.Warn("Stop deadline reached, killing relayer", "pid", ph.cmd.Process.Pid)
	}

	if err := ph.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill relayer process: %w", err)
	}
	<-ph.done
	return nil
}

func exitReason(err error) string {
	if err == nil {
		return "exit status 0"
	}
	return err.Error()
}
