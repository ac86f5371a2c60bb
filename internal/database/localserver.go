package database

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// LocalServer supervises a developer-local Postgres instance: it runs
// initdb on first use and starts the server process, so the pipeline can
// run end to end on a workstation with nothing but the Postgres binaries
// installed. Production deployments point Config at an existing server and
// never construct one of these.
type LocalServer struct {
	cfg    Config
	logger *zap.Logger
	cmd    *exec.Cmd
}

// NewLocalServer builds a supervisor for the data directory in cfg.DataDir.
func NewLocalServer(cfg Config, logger *zap.Logger) *LocalServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalServer{cfg: cfg, logger: logger}
}

// Start initializes the data directory if needed, launches the server, and
// blocks until it accepts connections or ctx expires.
func (s *LocalServer) Start(ctx context.Context) error {
	if s.cfg.DataDir == "" {
		return fmt.Errorf("local server requires a data directory")
	}
	if err := s.initIfNeeded(ctx); err != nil {
		return err
	}

	// -F disables fsync; acceptable for a throwaway local instance.
	cmd := exec.CommandContext(ctx, "postgres",
		"-D", s.cfg.DataDir,
		"-p", fmt.Sprintf("%d", s.cfg.Port),
		"-F",
	)
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start postgres: %w", err)
	}
	s.cmd = cmd
	s.logger.Info("local postgres started",
		zap.Int("pid", cmd.Process.Pid),
		zap.String("data_dir", s.cfg.DataDir),
	)
	return s.waitReady(ctx)
}

// Stop terminates the server process and waits for it to exit.
func (s *LocalServer) Stop() error {
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("signal postgres: %w", err)
	}
	err := s.cmd.Wait()
	s.cmd = nil
	return err
}

func (s *LocalServer) initIfNeeded(ctx context.Context) error {
	marker := filepath.Join(s.cfg.DataDir, "PG_VERSION")
	if _, err := os.Stat(marker); err == nil {
		return nil
	}
	s.logger.Info("initializing data directory", zap.String("data_dir", s.cfg.DataDir))
	cmd := exec.CommandContext(ctx, "initdb",
		"-D", s.cfg.DataDir,
		"-U", s.cfg.User,
		"--auth=trust",
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("initdb: %w: %s", err, out)
	}
	return nil
}

func (s *LocalServer) waitReady(ctx context.Context) error {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.Now().Add(15 * time.Second)
	for {
		conn, err := pgx.Connect(ctx, s.cfg.DSN(s.cfg.maintenanceDB()))
		if err == nil {
			_ = conn.Close(ctx)
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("postgres not ready: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
