package policy

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Mode indicates whether authorization fails open or closed when evaluation errors.
type Mode string

const (
	// ModeFailClosed surfaces evaluation errors, denying the request.
	ModeFailClosed Mode = "fail-closed"
	// ModeFailOpen allows requests when evaluation errors.
	ModeFailOpen Mode = "fail-open"
)

// ParseMode validates a configured failure mode. Empty selects ModeFailClosed.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeFailClosed:
		return ModeFailClosed, nil
	case ModeFailOpen:
		return ModeFailOpen, nil
	default:
		return "", fmt.Errorf("unsupported policy failure mode %q", value)
	}
}

// StoreOptions configure a Store.
type StoreOptions struct {
	// Path is a .rego file or a directory of .rego files.
	Path            string
	Entrypoint      string
	Mode            Mode
	CacheMaxEntries int
	Logger          *slog.Logger
	// OnReload is called with "success" or "failure" after every reload attempt.
	OnReload func(status string)
}

// Store serves authorization decisions from the most recently loaded policy.
type Store struct {
	engine atomic.Pointer[Engine]
	opts   StoreOptions
	logger *slog.Logger
}

// NewStore loads the policy at opts.Path.
func NewStore(ctx context.Context, opts StoreOptions) (*Store, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("policy path is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeFailClosed
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{opts: opts, logger: logger}
	engine, err := s.compile(ctx)
	if err != nil {
		return nil, err
	}
	s.engine.Store(engine)
	return s, nil
}

// Allowed evaluates the active policy for input.
func (s *Store) Allowed(ctx context.Context, input map[string]any) (bool, error) {
	allowed, err := s.engine.Load().Allowed(ctx, input)
	if err != nil && s.opts.Mode == ModeFailOpen {
		s.logger.WarnContext(ctx, "Policy evaluation failed, allowing request", "error", err)
		return true, nil
	}
	return allowed, err
}

// Query returns the Rego query of the active policy.
func (s *Store) Query() string {
	return s.engine.Load().Query()
}

// Path returns the watched policy location.
func (s *Store) Path() string {
	return s.opts.Path
}

// Reload recompiles the policy and swaps it in. On failure the previous policy stays active.
func (s *Store) Reload(ctx context.Context) error {
	engine, err := s.compile(ctx)
	if err != nil {
		s.report("failure")
		return err
	}
	s.engine.Store(engine)
	s.report("success")
	return nil
}

func (s *Store) compile(ctx context.Context) (*Engine, error) {
	modules, err := LoadModules(s.opts.Path)
	if err != nil {
		return nil, err
	}
	return NewEngine(ctx, EngineOptions{
		Entrypoint:      s.opts.Entrypoint,
		Modules:         modules,
		CacheMaxEntries: s.opts.CacheMaxEntries,
	})
}

func (s *Store) report(status string) {
	if s.opts.OnReload != nil {
		s.opts.OnReload(status)
	}
}

// LoadModules reads a single .rego file, or every .rego file in a directory.
func LoadModules(path string) (map[string]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat policy path: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("list policy files: %w", err)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no rego files in %s", path)
	}

	modules := make(map[string]string, len(files))
	for _, file := range files {
		src, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read policy file %s: %w", file, err)
		}
		modules[filepath.Base(file)] = string(src)
	}
	return modules, nil
}
