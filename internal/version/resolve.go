package version

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/coreos/go-semver/semver"
	log "github.com/sirupsen/logrus"

	"binup/internal/runner"
)

// DefaultTimeout bounds a single version probe.
const DefaultTimeout = 5 * time.Second

// State is the observed state of an installed binary. It is derived from
// the filesystem on every run and never stored.
type State struct {
	Installed bool
	// Version is nil when the binary didn't report a parseable version.
	Version *semver.Version
	ModTime time.Time
}

// Resolver probes installed binaries.
type Resolver struct {
	Runner  runner.Runner
	Timeout time.Duration
	Logger  log.FieldLogger
}

// NewResolver returns a Resolver backed by real subprocesses.
func NewResolver(logger log.FieldLogger) *Resolver {
	return &Resolver{Runner: runner.CmdRunner{}, Timeout: DefaultTimeout, Logger: logger}
}

// Resolve reports whether path exists and, if so, its version and mtime.
// Probe failures degrade to a nil Version. A stat failure other than
// non-existence is returned as an error.
func (r *Resolver) Resolve(ctx context.Context, path string, src Source) (State, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return State{}, fmt.Errorf("%s is a directory", path)
	}

	state := State{Installed: true, ModTime: info.ModTime()}
	state.Version = r.probe(ctx, path, src)
	return state, nil
}

func (r *Resolver) probe(ctx context.Context, path string, src Source) *semver.Version {
	logger := r.logger().WithField("binary", path)
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	run := r.Runner
	if run == nil {
		run = runner.CmdRunner{}
	}
	args := src.Args()
	logger.Debugf("determining version with %s %v", path, args)
	res, err := run.Run(ctx, path, args, runner.Options{})
	if err != nil {
		logger.WithError(err).Debugf("version probe failed: %s", firstLine(string(res.Stderr)))
		return nil
	}
	for _, out := range [][]byte{res.Stdout, res.Stderr} {
		if v, ok := ParseOutput(string(out)); ok {
			logger.Debugf("found version %s", v)
			return v
		}
	}
	logger.Debug("no version found in program output")
	return nil
}

func (r *Resolver) logger() log.FieldLogger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.StandardLogger()
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			return s[:i]
		}
	}
	return s
}
