package cli

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"binup/internal/config"
	"binup/internal/github"
	"binup/internal/logx"
	"binup/internal/paths"
	"binup/internal/release"
	"binup/internal/tools"
	"binup/internal/tui"
	"binup/internal/version"
)

// Construction hooks, replaced in tests.
var (
	newForge = func(cfg config.Config, logger log.FieldLogger) (tools.Forge, error) {
		return github.NewClient(github.WithToken(cfg.Token()), github.WithLogger(logger))
	}
	newResolver = func(logger log.FieldLogger) tools.StateResolver {
		return version.NewResolver(logger)
	}
	currentPlatform = release.CurrentPlatform
)

// session is the immutable run context shared by a command: the loaded
// registry, the logger and the output mode.
type session struct {
	ctx    context.Context
	doc    *config.Document
	logger *log.Logger
	mode   tui.OutputMode
	closer io.Closer
}

// openSession sets up logging and loads the registry. Config errors are
// returned before any network or file activity.
func openSession(cmd *cobra.Command, noProgress bool) (*session, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	mode := tui.DetectMode(cmd.OutOrStdout(), noProgress || verbosity > 0)
	console := cmd.ErrOrStderr()
	if mode == tui.ModeTUI {
		// The progress table owns the terminal; warnings end up in the summary.
		console = io.Discard
	}
	logger := logx.New(verbosity, console)

	s := &session{ctx: ctx, logger: logger, mode: mode}
	if logFile != "" {
		closer, err := logx.AttachFile(logger, logFile)
		if err != nil {
			return nil, err
		}
		s.closer = closer
	}

	path := configPath
	if path == "" {
		var err error
		if path, err = paths.DefaultConfigFile(); err != nil {
			s.Close()
			return nil, err
		}
	} else {
		var err error
		if path, err = paths.Expand(path); err != nil {
			s.Close()
			return nil, err
		}
	}
	logger.Debugf("Loading config from %s.", path)
	doc, err := config.Load(path)
	if err != nil {
		s.Close()
		return nil, err
	}
	for _, w := range doc.Warnings() {
		logger.Warn(w.Message)
	}
	s.doc = doc
	return s, nil
}

func (s *session) Close() {
	if s.closer != nil {
		_ = s.closer.Close()
	}
}

func (s *session) config() config.Config { return s.doc.Config() }

func (s *session) reconciler(opts tools.Options) (*tools.Reconciler, error) {
	cfg := s.config()
	forge, err := newForge(cfg, s.logger)
	if err != nil {
		return nil, err
	}
	return &tools.Reconciler{
		Forge:      forge,
		Resolver:   newResolver(s.logger),
		Logger:     s.logger,
		Platform:   currentPlatform(),
		InstallDir: cfg.Path,
		Options:    opts,
	}, nil
}
