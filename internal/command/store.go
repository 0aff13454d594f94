package command

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/joeycumines/truetest/internal/attributes"
	"github.com/joeycumines/truetest/internal/config"
	"github.com/joeycumines/truetest/internal/logging"
	"github.com/joeycumines/truetest/internal/session"
	"github.com/joeycumines/truetest/internal/storage"
)

// storeFlags are the flags shared by every command that opens the session
// store.
type storeFlags struct {
	cfg      *config.Config
	session  string
	backend  string
	logFile  string
	logLevel string

	// detector resolves session ids; nil means session.NewDetector.
	detector *session.Detector
}

func (f *storeFlags) registerStoreFlags(fs *flag.FlagSet) {
	fs.StringVar(&f.session, "session", "", "Session ID (overrides auto-detection)")
	fs.StringVar(&f.backend, "backend", "", "Storage backend: fs, memory or sqlite")
	fs.StringVar(&f.logFile, "log-file", "", "Write JSON logs to this file")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func (f *storeFlags) resolve(key string) string {
	return config.DefaultSchema().Resolve(f.cfg, key)
}

// resolveSession returns the session id: -session, then TRUETEST_SESSION_ID,
// then the session.id config value, then auto-detection.
func (f *storeFlags) resolveSession() (string, session.Source, error) {
	d := f.detector
	if d == nil {
		d = session.NewDetector()
	}
	explicit := f.session
	if explicit == "" && d.Getenv(session.EnvSessionID) == "" && f.cfg != nil {
		explicit = f.cfg.Global[config.KeySessionID]
	}
	return d.Resolve(explicit)
}

// storageOptions resolves the storage directory and quota.
func (f *storeFlags) storageOptions() (storage.Options, error) {
	opts := storage.Options{Dir: f.resolve(config.KeyStorageDir)}
	if q := f.resolve(config.KeyStorageQuota); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil {
			return opts, fmt.Errorf("invalid %s: %w", config.KeyStorageQuota, err)
		}
		opts.QuotaBytes = n
	}
	return opts, nil
}

// openSession is a store bound to a storage area for one command run.
type openSession struct {
	Store   *attributes.Store
	ID      string
	Source  session.Source
	Backend string
	Dir     string
	Logger  *logging.Logger
	area    storage.Area
}

// Close releases the storage area and the log file.
func (o *openSession) Close() error {
	return errors.Join(o.area.Close(), o.Logger.Close())
}

// warnIfNotPersisted reports a failed flush of the most recent mutation.
// The in-memory state still changed; only durability was lost.
func (o *openSession) warnIfNotPersisted(stderr io.Writer) {
	if err := o.Store.LastPersistError(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: session attributes were not saved: %v\n", err)
	}
}

// open configures the process-wide attribute store against the resolved
// session and backend.
func (f *storeFlags) open(stderr io.Writer) (_ *openSession, err error) {
	logger, err := logging.New(logging.Options{File: f.logFile, Level: f.logLevel}, f.cfg, stderr)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = logger.Close()
		}
	}()

	id, source, err := f.resolveSession()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session: %w", err)
	}

	backend := f.backend
	if backend == "" {
		backend = f.resolve(config.KeyStorageBack)
	}
	opts, err := f.storageOptions()
	if err != nil {
		return nil, err
	}
	sessionLogger := logger.With("session", id, "backend", backend)
	opts.Logger = sessionLogger

	area, err := storage.GetBackend(backend, id, opts)
	if err != nil {
		if errors.Is(err, storage.ErrWouldBlock) {
			return nil, fmt.Errorf("session %s is in use by another process: %w", id, err)
		}
		return nil, fmt.Errorf("failed to open %s storage: %w", backend, err)
	}

	if err := attributes.Configure(area, attributes.WithLogger(sessionLogger)); err != nil {
		_ = area.Close()
		return nil, err
	}
	sessionLogger.Debug("session opened", "source", source)

	return &openSession{
		Store:   attributes.Instance(),
		ID:      id,
		Source:  source,
		Backend: backend,
		Dir:     opts.Dir,
		Logger:  logger,
		area:    area,
	}, nil
}
