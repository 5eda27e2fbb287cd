package symsql

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jward/symsql/internal/dispatch"
	"github.com/jward/symsql/internal/repo"
	"github.com/jward/symsql/internal/repo/dwarfrepo"
	"github.com/jward/symsql/internal/repo/memrepo"
	"github.com/jward/symsql/internal/tables"
	"github.com/jward/symsql/internal/vtab"
)

// Engine exposes one symbol repository as SQL tables. All statements, and
// every repository call made on their behalf, run on the Engine's single
// dispatcher worker.
type Engine struct {
	repo     repo.Repository
	registry *tables.Registry
	db       *sql.DB
	disp     *dispatch.Dispatcher
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// IsSnapshot reports whether path names a repository snapshot rather than
// a binary.
func IsSnapshot(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadRepository opens path as a snapshot (.yaml, .yml or .json) or as a
// binary carrying DWARF debug information.
func LoadRepository(path string, logger *slog.Logger) (*memrepo.Repo, error) {
	if IsSnapshot(path) {
		return memrepo.Load(path)
	}
	return dwarfrepo.Load(path, dwarfrepo.WithLogger(logger))
}

// Open loads the repository at path and returns an Engine over it. The
// Engine owns the repository and closes it on Close.
func Open(path string, opts ...Option) (*Engine, error) {
	probe := &Engine{logger: discard()}
	for _, opt := range opts {
		opt(probe)
	}
	r, err := LoadRepository(path, probe.logger)
	if err != nil {
		return nil, fmt.Errorf("symsql: load %s: %w", path, err)
	}
	e, err := New(r, opts...)
	if err != nil {
		r.Close()
		return nil, err
	}
	return e, nil
}

// New builds an Engine over an open repository. On success the Engine
// takes ownership of r; on error the caller keeps it.
func New(r repo.Repository, opts ...Option) (*Engine, error) {
	e := &Engine{
		repo:     r,
		registry: tables.New(r),
		logger:   discard(),
	}
	for _, opt := range opts {
		opt(e)
	}

	db, err := vtab.OpenDB(e.registry.Tables())
	if err != nil {
		return nil, fmt.Errorf("symsql: open sqlite: %w", err)
	}
	e.db = db
	e.disp = dispatch.New(dispatch.QueryDB(db), dispatch.WithLogger(e.logger))

	// The first connection registers every module. Open it on the worker.
	if err := e.disp.Do(context.Background(), "connect", func(ctx context.Context) error {
		return db.PingContext(ctx)
	}); err != nil {
		e.disp.Close()
		db.Close()
		return nil, fmt.Errorf("symsql: connect: %w", err)
	}

	e.logger.Info("symsql: engine ready", "path", r.Path(), "tables", len(e.registry.Tables()))
	return e, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Close stops the dispatcher, then releases SQLite and the repository.
// Queued statements fail with ErrStopped.
func (e *Engine) Close() error {
	e.disp.Close()
	dbErr := e.db.Close()
	repoErr := e.repo.Close()
	if dbErr != nil {
		return fmt.Errorf("symsql: close sqlite: %w", dbErr)
	}
	if repoErr != nil {
		return fmt.Errorf("symsql: close repository: %w", repoErr)
	}
	return nil
}

// Path returns the path of the loaded repository.
func (e *Engine) Path() string { return e.repo.Path() }

// Query runs one SQL statement and waits for its rows.
func (e *Engine) Query(ctx context.Context, query string) (*Result, error) {
	return e.disp.Run(ctx, query)
}

// Submit queues one SQL statement and returns its job without waiting.
func (e *Engine) Submit(query string) (*Job, error) {
	return e.disp.Submit(query)
}

// Count returns the number of entries with tag, asking the repository on
// the worker.
func (e *Engine) Count(ctx context.Context, tag Tag) (int, error) {
	var n int
	err := e.disp.Do(ctx, "count "+tag.String(), func(context.Context) error {
		var err error
		n, err = e.repo.Count(tag)
		return err
	})
	return n, err
}

// Tables describes every table in declaration order.
func (e *Engine) Tables() []TableInfo {
	out := make([]TableInfo, 0, len(e.registry.Tables()))
	for _, t := range e.registry.Tables() {
		out = append(out, describe(t))
	}
	return out
}

// Table describes one table.
func (e *Engine) Table(name string) (TableInfo, bool) {
	t, ok := e.registry.Table(name)
	if !ok {
		return TableInfo{}, false
	}
	return describe(t), true
}

// TableNames lists the table names in declaration order.
func (e *Engine) TableNames() []string {
	return e.registry.Names()
}

func describe(t vtab.Table) TableInfo {
	info := TableInfo{Name: t.Name(), Schema: t.Schema()}
	for _, c := range t.Columns() {
		info.Columns = append(info.Columns, ColumnInfo{Name: c.Name, Type: c.Type.SQL()})
	}
	for _, f := range t.Filters() {
		info.Indexed = append(info.Indexed, f.Column)
	}
	return info
}

// Status summarizes the Engine for health reporting.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	n, err := e.Count(ctx, repo.TagFunction)
	if err != nil {
		return Status{}, err
	}
	return Status{Path: e.Path(), Functions: n}, nil
}
