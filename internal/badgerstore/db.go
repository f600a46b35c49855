package badgerstore

import (
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
)

type Options struct {
	Path     string
	InMemory bool
}

// Open opens the database with synchronous writes so a committed Append is durable.
func Open(opts Options, log *slog.Logger) (*badger.DB, error) {
	if log == nil {
		log = slog.Default()
	}
	bo := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	}
	bo = bo.WithSyncWrites(!opts.InMemory).
		WithLogger(slogLogger{log: log.With("component", "badger")}).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("open badger %q: %w", opts.Path, err)
	}
	return db, nil
}

// slogLogger routes badger's printf-style logging into slog.
type slogLogger struct {
	log *slog.Logger
}

func (l slogLogger) Errorf(f string, v ...any)   { l.log.Error(fmt.Sprintf(f, v...)) }
func (l slogLogger) Warningf(f string, v ...any) { l.log.Warn(fmt.Sprintf(f, v...)) }
func (l slogLogger) Infof(f string, v ...any)    { l.log.Info(fmt.Sprintf(f, v...)) }
func (l slogLogger) Debugf(f string, v ...any)   { l.log.Debug(fmt.Sprintf(f, v...)) }
