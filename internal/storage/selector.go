package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"assistantmemory/internal/database"
	"assistantmemory/internal/logging"
)

// Options configures backend selection
type Options struct {
	Mode Mode
	// URI is the MongoDB connection string. Required for ModeDatabase,
	// optional for ModeAuto.
	URI string
	// Root is the File Store directory, DefaultRoot when empty.
	Root string
	// ConnectTimeout bounds the one-time connection attempt.
	ConnectTimeout time.Duration
}

// DefaultConnectTimeout applies when Options.ConnectTimeout is unset
const DefaultConnectTimeout = 5 * time.Second

// Connector dials the database backend. It is a parameter so selection can
// be exercised without a server.
type Connector func(ctx context.Context, uri string, timeout time.Duration) (Store, error)

// Open selects and opens the backend described by opts. It runs once at
// startup; the returned Store is used for the life of the process.
func Open(ctx context.Context, opts Options) (Store, error) {
	return OpenWith(ctx, opts, ConnectMongo)
}

// OpenWith is Open with an explicit database connector.
//
//	json     File Store, no connection is attempted
//	database connect or fail
//	auto     File Store without a URI; otherwise connect, falling back to the
//	         File Store on any failure
func OpenWith(ctx context.Context, opts Options, connect Connector) (Store, error) {
	log := logging.WithComponent("storage")
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Root == "" {
		opts.Root = DefaultRoot
	}

	switch opts.Mode {
	case ModeJSON:
		return openFiles(opts.Root, log.Info)

	case ModeDatabase:
		if opts.URI == "" {
			return nil, newError(KindUnavailable, "open", "", errors.New("database mode requires a connection string"))
		}
		store, err := connect(ctx, opts.URI, opts.ConnectTimeout)
		if err != nil {
			return nil, asUnavailable(err)
		}
		log.Info("storage backend selected", "mode", store.Mode())
		return store, nil

	case ModeAuto, "":
		if opts.URI == "" {
			log.Info("no database connection string configured, using file storage")
			return openFiles(opts.Root, log.Info)
		}
		store, err := connect(ctx, opts.URI, opts.ConnectTimeout)
		if err == nil {
			log.Info("storage backend selected", "mode", store.Mode())
			return store, nil
		}
		log.Warn("database unreachable, falling back to file storage; records will not be durable across hosts",
			"error", err,
			"root", opts.Root,
			"timeout", opts.ConnectTimeout)
		return openFiles(opts.Root, log.Warn)
	}

	return nil, newError(KindValidation, "open", "", fmt.Errorf("unknown storage mode %q", opts.Mode))
}

func openFiles(root string, logf func(msg string, args ...any)) (Store, error) {
	store, err := NewFileStore(root)
	if err != nil {
		return nil, err
	}
	logf("storage backend selected", "mode", store.Mode(), "root", root)
	return store, nil
}

// ConnectMongo dials MongoDB and creates the collection indexes
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (Store, error) {
	db, err := database.NewMongoDB(ctx, uri, timeout)
	if err != nil {
		return nil, newError(KindUnavailable, "connect", "", err)
	}

	store := NewMongoStore(db)

	indexCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := store.EnsureIndexes(indexCtx); err != nil {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), timeout)
		defer cancelClose()
		_ = store.Close(closeCtx)
		return nil, err
	}
	logging.WithComponent("storage").Info("mongodb indexes ready", "database", db.Name())
	return store, nil
}

func asUnavailable(err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	return newError(KindUnavailable, "connect", "", err)
}
