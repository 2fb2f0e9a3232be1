package config

import (
	"context"
	"net/url"
	"time"

	// Packages
	server "github.com/mutablelogic/go-server"
	backend "github.com/mutablelogic/go-upload/backend"
	httphandler "github.com/mutablelogic/go-upload/httphandler"
	manager "github.com/mutablelogic/go-upload/manager"
	schema "github.com/mutablelogic/go-upload/schema"
	sessionstore "github.com/mutablelogic/go-upload/sessionstore"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Config struct {
	Router server.HTTPRouter `kong:"-"` // HTTP Router
	Conn   server.PG         `kong:"-"` // Connection Pool

	Backend    string        `default:"mem://" help:"Blob backend URL (mem://, file://path, s3://bucket)"`
	S3Endpoint *url.URL      `name:"s3-endpoint" env:"S3_ENDPOINT" help:"S3 endpoint"`
	TTL        time.Duration `help:"Session expiry window"`
	Sweep      time.Duration `help:"Expiry sweep interval"`
}

type task struct {
	*manager.Manager
	sweep time.Duration
}

var _ server.Plugin = Config{}
var _ server.Task = (*task)(nil)

///////////////////////////////////////////////////////////////////////////////
// MODULE

func (c Config) New(ctx context.Context) (server.Task, error) {
	var backendOpts []backend.Opt
	if c.S3Endpoint != nil {
		backendOpts = append(backendOpts, backend.WithEndpoint(c.S3Endpoint.String()))
	}
	opts := []manager.Opt{
		manager.WithBackend(ctx, c.Backend, backendOpts...),
	}
	if c.TTL > 0 {
		opts = append(opts, manager.WithSessionTTL(c.TTL))
	}

	// Session state lives in postgresql when a connection pool is
	// provided, otherwise in process memory
	if c.Conn != nil {
		store, err := sessionstore.NewPGStore(ctx, c.Conn.Conn())
		if err != nil {
			return nil, err
		}
		opts = append(opts, manager.WithStore(store))
	}

	mgr, err := manager.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	// Router
	if c.Router != nil {
		httphandler.RegisterHandlers(ctx, c.Router, mgr)
	}

	sweep := c.Sweep
	if sweep <= 0 {
		sweep = schema.DefaultSweepInterval
	}
	return &task{mgr, sweep}, nil
}

func (Config) Name() string {
	return "upload"
}

func (Config) Description() string {
	return "Chunked upload session manager"
}

///////////////////////////////////////////////////////////////////////////////
// TASK

// Run sweeps expired sessions periodically until the context is done.
func (task *task) Run(ctx context.Context) error {
	ticker := time.NewTicker(task.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return task.Close()
		case <-ticker.C:
			_, _ = task.PurgeExpired(ctx, time.Now())
		}
	}
}
