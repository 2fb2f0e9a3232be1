package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	// Packages
	server "github.com/mutablelogic/go-server"
	httprouter "github.com/mutablelogic/go-server/pkg/httprouter"
	httpserver "github.com/mutablelogic/go-server/pkg/httpserver"
	backend "github.com/mutablelogic/go-upload/backend"
	httphandler "github.com/mutablelogic/go-upload/httphandler"
	manager "github.com/mutablelogic/go-upload/manager"
	schema "github.com/mutablelogic/go-upload/schema"
	version "github.com/mutablelogic/go-upload/version"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type ServerCommands struct {
	Server RunServerCommand `cmd:"" name:"server" help:"Run HTTP server." group:"SERVER"`
}

type RunServerCommand struct {
	Backend    string        `name:"backend" default:"mem://" help:"Blob backend URL (mem://, file://path, s3://bucket)."`
	TTL        time.Duration `name:"ttl" help:"Session expiry window."`
	Sweep      time.Duration `name:"sweep" help:"Expiry sweep interval."`
	S3Endpoint string        `name:"s3-endpoint" env:"S3_ENDPOINT" help:"S3 endpoint for S3-compatible services."`
	S3Region   string        `name:"s3-region" env:"AWS_REGION" help:"AWS region."`
	S3Profile  string        `name:"s3-profile" env:"AWS_PROFILE" help:"AWS shared config profile."`
	S3Access   string        `name:"s3-access-key" env:"AWS_ACCESS_KEY_ID" help:"Static S3 access key."`
	S3Secret   string        `name:"s3-secret-key" env:"AWS_SECRET_ACCESS_KEY" help:"Static S3 secret key."`
}

///////////////////////////////////////////////////////////////////////////////
// COMMANDS

func (cmd *RunServerCommand) Run(ctx *Globals) error {
	// Gather backend options
	var backendOpts []backend.Opt
	if cmd.S3Endpoint != "" {
		backendOpts = append(backendOpts, backend.WithEndpoint(cmd.S3Endpoint))
	}
	if strings.HasPrefix(cmd.Backend, "s3://") && (cmd.S3Region != "" || cmd.S3Profile != "" || cmd.S3Access != "") {
		var creds *backend.AWSCredentials
		if cmd.S3Access != "" {
			creds = &backend.AWSCredentials{AccessKey: cmd.S3Access, SecretKey: cmd.S3Secret}
		}
		cfg, err := backend.LoadAWSConfig(ctx.ctx, cmd.S3Region, cmd.S3Profile, creds)
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		backendOpts = append(backendOpts, backend.WithAWSConfig(cfg))
	}

	// Create the manager
	opts := []manager.Opt{
		manager.WithBackend(ctx.ctx, cmd.Backend, backendOpts...),
	}
	if cmd.TTL > 0 {
		opts = append(opts, manager.WithSessionTTL(cmd.TTL))
	}
	mgr, err := manager.New(ctx.ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer mgr.Close()

	return serve(ctx, cmd, mgr)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// serve registers HTTP handlers and runs the server until context is done.
func serve(ctx *Globals, cmd *RunServerCommand, mgr *manager.Manager) error {
	// Build middleware
	middleware := []httprouter.HTTPMiddlewareFunc{}
	if mw, ok := ctx.logger.(server.HTTPMiddleware); ok {
		middleware = append(middleware, mw.WrapFunc)
	}

	// Create the router
	router, err := httprouter.NewRouter(ctx.ctx, ctx.HTTP.Prefix, ctx.HTTP.Origin, "upload", version.Version(), middleware...)
	if err != nil {
		return fmt.Errorf("failed to create router: %w", err)
	}

	// Register upload HTTP handlers
	httphandler.RegisterHandlers(ctx.ctx, router, mgr)

	// Create the HTTP server
	srv, err := httpserver.New(ctx.HTTP.Addr, http.Handler(router), nil)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Sweep expired sessions in the background
	go sweep(ctx, mgr, cmd.Sweep)

	ctx.logger.Printf(ctx.ctx, "upload@%s started on %s", version.Version(), ctx.HTTP.Addr)
	if err := srv.Run(ctx.ctx); err != nil {
		return err
	}
	ctx.logger.Printf(context.Background(), "upload stopped")
	return nil
}

// sweep marks expired sessions and reclaims their chunk storage until
// the context is done.
func sweep(ctx *Globals, mgr *manager.Manager, interval time.Duration) {
	if interval <= 0 {
		interval = schema.DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.ctx.Done():
			return
		case <-ticker.C:
			if count, err := mgr.PurgeExpired(ctx.ctx, time.Now()); err != nil {
				ctx.logger.Printf(ctx.ctx, "expiry sweep: %v", err)
			} else if count > 0 {
				ctx.logger.Printf(ctx.ctx, "expired %d upload sessions", count)
			}
		}
	}
}
