package main

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Packages
	kong "github.com/alecthomas/kong"
	server "github.com/mutablelogic/go-server"
	logger "github.com/mutablelogic/go-server/pkg/logger/config"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type Globals struct {
	HTTP struct {
		Addr    string        `default:"localhost:8080" help:"HTTP listen address"`
		Prefix  string        `default:"/" help:"HTTP path prefix"`
		Origin  string        `default:"*" help:"CORS origin"`
		Timeout time.Duration `default:"30s" help:"HTTP client timeout"`
	} `embed:"" prefix:"http."`
	Debug bool `help:"Enable debug output"`
	Trace bool `help:"Enable trace output"`

	vars   kong.Vars `kong:"-"` // Variables for kong
	ctx    context.Context
	cancel context.CancelFunc
	logger server.Logger
}

///////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func NewApp(app Globals, vars kong.Vars) *Globals {
	// Set the vars
	app.vars = vars

	// Create the context
	// This context is cancelled when the process receives a SIGINT or SIGTERM
	app.ctx, app.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// Create the logger
	task, err := (logger.Config{Debug: app.Debug || app.Trace}).New(app.ctx)
	if err != nil {
		panic(err)
	}
	app.logger = task.(server.Logger)

	// Return the app
	return &app
}

func (app *Globals) Close() error {
	app.cancel()
	return nil
}

///////////////////////////////////////////////////////////////////////////////
// METHODS

func (app *Globals) Context() context.Context {
	return app.ctx
}

func (app *Globals) listenURL() *url.URL {
	return &url.URL{Scheme: "http", Host: app.HTTP.Addr, Path: app.HTTP.Prefix}
}
