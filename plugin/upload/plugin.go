package main

import (
	// Packages
	server "github.com/mutablelogic/go-server"
	upload "github.com/mutablelogic/go-upload/config"
)

////////////////////////////////////////////////////////////////////////////////
// LIFECYCLE

func Plugin() server.Plugin {
	return upload.Config{}
}
