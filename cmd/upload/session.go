package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	// Packages
	httpclient "github.com/mutablelogic/go-upload/httpclient"
	schema "github.com/mutablelogic/go-upload/schema"
)

///////////////////////////////////////////////////////////////////////////////
// TYPES

type SessionCommands struct {
	Upload   UploadCommand          `cmd:"" group:"SESSIONS" help:"Upload a file in chunks"`
	Init     InitSessionCommand     `cmd:"" group:"SESSIONS" help:"Initialize an upload session"`
	Put      PutChunkCommand        `cmd:"" group:"SESSIONS" help:"Upload one chunk of a file"`
	Sessions ListSessionsCommand    `cmd:"" group:"SESSIONS" help:"List upload sessions"`
	Session  GetSessionCommand      `cmd:"" group:"SESSIONS" help:"Get an upload session"`
	Complete CompleteSessionCommand `cmd:"" group:"SESSIONS" help:"Complete an upload session"`
	Cancel   CancelSessionCommand   `cmd:"" group:"SESSIONS" help:"Cancel an upload session"`
}

type UploadCommand struct {
	Path      string `arg:"" type:"existingfile" help:"File to upload"`
	ChunkSize int64  `name:"chunk-size" help:"Chunk size in bytes"`
	Parallel  int    `name:"parallel" help:"Number of chunks uploaded concurrently"`
}

type InitSessionCommand struct {
	Path      string `arg:"" type:"existingfile" help:"File the session is for"`
	ChunkSize int64  `name:"chunk-size" help:"Chunk size in bytes"`
}

type PutChunkCommand struct {
	Id    string `arg:"" help:"Session identifier"`
	Path  string `arg:"" type:"existingfile" help:"File to read the chunk from"`
	Index int64  `arg:"" help:"Chunk index"`
}

type ListSessionsCommand struct {
	Status string `name:"status" help:"Filter by status"`
	Offset uint64 `name:"offset" help:"Number of sessions to skip"`
	Limit  uint64 `name:"limit" help:"Maximum number of sessions to return"`
}

type GetSessionCommand struct {
	Id string `arg:"" help:"Session identifier"`
}

type CompleteSessionCommand struct {
	GetSessionCommand
}

type CancelSessionCommand struct {
	GetSessionCommand
}

///////////////////////////////////////////////////////////////////////////////
// PUBLIC METHODS

func (cmd *UploadCommand) Run(app *Globals) error {
	c, err := app.Client()
	if err != nil {
		return err
	}

	// Open the file
	file, err := os.Open(cmd.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return err
	}

	// Upload the chunks
	opts := []httpclient.UploadOpt{}
	if cmd.Parallel > 0 {
		opts = append(opts, httpclient.WithParallel(cmd.Parallel))
	}
	now := time.Now()
	opts = append(opts, httpclient.WithProgress(func(received, total int64) {
		if time.Since(now) > time.Second {
			fmt.Printf("Uploaded %v/%v chunks (%.1f%%)\r", received, total, float64(received)/float64(total)*100)
			now = time.Now()
		}
	}))

	response, err := c.Upload(app.ctx, file, schema.UploadMeta{
		FileName:  filepath.Base(cmd.Path),
		FileSize:  info.Size(),
		MimeType:  mime.TypeByExtension(filepath.Ext(cmd.Path)),
		ChunkSize: cmd.ChunkSize,
	}, opts...)
	if err != nil {
		return err
	}
	return prettyJSON(response)
}

func (cmd *InitSessionCommand) Run(app *Globals) error {
	c, err := app.Client()
	if err != nil {
		return err
	}
	info, err := os.Stat(cmd.Path)
	if err != nil {
		return err
	}
	session, err := c.CreateUpload(app.ctx, schema.UploadMeta{
		FileName:  filepath.Base(cmd.Path),
		FileSize:  info.Size(),
		MimeType:  mime.TypeByExtension(filepath.Ext(cmd.Path)),
		ChunkSize: cmd.ChunkSize,
	})
	if err != nil {
		return err
	}
	return prettyJSON(session)
}

func (cmd *PutChunkCommand) Run(app *Globals) error {
	c, err := app.Client()
	if err != nil {
		return err
	}

	// The session fixes the chunk geometry, so read the chunk for the
	// index from the file at the session's chunk size
	session, err := c.GetUpload(app.ctx, cmd.Id)
	if err != nil {
		return err
	}
	file, err := os.Open(cmd.Path)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.Seek(cmd.Index*session.ChunkSize, io.SeekStart); err != nil {
		return err
	}
	data := make([]byte, session.ChunkSize)
	n, err := io.ReadFull(file, data)
	if err != nil && err != io.ErrUnexpectedEOF {
		return err
	}

	response, err := c.WriteChunk(app.ctx, cmd.Id, cmd.Index, data[:n])
	if err != nil {
		return err
	}
	return prettyJSON(response)
}

func (cmd *ListSessionsCommand) Run(app *Globals) error {
	c, err := app.Client()
	if err != nil {
		return err
	}
	opts := []httpclient.ListOpt{}
	if cmd.Status != "" {
		opts = append(opts, httpclient.WithStatus(schema.Status(cmd.Status)))
	}
	if cmd.Offset > 0 || cmd.Limit > 0 {
		opts = append(opts, httpclient.WithOffsetLimit(cmd.Offset, cmd.Limit))
	}
	list, err := c.ListUploads(app.ctx, opts...)
	if err != nil {
		return err
	}
	return prettyJSON(list)
}

func (cmd *GetSessionCommand) Run(app *Globals) error {
	c, err := app.Client()
	if err != nil {
		return err
	}
	session, err := c.GetUpload(app.ctx, cmd.Id)
	if err != nil {
		return err
	}
	return prettyJSON(session)
}

func (cmd *CompleteSessionCommand) Run(app *Globals) error {
	c, err := app.Client()
	if err != nil {
		return err
	}
	response, err := c.CompleteUpload(app.ctx, cmd.Id)
	if err != nil {
		return err
	}
	return prettyJSON(response)
}

func (cmd *CancelSessionCommand) Run(app *Globals) error {
	c, err := app.Client()
	if err != nil {
		return err
	}
	return c.CancelUpload(app.ctx, cmd.Id)
}

///////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

func prettyJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
