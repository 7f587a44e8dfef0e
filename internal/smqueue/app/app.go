// Package app assembles the smqueue server: configuration, subscriber
// directory, CDR sink, SIP socket, queue engine and management API.
package app

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"syscall"

	"github.com/sebas/smqueue/internal/logger"
	"github.com/sebas/smqueue/internal/smqueue/api"
	"github.com/sebas/smqueue/internal/smqueue/cdr"
	"github.com/sebas/smqueue/internal/smqueue/config"
	"github.com/sebas/smqueue/internal/smqueue/engine"
	"github.com/sebas/smqueue/internal/smqueue/hlr"
	"github.com/sebas/smqueue/internal/smqueue/transport"
)

type SMQueue struct {
	cfg       *config.Config
	dir       *hlr.SQLiteDirectory
	rec       cdr.Recorder
	conn      *transport.UDP
	eng       *engine.Engine
	apiServer *api.Server

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewServer wires everything together. Nothing is running yet; call Run.
func NewServer(cfg *config.Config) (*SMQueue, error) {
	logger.SetLevel(cfg.GetStr("Log.Level"))

	dir, err := hlr.OpenSQLite(cfg.GetStr("SubscriberRegistry.db"))
	if err != nil {
		return nil, fmt.Errorf("open subscriber registry: %w", err)
	}

	var rec cdr.Recorder = cdr.NopRecorder{}
	if cfg.Defined("CDRFile") {
		fr, err := cdr.NewFileRecorder(cfg.GetStr("CDRFile"))
		if err != nil {
			dir.Close()
			return nil, fmt.Errorf("open CDR file: %w", err)
		}
		rec = fr
	}

	bind := fmt.Sprintf("0.0.0.0:%d", cfg.GetInt("SIP.myPort"))
	conn, err := transport.Listen(bind)
	if err != nil {
		rec.Close()
		dir.Close()
		return nil, fmt.Errorf("bind SIP socket: %w", err)
	}

	eng := engine.New(cfg, dir, rec, conn)

	s := &SMQueue{
		cfg:        cfg,
		dir:        dir,
		rec:        rec,
		conn:       conn,
		eng:        eng,
		shutdownCh: make(chan struct{}),
	}
	s.apiServer = api.NewServer(cfg.GetStr("NodeManager.API.Bind"), cfg, eng, s)

	if savefile := cfg.GetStr("savefile"); savefile != "" {
		if err := eng.LoadQueue(savefile); err != nil {
			slog.Warn("could not reload saved queue", "file", savefile, "err", err)
		}
	}

	return s, nil
}

// RequestShutdown asks the server to stop. Safe from any goroutine.
func (s *SMQueue) RequestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
}

// Run starts the server and blocks until a shutdown is requested, either
// through stop (usually wired to signals), the management API, or a
// short-code command. The queue is saved on the way out, and the process
// re-execs itself if a short code asked for that.
func (s *SMQueue) Run(stop <-chan struct{}) error {
	if err := s.apiServer.Start(); err != nil {
		return fmt.Errorf("start API server: %w", err)
	}
	s.eng.Start()

	select {
	case <-stop:
		slog.Info("shutting down on signal")
	case <-s.shutdownCh:
		slog.Info("shutting down on management request")
	case <-s.eng.Done():
		slog.Info("shutting down on short-code command")
	}

	s.eng.Stop()
	if savefile := s.cfg.GetStr("savefile"); savefile != "" {
		if err := s.eng.SaveQueue(savefile); err != nil {
			slog.Error("failed to save queue on shutdown", "err", err)
		}
	}
	s.apiServer.Stop()
	s.rec.Close()
	s.dir.Close()

	if s.eng.ReexecRequested() {
		slog.Info("re-executing", "argv0", os.Args[0])
		if err := syscall.Exec(os.Args[0], os.Args, os.Environ()); err != nil {
			return fmt.Errorf("re-exec: %w", err)
		}
	}
	return nil
}
