/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX Tilawah project.
 * This code is provided "as is", without warranty of any kind.
 */

// Package ipc is the line-based control socket. Any connection may read;
// the first connection to issue a control verb owns playback until it
// disconnects, and receives an EVENT line for every snapshot.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"tilawah/internal/alquran"
	"tilawah/internal/engine"
	"tilawah/internal/playback"
	"tilawah/internal/quran"
	"tilawah/pkg/spec"
)

// Engine is the part of the engine the socket drives.
type Engine interface {
	Open(ctx context.Context, number int) error
	Back(ctx context.Context) error
	PlayChapter(ctx context.Context) error
	PlayVerse(ctx context.Context, n int) error
	TogglePause(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Stop(ctx context.Context) error
	SetTranslation(ctx context.Context, edition string) error
	SetReciter(ctx context.Context, edition string) error
	ListChapters(ctx context.Context, term string) ([]quran.ChapterSummary, error)
	Chapter() *quran.Chapter
	Snapshot() engine.Snapshot
	Subscribe(ctx context.Context) <-chan engine.Snapshot
}

type Server struct {
	eng  Engine
	path string
	log  *zap.Logger

	controlMu    sync.Mutex
	controlOwner *conn
}

func NewServer(eng Engine, socketPath string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{eng: eng, path: socketPath, log: log.Named("ipc")}
}

// conn serializes writes from the request loop and the event pump.
type conn struct {
	net.Conn
	wmu    sync.Mutex
	cancel context.CancelFunc
}

func (c *conn) writeLine(s string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_, err := c.Write([]byte(s + "\n"))
	return err
}

func (s *Server) isOwner(c *conn) bool {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	return s.controlOwner == c
}

// claimOwner makes c the owner if nobody is. It reports whether c owns
// control and whether it just became owner.
func (s *Server) claimOwner(c *conn) (owner, claimed bool) {
	s.controlMu.Lock()
	defer s.controlMu.Unlock()
	if s.controlOwner == nil {
		s.controlOwner = c
		return true, true
	}
	return s.controlOwner == c, false
}

func (s *Server) releaseOwner(c *conn) {
	s.controlMu.Lock()
	owned := s.controlOwner == c
	if owned {
		s.controlOwner = nil
	}
	s.controlMu.Unlock()
	if !owned {
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	if err := s.eng.Stop(context.Background()); err != nil && !errors.Is(err, engine.ErrStopped) {
		s.log.Warn("stop on owner release failed", zap.Error(err))
	}
	s.log.Info("control released")
}

// Serve listens on the socket until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	_ = os.Remove(s.path)
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", s.path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.path, err)
	}
	s.log.Info("control socket ready", zap.String("path", s.path))

	var wg sync.WaitGroup
	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	var conns sync.Map
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				conns.Range(func(k, _ any) bool {
					k.(*conn).Close()
					return true
				})
				wg.Wait()
				_ = os.Remove(s.path)
				return nil
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}
		c := &conn{Conn: nc}
		conns.Store(c, struct{}{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conns.Delete(c)
			s.handleConn(ctx, c)
		}()
	}
}

func argInt(arg string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return 0, false
	}
	return v, true
}

// errCode maps an engine error to its ERR code.
func errCode(err error) string {
	switch {
	case errors.Is(err, alquran.ErrTranslationUnavailable):
		return "TRANSLATION_UNAVAILABLE"
	case errors.Is(err, alquran.ErrDataUnavailable):
		return "DATA_UNAVAILABLE"
	case errors.Is(err, playback.ErrNoChapter):
		return "NO_CHAPTER"
	case errors.Is(err, playback.ErrInvalidCommand):
		return "INVALID_COMMAND"
	case errors.Is(err, engine.ErrStopped):
		return "STOPPED"
	default:
		return "INTERNAL"
	}
}

func (s *Server) handleConn(ctx context.Context, c *conn) {
	defer func() {
		s.releaseOwner(c)
		c.Close()
	}()

	sc := bufio.NewScanner(c)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, " ", 2)
		cmd := strings.ToUpper(parts[0])
		arg := ""
		if len(parts) == 2 {
			arg = strings.TrimSpace(parts[1])
		}

		if reply, ok := s.readOnly(ctx, c, cmd, arg); ok {
			if err := c.writeLine(reply); err != nil {
				return
			}
			continue
		}

		if !controlVerbs[cmd] {
			if err := c.writeLine("ERR UNKNOWN"); err != nil {
				return
			}
			continue
		}

		owner, claimed := s.claimOwner(c)
		if !owner {
			_ = c.writeLine("ERR CONTROL_LOCKED")
			continue
		}
		if claimed {
			s.log.Info("control claimed")
			s.pumpEvents(ctx, c)
		}

		if err := c.writeLine(s.control(ctx, cmd, arg)); err != nil {
			return
		}
	}
}

// readOnly answers verbs that need no ownership.
func (s *Server) readOnly(ctx context.Context, c *conn, cmd, arg string) (string, bool) {
	switch cmd {
	case "ABOUT":
		return fmt.Sprintf("%s V.%d.%d", spec.ServerName, spec.VersionMajor, spec.VersionMinor), true

	case "PING":
		return "Pong", true

	case "WHOAMI":
		if s.isOwner(c) {
			return "OWNER", true
		}
		return "OBSERVER", true

	case "STATUS":
		return mustJSON(s.eng.Snapshot()), true

	case "LIST-CHAPTERS":
		list, err := s.eng.ListChapters(ctx, arg)
		if err != nil {
			return "ERR " + errCode(err), true
		}
		if len(list) == 0 {
			return "NO CHAPTER MATCHES", true
		}
		return mustJSON(list), true

	case "SHOW":
		ch := s.eng.Chapter()
		if ch == nil {
			return "ERR NO_CHAPTER", true
		}
		return mustJSON(ch), true
	}
	return "", false
}

// controlVerbs are the verbs that claim ownership.
var controlVerbs = map[string]bool{
	"OPEN": true, "PLAY-CHAPTER": true, "PLAY-VERSE": true, "TOGGLE": true,
	"PAUSE": true, "RESUME": true, "STOP": true, "BACK": true,
	"TRANSLATION": true, "RECITER": true,
}

// control runs a verb that requires ownership.
func (s *Server) control(ctx context.Context, cmd, arg string) string {
	var err error
	var ok string

	switch cmd {
	case "OPEN":
		n, valid := argInt(arg)
		if !valid {
			return "ERR ARG"
		}
		err, ok = s.eng.Open(ctx, n), "Chapter Opened"
		if errors.Is(err, alquran.ErrTranslationUnavailable) {
			return "Chapter Opened (translation unavailable)"
		}

	case "PLAY-CHAPTER":
		err, ok = s.eng.PlayChapter(ctx), "Chapter Playing"

	case "PLAY-VERSE":
		n, valid := argInt(arg)
		if !valid {
			return "ERR ARG"
		}
		err, ok = s.eng.PlayVerse(ctx, n), "Verse Playing"

	case "TOGGLE":
		err, ok = s.eng.TogglePause(ctx), "Toggled"

	case "PAUSE":
		err, ok = s.eng.Pause(ctx), "Paused"

	case "RESUME":
		err, ok = s.eng.Resume(ctx), "Resume Playing"

	case "STOP":
		err, ok = s.eng.Stop(ctx), "Stopped"

	case "BACK":
		err, ok = s.eng.Back(ctx), "Closed"

	case "TRANSLATION":
		if arg == "" {
			return "ERR ARG"
		}
		err, ok = s.eng.SetTranslation(ctx, arg), "Translation Set"

	case "RECITER":
		if arg == "" {
			return "ERR ARG"
		}
		err, ok = s.eng.SetReciter(ctx, arg), "Reciter Set"

	default:
		return "ERR UNKNOWN"
	}

	if err != nil {
		s.log.Debug("command failed", zap.String("verb", cmd), zap.Error(err))
		return "ERR " + errCode(err)
	}
	return ok
}

// pumpEvents forwards snapshots to the owner until it releases control.
func (s *Server) pumpEvents(ctx context.Context, c *conn) {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	snaps := s.eng.Subscribe(ctx)
	// the current state is not news to the new owner
	<-snaps
	go func() {
		for snap := range snaps {
			if err := c.writeLine("EVENT " + mustJSON(snap)); err != nil {
				c.Close()
			}
		}
	}()
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{"error":` + strconv.Quote(err.Error()) + `}`
	}
	return string(b)
}
