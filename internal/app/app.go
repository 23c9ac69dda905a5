/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX Tilawah project.
 * This code is provided "as is", without warranty of any kind.
 */

// Package app wires config, logging, the chapter cache and the audio
// device into an engine for the tilawah binaries.
package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/faiface/beep"
	"go.uber.org/zap"

	"tilawah/internal/alquran"
	"tilawah/internal/audio"
	"tilawah/internal/config"
	"tilawah/internal/engine"
	"tilawah/internal/logging"
	"tilawah/internal/playback"
	"tilawah/internal/store"
)

// LastChapterKey is the app_state key holding the most recently opened
// chapter.
const LastChapterKey = "last.chapter"

type Options struct {
	ConfigPath string
	// Verbose forces debug logging.
	Verbose bool
	// LogFile overrides the configured log file.
	LogFile string
	NoCache bool
}

// App holds the shared dependencies of one process.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Store    *store.Store // nil when the cache is disabled
	Provider engine.Provider
	HTTP     *http.Client
}

func New(o Options) (*App, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if o.NoCache {
		cfg.Cache.Enabled = false
	}

	lo := logging.Options{Level: cfg.Log.Level, File: cfg.Log.File, Development: cfg.Log.Development}
	if o.Verbose {
		lo.Level = "debug"
	}
	if o.LogFile != "" {
		lo.File = o.LogFile
	}
	log, err := logging.New(lo)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, Log: log, HTTP: &http.Client{}}
	client := alquran.New(
		alquran.WithBaseURL(cfg.API.BaseURL),
		alquran.WithTimeout(cfg.API.Timeout),
		alquran.WithHTTPClient(a.HTTP),
		alquran.WithLogger(log),
	)
	a.Provider = client

	if cfg.Cache.Enabled {
		st, err := store.Open(cfg.Cache.Path)
		if err != nil {
			// run uncached
			log.Warn("chapter cache unavailable", zap.String("path", cfg.Cache.Path), zap.Error(err))
		} else {
			a.Store = st
			a.Provider = store.NewCachedProvider(client, st, cfg.Cache.TTL, log)
		}
	}

	log.Debug("app ready",
		zap.String("config", cfg.Path()),
		zap.Bool("cache", a.Store != nil),
		zap.String("translation", cfg.Editions.Translation),
		zap.String("reciter", cfg.Editions.Audio))
	return a, nil
}

// OpenOutput initializes the sound card at the configured rate.
func (a *App) OpenOutput() (audio.Output, error) {
	out, err := audio.InitSpeaker(beep.SampleRate(a.Config.Audio.SampleRate), a.Config.Audio.BufferMs)
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	return out, nil
}

// NewEngine builds an engine playing through out. The returned speaker
// must be closed after the engine has stopped. With remember set, every
// opened chapter is saved as the last chapter.
func (a *App) NewEngine(out audio.Output, remember bool) (*engine.Engine, *audio.Speaker) {
	var spk *audio.Speaker
	opts := engine.Options{Editions: a.Config.Editions, Logger: a.Log}
	if remember && a.Store != nil {
		opts.OnOpen = func(n int) {
			ctx := context.Background()
			if err := a.Store.SetAppState(ctx, LastChapterKey, strconv.Itoa(n)); err != nil {
				a.Log.Warn("save last chapter", zap.Int("chapter", n), zap.Error(err))
			}
		}
	}
	eng := engine.New(a.Provider, func(sink playback.EventSink) playback.Device {
		spk = audio.NewSpeaker(out, sink, audio.Options{
			Rate:       beep.SampleRate(a.Config.Audio.SampleRate),
			Volume:     a.Config.Audio.Volume,
			HTTPClient: a.HTTP,
			Logger:     a.Log,
		})
		return spk
	}, opts)
	return eng, spk
}

// LastChapter returns the chapter saved by a remembering engine.
func (a *App) LastChapter(ctx context.Context) (int, bool) {
	if a.Store == nil {
		return 0, false
	}
	v, ok, err := a.Store.GetAppState(ctx, LastChapterKey)
	if err != nil || !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (a *App) Close() error {
	var err error
	if a.Store != nil {
		err = a.Store.Close()
	}
	_ = a.Log.Sync()
	return err
}
