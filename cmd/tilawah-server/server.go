/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX Tilawah project.
 * This code is provided "as is", without warranty of any kind.
 */

package main

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tilawah/internal/app"
	"tilawah/internal/config"
	"tilawah/internal/ipc"
	"tilawah/internal/quran"
	"tilawah/internal/web"
)

func serve(ctx context.Context, a *app.App, resume bool) error {
	log := a.Log
	cfg := a.Config

	out, err := a.OpenOutput()
	if err != nil {
		return err
	}
	eng, spk := a.NewEngine(out, true)
	defer spk.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return ipc.NewServer(eng, cfg.Server.Socket, log).Serve(gctx) })

	if cfg.Server.HTTPAddr != "" {
		g.Go(func() error { return web.New(eng, log).Serve(gctx, cfg.Server.HTTPAddr) })
		if cfg.Server.MDNS {
			withdraw, err := web.Advertise(cfg.Server.HTTPAddr, log)
			if err != nil {
				log.Warn("mdns disabled", zap.Error(err))
			} else {
				defer withdraw()
			}
		}
	}

	g.Go(func() error {
		err := config.Watch(gctx, cfg.Path(), log, func(next *config.Config) {
			applyEditions(gctx, eng, log, next.Editions)
		})
		if err != nil {
			// reloading is optional
			log.Warn("config reload disabled", zap.Error(err))
		}
		return nil
	})

	if resume {
		if n, ok := a.LastChapter(ctx); ok {
			g.Go(func() error {
				if err := eng.Open(gctx, n); err != nil {
					log.Warn("resume last chapter", zap.Int("chapter", n), zap.Error(err))
				} else {
					log.Info("resumed chapter", zap.Int("chapter", n))
				}
				return nil
			})
		}
	}

	log.Info("server started",
		zap.String("socket", cfg.Server.Socket),
		zap.String("http", cfg.Server.HTTPAddr),
		zap.String("session", eng.Session()))

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	log.Info("server stopped", zap.Error(err))
	return err
}

// editionSwitcher is the part of the engine a config reload touches.
type editionSwitcher interface {
	Editions(ctx context.Context) (quran.Editions, error)
	SetTranslation(ctx context.Context, edition string) error
	SetReciter(ctx context.Context, edition string) error
}

// applyEditions switches the engine to the reloaded editions. The text
// edition only applies to chapters opened afterwards.
func applyEditions(ctx context.Context, eng editionSwitcher, log *zap.Logger, next quran.Editions) {
	cur, err := eng.Editions(ctx)
	if err != nil {
		log.Warn("config reload", zap.Error(err))
		return
	}
	if next.Translation != cur.Translation {
		if err := eng.SetTranslation(ctx, next.Translation); err != nil {
			log.Warn("switch translation", zap.String("edition", next.Translation), zap.Error(err))
		} else {
			log.Info("translation switched", zap.String("edition", next.Translation))
		}
	}
	if next.Audio != cur.Audio {
		if err := eng.SetReciter(ctx, next.Audio); err != nil {
			log.Warn("switch reciter", zap.String("edition", next.Audio), zap.Error(err))
		} else {
			log.Info("reciter switched", zap.String("edition", next.Audio))
		}
	}
}
