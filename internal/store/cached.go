package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tilawah/internal/alquran"
	"tilawah/internal/quran"
)

// Provider is the verse data source the cache sits in front of.
type Provider interface {
	ListChapters(ctx context.Context) ([]quran.ChapterSummary, error)
	Chapter(ctx context.Context, number int, ed quran.Editions) (*quran.Chapter, error)
	Translations(ctx context.Context, number int, edition string) (map[int]string, error)
}

// CachedProvider serves fresh cache entries and fetches through to the
// upstream provider otherwise. A failed refetch is reported even when a
// stale entry exists. Concurrent fetches of the same key share one request.
type CachedProvider struct {
	upstream Provider
	store    *Store
	ttl      time.Duration
	log      *zap.Logger
	flight   singleflight.Group
}

func NewCachedProvider(upstream Provider, st *Store, ttl time.Duration, log *zap.Logger) *CachedProvider {
	if log == nil {
		log = zap.NewNop()
	}
	return &CachedProvider{upstream: upstream, store: st, ttl: ttl, log: log.Named("cache")}
}

func (p *CachedProvider) ListChapters(ctx context.Context) ([]quran.ChapterSummary, error) {
	if e, ok, err := p.store.ChapterList(ctx); err != nil {
		p.log.Warn("cache read failed", zap.Error(err))
	} else if ok && e.Fresh(p.store.now(), p.ttl) {
		return e.Value, nil
	}

	v, err, _ := p.flight.Do("list", func() (interface{}, error) {
		list, err := p.upstream.ListChapters(ctx)
		if err != nil {
			return nil, err
		}
		if err := p.store.PutChapterList(ctx, list); err != nil {
			p.log.Warn("cache write failed", zap.Error(err))
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]quran.ChapterSummary), nil
}

type chapterResult struct {
	ch  *quran.Chapter
	err error
}

func (p *CachedProvider) Chapter(ctx context.Context, number int, ed quran.Editions) (*quran.Chapter, error) {
	if e, ok, err := p.store.Chapter(ctx, number, ed); err != nil {
		p.log.Warn("cache read failed", zap.Int("chapter", number), zap.Error(err))
	} else if ok && e.Fresh(p.store.now(), p.ttl) {
		p.log.Debug("cache hit", zap.Int("chapter", number))
		return e.Value, nil
	}

	key := fmt.Sprintf("chapter/%d/%s/%s/%s", number, ed.Text, ed.Audio, ed.Translation)
	v, _, _ := p.flight.Do(key, func() (interface{}, error) {
		ch, err := p.upstream.Chapter(ctx, number, ed)
		if ch != nil && err == nil {
			if werr := p.store.PutChapter(ctx, ch); werr != nil {
				p.log.Warn("cache write failed", zap.Int("chapter", number), zap.Error(werr))
			}
		}
		// the partial chapter of a translation failure travels with its error
		return chapterResult{ch: ch, err: err}, nil
	})
	res := v.(chapterResult)
	return res.ch, res.err
}

func (p *CachedProvider) Translations(ctx context.Context, number int, edition string) (map[int]string, error) {
	if e, ok, err := p.store.Translations(ctx, number, edition); err != nil {
		p.log.Warn("cache read failed", zap.Int("chapter", number), zap.Error(err))
	} else if ok && e.Fresh(p.store.now(), p.ttl) {
		return e.Value, nil
	}

	v, err, _ := p.flight.Do("translation/"+strconv.Itoa(number)+"/"+edition, func() (interface{}, error) {
		return p.upstream.Translations(ctx, number, edition)
	})
	if err != nil {
		if !errors.Is(err, alquran.ErrDataUnavailable) {
			err = fmt.Errorf("%w: %w", alquran.ErrDataUnavailable, err)
		}
		return nil, err
	}
	return v.(map[int]string), nil
}
