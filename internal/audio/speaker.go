/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX Tilawah project.
 * This code is provided "as is", without warranty of any kind.
 */

package audio

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/speaker"
	"go.uber.org/zap"

	"tilawah/internal/playback"
	"tilawah/pkg/spec"
)

// Output is where streams are mixed. The speaker package is the only real
// implementation; tests drive streams by hand.
type Output interface {
	Play(s ...beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

type speakerOutput struct{}

func (speakerOutput) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerOutput) Clear()                 { speaker.Clear() }
func (speakerOutput) Lock()                  { speaker.Lock() }
func (speakerOutput) Unlock()                { speaker.Unlock() }

// InitSpeaker opens the sound card once per process.
func InitSpeaker(rate beep.SampleRate, bufferMs int) (Output, error) {
	if err := speaker.Init(rate, rate.N(time.Duration(bufferMs)*time.Millisecond)); err != nil {
		return nil, err
	}
	return speakerOutput{}, nil
}

type Options struct {
	Rate       beep.SampleRate
	Volume     float64
	HTTPClient *http.Client
	Decoder    Decoder
	Tick       time.Duration
	Logger     *zap.Logger
}

// Speaker implements playback.Device. Commands never block on the network:
// Load starts a background download and the clip joins the output when it
// is ready, paused or playing according to the latest Play/Pause.
type Speaker struct {
	out  Output
	sink playback.EventSink
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	cue     playback.Cue
	playing bool
	clip    *Clip
	ctrl    *beep.Ctrl
	vol     *effects.Volume
	cancel  context.CancelFunc

	quit chan struct{}
	wg   sync.WaitGroup
}

func NewSpeaker(out Output, sink playback.EventSink, opts Options) *Speaker {
	if opts.Rate == 0 {
		opts.Rate = beep.SampleRate(spec.SampleRate)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: time.Minute}
	}
	if opts.Decoder == nil {
		opts.Decoder = DecodeMP3
	}
	if opts.Tick <= 0 {
		opts.Tick = spec.ProgressTickMs * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Speaker{
		out:  out,
		sink: sink,
		opts: opts,
		log:  opts.Logger.Named("speaker"),
		quit: make(chan struct{}),
	}
	s.wg.Add(1)
	go s.progressLoop()
	return s
}

// Load drops whatever was loaded and starts fetching url for cue.
func (s *Speaker) Load(cue playback.Cue, url string) {
	s.mu.Lock()
	s.unloadLocked()
	s.cue = cue
	s.playing = false
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fetch(ctx, cue, url)
	}()
}

func (s *Speaker) fetch(ctx context.Context, cue playback.Cue, url string) {
	start := time.Now()
	clip, err := Open(ctx, s.opts.HTTPClient, s.opts.Decoder, url, s.opts.Rate)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Warn("clip failed", zap.Uint64("cue", uint64(cue)), zap.String("url", url), zap.Error(err))
		s.emit(playback.DeviceEvent{Kind: playback.EventError, Cue: cue, Reason: err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cue != cue || ctx.Err() != nil {
		_ = clip.Close()
		return
	}
	s.log.Debug("clip ready", zap.Uint64("cue", uint64(cue)), zap.Duration("took", time.Since(start)),
		zap.Duration("length", clip.Format.SampleRate.D(clip.Source.Len())))

	vol := &effects.Volume{Streamer: clip.Stream, Base: 2, Volume: s.opts.Volume}
	ctrl := &beep.Ctrl{Streamer: vol, Paused: !s.playing}
	s.clip, s.ctrl, s.vol = clip, ctrl, vol

	s.out.Play(beep.Seq(ctrl, beep.Callback(func() {
		// runs on the mixer goroutine, which must not wait on the sink
		go s.emit(playback.DeviceEvent{Kind: playback.EventFinished, Cue: cue})
	})))
}

func (s *Speaker) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	s.setPausedLocked(false)
}

func (s *Speaker) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
	s.setPausedLocked(true)
}

func (s *Speaker) SeekToStart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil {
		return
	}
	s.out.Lock()
	err := s.clip.Source.Seek(0)
	s.out.Unlock()
	if err != nil {
		s.log.Warn("seek failed", zap.Error(err))
	}
}

// SetVolume changes the gain of the current and future clips.
func (s *Speaker) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opts.Volume = v
	if s.vol != nil {
		s.out.Lock()
		s.vol.Volume = v
		s.out.Unlock()
	}
}

// Close stops playback and waits for background work.
func (s *Speaker) Close() {
	s.mu.Lock()
	s.unloadLocked()
	s.mu.Unlock()
	close(s.quit)
	s.wg.Wait()
}

func (s *Speaker) setPausedLocked(paused bool) {
	if s.ctrl == nil {
		return
	}
	s.out.Lock()
	s.ctrl.Paused = paused
	s.out.Unlock()
}

func (s *Speaker) unloadLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.clip != nil {
		s.out.Clear()
		_ = s.clip.Close()
	}
	s.clip, s.ctrl, s.vol = nil, nil, nil
}

func (s *Speaker) emit(ev playback.DeviceEvent) {
	if s.sink != nil {
		s.sink(ev)
	}
}

func (s *Speaker) progressLoop() {
	defer s.wg.Done()
	t := time.NewTicker(s.opts.Tick)
	defer t.Stop()
	for {
		select {
		case <-s.quit:
			return
		case <-t.C:
			if ev, ok := s.progress(); ok {
				s.emit(ev)
			}
		}
	}
}

func (s *Speaker) progress() (playback.DeviceEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clip == nil || !s.playing {
		return playback.DeviceEvent{}, false
	}
	s.out.Lock()
	pos, length := s.clip.Position()
	s.out.Unlock()
	sr := s.clip.Format.SampleRate
	return playback.DeviceEvent{
		Kind:     playback.EventProgress,
		Cue:      s.cue,
		Position: sr.D(pos),
		Duration: sr.D(length),
	}, true
}
