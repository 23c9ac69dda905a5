/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX Tilawah project.
 * This code is provided "as is", without warranty of any kind.
 */

// Package audio is the audio playback device: it downloads verse
// recitations, decodes them and drives the speaker.
package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"

	"tilawah/pkg/spec"
)

// MaxClipBytes bounds a single verse download.
const MaxClipBytes = 32 << 20

// Decoder turns an encoded clip into a seekable stream.
type Decoder func(io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error)

// DecodeMP3 is the default Decoder; the API serves MP3 recitations.
func DecodeMP3(rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	return mp3.Decode(rc)
}

// memClip is a downloaded clip. It is held in memory so the decoder can
// seek and report its length.
type memClip struct {
	*bytes.Reader
}

func (memClip) Close() error { return nil }

// Fetch downloads url into memory.
func Fetch(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("clip request: %w", err)
	}
	req.Header.Set("User-Agent", spec.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("clip download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("clip download: unexpected http status %s", resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxClipBytes+1))
	if err != nil {
		return nil, fmt.Errorf("clip download: %w", err)
	}
	if len(data) > MaxClipBytes {
		return nil, fmt.Errorf("clip download: larger than %d bytes", MaxClipBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("clip download: empty body")
	}
	return memClip{bytes.NewReader(data)}, nil
}

// Open downloads and decodes a clip, resampled to rate.
func Open(ctx context.Context, client *http.Client, decode Decoder, url string, rate beep.SampleRate) (*Clip, error) {
	rc, err := Fetch(ctx, client, url)
	if err != nil {
		return nil, err
	}
	stream, format, err := decode(rc)
	if err != nil {
		return nil, fmt.Errorf("clip decode: %w", err)
	}
	return newClip(stream, format, rate), nil
}

// Clip is a decoded clip ready for the speaker.
type Clip struct {
	Source beep.StreamSeekCloser
	Format beep.Format
	// Stream is Source at the output rate.
	Stream beep.Streamer
}

func newClip(src beep.StreamSeekCloser, format beep.Format, rate beep.SampleRate) *Clip {
	c := &Clip{Source: src, Format: format, Stream: src}
	if format.SampleRate != rate {
		c.Stream = beep.Resample(4, format.SampleRate, rate, src)
	}
	return c
}

// Position and Length report the clip in source time.
func (c *Clip) Position() (pos, length int) {
	return c.Source.Position(), c.Source.Len()
}

func (c *Clip) Close() error { return c.Source.Close() }
