package audio

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/faiface/beep"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"tilawah/pkg/audioengine"
	"tilawah/pkg/spec"
)

const exportChunk = 4096

type ExportOptions struct {
	Rate       beep.SampleRate
	Volume     float64
	Gap        time.Duration
	HTTPClient *http.Client
	Decoder    Decoder
	// Progress is called after each clip with the number done so far.
	Progress func(done, total int)
}

type ExportResult struct {
	Clips    int
	Duration time.Duration
	PeakDB   float64
	RMS      float64
}

// Export concatenates the clips at urls into one 16-bit stereo WAV written
// to w, with Gap of silence between clips.
func Export(ctx context.Context, w io.WriteSeeker, urls []string, opts ExportOptions) (ExportResult, error) {
	var res ExportResult
	if len(urls) == 0 {
		return res, fmt.Errorf("export: nothing to export")
	}
	if opts.Rate == 0 {
		opts.Rate = beep.SampleRate(spec.SampleRate)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: time.Minute}
	}
	if opts.Decoder == nil {
		opts.Decoder = DecodeMP3
	}
	gain := audioengine.GainFactor(opts.Volume)

	enc := wav.NewEncoder(w, int(opts.Rate), spec.BitDepth, spec.Channels, 1)
	format := &audio.Format{NumChannels: spec.Channels, SampleRate: int(opts.Rate)}
	frames := make([][2]float64, exportChunk)
	pcm := make([]int, 0, exportChunk*spec.Channels)
	var meter audioengine.Meter
	var written int

	write := func(n int) error {
		audioengine.ApplyQuickGain(frames[:n], gain)
		meter.Add(frames[:n])
		pcm = audioengine.ToPCM16(pcm[:0], frames[:n])
		written += n
		return enc.Write(&audio.IntBuffer{Format: format, Data: pcm, SourceBitDepth: spec.BitDepth})
	}

	for i, url := range urls {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if i > 0 && opts.Gap > 0 {
			silence := opts.Rate.N(opts.Gap)
			for silence > 0 {
				n := min(silence, exportChunk)
				clear(frames[:n])
				if err := write(n); err != nil {
					return res, fmt.Errorf("export: write: %w", err)
				}
				silence -= n
			}
		}

		clip, err := Open(ctx, opts.HTTPClient, opts.Decoder, url, opts.Rate)
		if err != nil {
			return res, fmt.Errorf("export clip %d: %w", i+1, err)
		}
		for {
			n, ok := clip.Stream.Stream(frames)
			if n > 0 {
				if err := write(n); err != nil {
					clip.Close()
					return res, fmt.Errorf("export: write: %w", err)
				}
			}
			if !ok {
				break
			}
		}
		err = clip.Stream.Err()
		clip.Close()
		if err != nil {
			return res, fmt.Errorf("export clip %d: %w", i+1, err)
		}

		res.Clips++
		if opts.Progress != nil {
			opts.Progress(res.Clips, len(urls))
		}
	}

	if err := enc.Close(); err != nil {
		return res, fmt.Errorf("export: finalize: %w", err)
	}
	res.Duration = opts.Rate.D(written)
	res.PeakDB = meter.PeakDB()
	res.RMS = meter.RMS()
	return res, nil
}
