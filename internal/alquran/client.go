// Package alquran is the verse data provider: a small client for the
// alquran.cloud v1 REST API.
package alquran

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tilawah/internal/quran"
	"tilawah/pkg/spec"
)

const (
	DefaultTimeout  = 15 * time.Second
	DefaultMaxBytes = 10_000_000
)

var (
	// ErrDataUnavailable wraps every failure to obtain chapter data.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrTranslationUnavailable is returned together with an otherwise
	// complete chapter whose translations could not be fetched.
	ErrTranslationUnavailable = errors.New("translation unavailable")

	errTooLarge = errors.New("response body too large")
)

// Client talks to the API. The zero value is not usable; use New.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	log       *zap.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option { return func(c *Client) { c.baseURL = u } }
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }
func WithTimeout(d time.Duration) Option { return func(c *Client) { c.timeout = d } }
func WithMaxBytes(n int64) Option { return func(c *Client) { c.maxBytes = n } }
func WithUserAgent(ua string) Option { return func(c *Client) { c.userAgent = ua } }
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func New(opts ...Option) *Client {
	c := &Client{
		baseURL:   spec.APIBaseURL,
		http:      &http.Client{},
		timeout:   DefaultTimeout,
		maxBytes:  DefaultMaxBytes,
		userAgent: spec.UserAgent,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.maxBytes <= 0 {
		c.maxBytes = DefaultMaxBytes
	}
	c.log = c.log.Named("alquran")
	return c
}

// envelope is the API's response wrapper.
type envelope[T any] struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
	Data   T      `json:"data"`
}

type ayah struct {
	Number        int    `json:"number"`
	NumberInSurah int    `json:"numberInSurah"`
	Text          string `json:"text"`
	Audio         string `json:"audio"`
}

type surah struct {
	quran.ChapterSummary
	Ayahs []ayah `json:"ayahs"`
}

// ListChapters returns the summaries of all chapters.
func (c *Client) ListChapters(ctx context.Context) ([]quran.ChapterSummary, error) {
	var out envelope[[]quran.ChapterSummary]
	if err := c.get(ctx, "surah", &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, fmt.Errorf("%w: empty chapter list", ErrDataUnavailable)
	}
	return out.Data, nil
}

// Chapter fetches the text and recitation editions of a chapter and merges
// them with the translation edition. When only the translation fails the
// chapter is still returned, with pending translations, alongside an error
// wrapping ErrTranslationUnavailable.
func (c *Client) Chapter(ctx context.Context, number int, ed quran.Editions) (*quran.Chapter, error) {
	if err := checkNumber(number); err != nil {
		return nil, err
	}

	var text, audio surah
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.surah(gctx, number, ed.Text, &text) })
	g.Go(func() error { return c.surah(gctx, number, ed.Audio, &audio) })
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(text.Ayahs) == 0 {
		return nil, fmt.Errorf("%w: chapter %d has no verses", ErrDataUnavailable, number)
	}
	if len(audio.Ayahs) != len(text.Ayahs) {
		return nil, fmt.Errorf("%w: chapter %d: %d verses in %s but %d in %s",
			ErrDataUnavailable, number, len(text.Ayahs), ed.Text, len(audio.Ayahs), ed.Audio)
	}

	ch := &quran.Chapter{
		ChapterSummary: text.ChapterSummary,
		TextEdition:    ed.Text,
		AudioEdition:   ed.Audio,
		Verses:         make([]quran.Verse, len(text.Ayahs)),
	}
	for i, a := range text.Ayahs {
		if a.Number <= 0 || a.NumberInSurah <= 0 {
			return nil, fmt.Errorf("%w: chapter %d: verse %d has number %d",
				ErrDataUnavailable, number, i+1, a.Number)
		}
		ch.Verses[i] = quran.Verse{
			ID:            a.Number,
			NumberInSurah: a.NumberInSurah,
			Text:          a.Text,
			Audio:         audio.Ayahs[i].Audio,
		}
	}

	texts, err := c.Translations(ctx, number, ed.Translation)
	if err != nil {
		c.log.Warn("translation fetch failed",
			zap.Int("chapter", number), zap.String("edition", ed.Translation), zap.Error(err))
		ch.TranslationEdition = ed.Translation
		return ch, fmt.Errorf("%w: %w", ErrTranslationUnavailable, err)
	}
	return ch.WithTranslations(ed.Translation, texts), nil
}

// Translations returns the translation text of every verse of a chapter,
// keyed by the verse's number in the chapter.
func (c *Client) Translations(ctx context.Context, number int, edition string) (map[int]string, error) {
	if err := checkNumber(number); err != nil {
		return nil, err
	}
	var s surah
	if err := c.surah(ctx, number, edition, &s); err != nil {
		return nil, err
	}
	out := make(map[int]string, len(s.Ayahs))
	for _, a := range s.Ayahs {
		out[a.NumberInSurah] = a.Text
	}
	return out, nil
}

func (c *Client) surah(ctx context.Context, number int, edition string, dst *surah) error {
	if !quran.ValidEdition(edition) {
		return fmt.Errorf("%w: invalid edition %q", ErrDataUnavailable, edition)
	}
	var out envelope[surah]
	if err := c.get(ctx, "surah/"+strconv.Itoa(number)+"/"+url.PathEscape(edition), &out); err != nil {
		return err
	}
	*dst = out.Data
	return nil
}

func checkNumber(number int) error {
	if number < 1 || number > spec.ChapterCount {
		return fmt.Errorf("%w: chapter %d out of range 1-%d", ErrDataUnavailable, number, spec.ChapterCount)
	}
	return nil
}

// countingReader counts the bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// get fetches path relative to the base URL and decodes the JSON envelope
// into dst, which must point to an envelope.
func (c *Client) get(ctx context.Context, path string, dst interface{}) error {
	rawURL := c.baseURL + "/" + path
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return fmt.Errorf("%w: invalid url %q: %w", ErrDataUnavailable, rawURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: new request: %w", ErrDataUnavailable, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: request failed: %w", ErrDataUnavailable, err)
	}
	defer resp.Body.Close()

	c.log.Debug("GET", zap.String("path", path), zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s: unexpected http status %s", ErrDataUnavailable, path, resp.Status)
	}
	if resp.ContentLength > c.maxBytes {
		return fmt.Errorf("%w: %s: content-length %d exceeds limit %d",
			ErrDataUnavailable, path, resp.ContentLength, c.maxBytes)
	}

	cr := &countingReader{r: io.LimitReader(resp.Body, c.maxBytes+1)}
	if err := json.NewDecoder(cr).Decode(dst); err != nil {
		return fmt.Errorf("%w: %s: decode: %w", ErrDataUnavailable, path, err)
	}
	if cr.n > c.maxBytes {
		return fmt.Errorf("%w: %s: %w", ErrDataUnavailable, path, errTooLarge)
	}

	if code, ok := dst.(interface{ apiCode() int }); ok && code.apiCode() != http.StatusOK {
		return fmt.Errorf("%w: %s: api code %d", ErrDataUnavailable, path, code.apiCode())
	}
	return nil
}

func (e *envelope[T]) apiCode() int { return e.Code }
