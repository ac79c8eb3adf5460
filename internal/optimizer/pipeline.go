// Package optimizer rewrites the stylesheet queue to point at minified
// copies of each stylesheet, fetching and caching them on first use.
package optimizer

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"

	"github.com/opticore/opticore/internal/assets"
	"github.com/opticore/opticore/internal/storage"
	"github.com/opticore/opticore/pkg/compression"
	"github.com/opticore/opticore/pkg/cssmin"
)

const (
	// CacheRoot is the cache directory wiped when settings are saved
	CacheRoot = "opticore"
	// CacheDir holds the minified stylesheets, relative to the cache root
	CacheDir = CacheRoot + "/minified/css"
	// DataKey marks a re-linked handle with the path of its cached file
	DataKey = "opticore-minified"
)

// Mode selects how minified CSS is delivered
type Mode string

const (
	ModeFile     Mode = "file"
	ModeInternal Mode = "internal"
)

// ParseMode maps a stored setting to a mode. Anything unknown is file.
func ParseMode(s string) Mode {
	if Mode(s) == ModeInternal {
		return ModeInternal
	}
	return ModeFile
}

// Outcome is what happened to one handle
type Outcome string

const (
	OutcomeUnregistered Outcome = "unregistered"
	OutcomeExcluded     Outcome = "excluded"
	OutcomeCacheHit     Outcome = "cache_hit"
	OutcomeInvalidURL   Outcome = "invalid_url"
	OutcomeFetchError   Outcome = "fetch_error"
	OutcomeWriteError   Outcome = "write_error"
	OutcomeMinified     Outcome = "minified"
	OutcomeInlined      Outcome = "inlined"
)

// Result records the outcome for one handle
type Result struct {
	Handle  string
	Outcome Outcome
	Err     error
}

// Cache is the subset of the cache backend the pipeline needs
type Cache interface {
	Stat(ctx context.Context, path string) (storage.ObjectInfo, error)
	Put(ctx context.Context, path string, data io.Reader) (storage.ObjectInfo, error)
	FullPath(path string) string
}

// Recorder receives per-handle outcomes and fetch timings
type Recorder interface {
	RecordPipelineOutcome(outcome string)
	RecordFetch(duration time.Duration, success bool)
}

// Options configure one pipeline
type Options struct {
	Mode Mode
	// Exclude holds source URLs that are left untouched
	Exclude mapset.Set[string]
	// BaseURL is the public URL of the cache root
	BaseURL string
	// Precompress writes .gz and .br siblings next to each cached file
	Precompress bool
}

// Pipeline minifies queued stylesheets
type Pipeline struct {
	fetcher  Fetcher
	cache    Cache
	minify   func(string) string
	recorder Recorder
	logger   *logrus.Logger
	opts     Options
}

// Option customizes a pipeline
type Option func(*Pipeline)

// WithMinifier replaces the CSS minifier
func WithMinifier(fn func(string) string) Option {
	return func(p *Pipeline) { p.minify = fn }
}

// WithRecorder reports outcomes to r
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) { p.recorder = r }
}

// WithLogger sets the logger
func WithLogger(l *logrus.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New creates a pipeline
func New(fetcher Fetcher, cache Cache, opts Options, options ...Option) *Pipeline {
	if opts.Exclude == nil {
		opts.Exclude = mapset.NewThreadUnsafeSet[string]()
	}
	opts.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")

	p := &Pipeline{
		fetcher: fetcher,
		cache:   cache,
		minify:  cssmin.Minify,
		logger:  logrus.StandardLogger(),
		opts:    opts,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// ParseExclusions splits a newline-delimited list of URLs. Entries are
// trimmed and blank lines dropped.
func ParseExclusions(raw string) mapset.Set[string] {
	set := mapset.NewThreadUnsafeSet[string]()
	for _, line := range strings.Split(raw, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			set.Add(line)
		}
	}
	return set
}

// CacheName returns the cache file name of a handle
func CacheName(handle string) string {
	sum := md5.Sum([]byte(handle))
	return hex.EncodeToString(sum[:]) + ".min.css"
}

// CachePath returns the cache path of a handle, relative to the cache root
func CachePath(handle string) string {
	return CacheDir + "/" + CacheName(handle)
}

// Run processes every queued handle in order. Handles re-enqueued during
// the run are not visited again. Failures only affect their own handle.
func (p *Pipeline) Run(ctx context.Context, q assets.Queue) []Result {
	handles := q.Queued()
	results := make([]Result, 0, len(handles))

	for _, handle := range handles {
		res := p.process(ctx, q, handle)
		results = append(results, res)

		if p.recorder != nil {
			p.recorder.RecordPipelineOutcome(string(res.Outcome))
		}

		entry := p.logger.WithFields(logrus.Fields{
			"handle":  handle,
			"outcome": res.Outcome,
		})
		if res.Err != nil {
			entry.WithError(res.Err).Warn("Stylesheet left unminified")
		} else {
			entry.Debug("Stylesheet processed")
		}
	}

	return results
}

func (p *Pipeline) process(ctx context.Context, q assets.Queue, handle string) Result {
	style, ok := q.Registered(handle)
	if !ok {
		return Result{Handle: handle, Outcome: OutcomeUnregistered}
	}
	if p.opts.Exclude.Contains(style.Src) {
		return Result{Handle: handle, Outcome: OutcomeExcluded}
	}

	q.Dequeue(handle)
	q.Deregister(handle)

	path := CachePath(handle)
	if p.opts.Mode == ModeFile {
		if info, err := p.cache.Stat(ctx, path); err == nil {
			p.link(q, style, info)
			return Result{Handle: handle, Outcome: OutcomeCacheHit}
		}
	}

	if !ValidURL(style.Src) {
		return Result{Handle: handle, Outcome: OutcomeInvalidURL}
	}

	start := time.Now()
	body, err := p.fetcher.Fetch(ctx, style.Src)
	if p.recorder != nil {
		p.recorder.RecordFetch(time.Since(start), err == nil)
	}
	if err != nil {
		return Result{Handle: handle, Outcome: OutcomeFetchError, Err: err}
	}

	css := p.minify(string(body))

	if p.opts.Mode == ModeInternal {
		q.Enqueue(assets.Asset{
			Handle: handle,
			Deps:   style.Deps,
			Media:  style.Media,
		})
		q.AddInline(handle, css)
		return Result{Handle: handle, Outcome: OutcomeInlined}
	}

	info, err := p.cache.Put(ctx, path, strings.NewReader(css))
	if err != nil {
		return Result{Handle: handle, Outcome: OutcomeWriteError, Err: err}
	}

	if p.opts.Precompress {
		p.precompress(ctx, path, []byte(css))
	}

	p.link(q, style, info)
	return Result{Handle: handle, Outcome: OutcomeMinified}
}

// link enqueues the cached file in place of the original stylesheet,
// keeping its dependencies and media
func (p *Pipeline) link(q assets.Queue, style assets.Asset, info storage.ObjectInfo) {
	q.Enqueue(assets.Asset{
		Handle: style.Handle,
		Src:    p.opts.BaseURL + "/" + CacheDir + "/" + CacheName(style.Handle),
		Deps:   style.Deps,
		Ver:    strconv.FormatInt(info.Version(), 10),
		Media:  style.Media,
	})
	q.AddData(style.Handle, DataKey, p.cache.FullPath(info.Path))
}

// precompress writes compressed siblings; failures are logged and ignored
// since the plain file is already in place
func (p *Pipeline) precompress(ctx context.Context, path string, css []byte) {
	for _, a := range compression.Algorithms {
		data, err := compression.Compress(a, css, 0)
		if err == nil {
			_, err = p.cache.Put(ctx, path+a.Extension(), bytes.NewReader(data))
		}
		if err != nil {
			p.logger.WithError(err).WithField("path", path).Warn("Failed to write precompressed copy")
		}
	}
}
