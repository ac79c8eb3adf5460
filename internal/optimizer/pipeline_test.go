package optimizer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opticore/opticore/internal/assets"
	"github.com/opticore/opticore/internal/storage"
)

type fakeFetcher struct {
	bodies map[string]string
	calls  []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	f.calls = append(f.calls, src)
	body, ok := f.bodies[src]
	if !ok {
		return nil, &StatusError{URL: src, StatusCode: http.StatusNotFound}
	}
	return []byte(body), nil
}

type failingCache struct {
	*storage.FilesystemBackend
}

func (c failingCache) Put(ctx context.Context, path string, data io.Reader) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, errors.New("disk full")
}

type countingRecorder struct {
	outcomes map[string]int
	fetches  int
}

func (r *countingRecorder) RecordPipelineOutcome(outcome string) {
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func (r *countingRecorder) RecordFetch(time.Duration, bool) {
	r.fetches++
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newCache(t *testing.T) *storage.FilesystemBackend {
	backend, err := storage.NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)
	return backend
}

func styleQueue(styles ...assets.Asset) *assets.Registry {
	q := assets.NewRegistry(assets.KindStyle)
	for _, s := range styles {
		q.Enqueue(s)
	}
	return q
}

func TestCachePath(t *testing.T) {
	// md5("main")
	assert.Equal(t, "fad58de7366495db4650cfefac2fcd61.min.css", CacheName("main"))
	assert.Equal(t, "opticore/minified/css/fad58de7366495db4650cfefac2fcd61.min.css", CachePath("main"))
}

func TestParseExclusions(t *testing.T) {
	set := ParseExclusions("https://a.test/a.css\n\n  https://b.test/b.css \r\n")
	assert.Equal(t, 2, set.Cardinality())
	assert.True(t, set.Contains("https://a.test/a.css"))
	assert.True(t, set.Contains("https://b.test/b.css"))

	assert.Equal(t, 0, ParseExclusions("").Cardinality())
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeInternal, ParseMode("internal"))
	assert.Equal(t, ModeFile, ParseMode("file"))
	assert.Equal(t, ModeFile, ParseMode(""))
	assert.Equal(t, ModeFile, ParseMode("other"))
}

func TestValidURL(t *testing.T) {
	assert.True(t, ValidURL("https://example.com/style.css"))
	assert.True(t, ValidURL("http://localhost:8080/a.css?v=1"))
	assert.False(t, ValidURL("/relative/style.css"))
	assert.False(t, ValidURL("ftp://example.com/a.css"))
	assert.False(t, ValidURL("https:///a.css"))
	assert.False(t, ValidURL(""))
}

func TestRunMinifiesAndLinks(t *testing.T) {
	cache := newCache(t)
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.test/main.css": "body {\n  margin: 0px;\n}\n",
	}}
	rec := &countingRecorder{}

	q := styleQueue(assets.Asset{
		Handle: "main",
		Src:    "https://site.test/main.css",
		Deps:   []string{"reset"},
		Ver:    "6.4",
		Media:  "screen",
	})

	p := New(fetcher, cache, Options{Mode: ModeFile, BaseURL: "https://site.test/content/cache/"},
		WithLogger(quietLogger()), WithRecorder(rec))
	results := p.Run(context.Background(), q)

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeMinified, results[0].Outcome)
	assert.NoError(t, results[0].Err)

	data, err := os.ReadFile(cache.FullPath(CachePath("main")))
	require.NoError(t, err)
	assert.Equal(t, "body{margin:0}", string(data))

	style, ok := q.Registered("main")
	require.True(t, ok)
	assert.Equal(t, "https://site.test/content/cache/"+CachePath("main"), style.Src)
	assert.Equal(t, []string{"reset"}, style.Deps)
	assert.Equal(t, "screen", style.Media)
	assert.Equal(t, cache.FullPath(CachePath("main")), style.Data[DataKey])

	info, err := cache.Stat(context.Background(), CachePath("main"))
	require.NoError(t, err)
	assert.Equal(t, strconv.FormatInt(info.Version(), 10), style.Ver)

	assert.Equal(t, []string{"main"}, q.Queued())
	assert.Equal(t, 1, rec.outcomes["minified"])
	assert.Equal(t, 1, rec.fetches)
}

func TestRunCacheHitSkipsFetch(t *testing.T) {
	cache := newCache(t)
	_, err := cache.Put(context.Background(), CachePath("main"), strings.NewReader("a{color:red}"))
	require.NoError(t, err)

	fetcher := &fakeFetcher{}
	q := styleQueue(assets.Asset{Handle: "main", Src: "https://site.test/main.css", Media: "all"})

	p := New(fetcher, cache, Options{Mode: ModeFile, BaseURL: "https://site.test/cache"}, WithLogger(quietLogger()))
	results := p.Run(context.Background(), q)

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeCacheHit, results[0].Outcome)
	assert.Empty(t, fetcher.calls)

	style, ok := q.Registered("main")
	require.True(t, ok)
	assert.Equal(t, "https://site.test/cache/"+CachePath("main"), style.Src)
	assert.True(t, q.IsQueued("main"))
}

func TestRunFetchFailureDropsHandle(t *testing.T) {
	cache := newCache(t)
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.test/ok.css": "a { color : red ; }",
	}}

	q := styleQueue(
		assets.Asset{Handle: "missing", Src: "https://site.test/missing.css"},
		assets.Asset{Handle: "ok", Src: "https://site.test/ok.css"},
	)

	p := New(fetcher, cache, Options{Mode: ModeFile, BaseURL: "https://site.test/cache"}, WithLogger(quietLogger()))
	results := p.Run(context.Background(), q)

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeFetchError, results[0].Outcome)
	var statusErr *StatusError
	assert.ErrorAs(t, results[0].Err, &statusErr)
	assert.Equal(t, OutcomeMinified, results[1].Outcome)

	_, ok := q.Registered("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"ok"}, q.Queued())
}

func TestRunSkipsExcludedAndUnregistered(t *testing.T) {
	cache := newCache(t)
	fetcher := &fakeFetcher{}

	q := styleQueue(assets.Asset{Handle: "vendor", Src: "https://cdn.test/vendor.css", Ver: "1"})
	q.Enqueue(assets.Asset{Handle: "ghost", Src: "https://site.test/ghost.css"})
	q.Deregister("ghost")

	p := New(fetcher, cache, Options{
		Mode:    ModeFile,
		Exclude: ParseExclusions("https://cdn.test/vendor.css"),
	}, WithLogger(quietLogger()))
	results := p.Run(context.Background(), q)

	require.Len(t, results, 2)
	assert.Equal(t, OutcomeExcluded, results[0].Outcome)
	assert.Equal(t, OutcomeUnregistered, results[1].Outcome)
	assert.Empty(t, fetcher.calls)

	style, ok := q.Registered("vendor")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.test/vendor.css", style.Src)
	assert.Equal(t, "1", style.Ver)
	assert.True(t, q.IsQueued("vendor"))
}

func TestRunInvalidURL(t *testing.T) {
	fetcher := &fakeFetcher{}
	q := styleQueue(assets.Asset{Handle: "rel", Src: "/wp-includes/rel.css"})

	p := New(fetcher, newCache(t), Options{Mode: ModeFile}, WithLogger(quietLogger()))
	results := p.Run(context.Background(), q)

	assert.Equal(t, OutcomeInvalidURL, results[0].Outcome)
	assert.Empty(t, fetcher.calls)
	assert.Empty(t, q.Queued())
}

func TestRunInternalMode(t *testing.T) {
	cache := newCache(t)
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.test/main.css": "/* c */ p { padding : 0.5em ; }",
	}}

	q := styleQueue(assets.Asset{Handle: "main", Src: "https://site.test/main.css", Deps: []string{"base"}, Media: "print"})

	p := New(fetcher, cache, Options{Mode: ModeInternal}, WithLogger(quietLogger()))
	results := p.Run(context.Background(), q)

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeInlined, results[0].Outcome)

	style, ok := q.Registered("main")
	require.True(t, ok)
	assert.Empty(t, style.Src)
	assert.Equal(t, []string{"base"}, style.Deps)
	assert.Equal(t, "print", style.Media)
	assert.Equal(t, []string{"p{padding:.5em}"}, style.Inline)
	assert.True(t, q.IsQueued("main"))

	_, err := cache.Stat(context.Background(), CachePath("main"))
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestRunWriteFailure(t *testing.T) {
	cache := failingCache{newCache(t)}
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.test/a.css": "a{}",
	}}

	q := styleQueue(assets.Asset{Handle: "a", Src: "https://site.test/a.css"})

	p := New(fetcher, cache, Options{Mode: ModeFile}, WithLogger(quietLogger()))
	results := p.Run(context.Background(), q)

	assert.Equal(t, OutcomeWriteError, results[0].Outcome)
	assert.Error(t, results[0].Err)
	assert.Empty(t, q.Queued())
}

func TestRunPrecompress(t *testing.T) {
	cache := newCache(t)
	fetcher := &fakeFetcher{bodies: map[string]string{
		"https://site.test/a.css": "a { color: red; }",
	}}

	q := styleQueue(assets.Asset{Handle: "a", Src: "https://site.test/a.css"})

	p := New(fetcher, cache, Options{Mode: ModeFile, Precompress: true}, WithLogger(quietLogger()))
	p.Run(context.Background(), q)

	for _, ext := range []string{"", ".gz", ".br"} {
		_, err := cache.Stat(context.Background(), CachePath("a")+ext)
		assert.NoError(t, err, "missing %s", CachePath("a")+ext)
	}
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.css":
			w.Header().Set("Content-Type", "text/css")
			io.WriteString(w, "a{}")
		case "/slow.css":
			time.Sleep(200 * time.Millisecond)
			io.WriteString(w, "b{}")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewHTTPFetcher(50 * time.Millisecond)

	body, err := f.Fetch(context.Background(), srv.URL+"/ok.css")
	require.NoError(t, err)
	assert.Equal(t, "a{}", string(body))

	_, err = f.Fetch(context.Background(), srv.URL+"/missing.css")
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	_, err = f.Fetch(context.Background(), srv.URL+"/slow.css")
	assert.Error(t, err)
}

func TestRunOversizedStylesheetDropsHandle(t *testing.T) {
	big := strings.Repeat("a { color : red ; }\n", maxStylesheetSize/20+1) + ".last { margin : 0px ; }"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, big)
	}))
	defer srv.Close()

	cache := newCache(t)
	q := styleQueue(assets.Asset{Handle: "big", Src: srv.URL + "/big.css"})

	p := New(NewHTTPFetcher(5*time.Second), cache, Options{Mode: ModeFile, BaseURL: "https://site.test/cache"}, WithLogger(quietLogger()))
	results := p.Run(context.Background(), q)

	require.Len(t, results, 1)
	assert.Equal(t, OutcomeFetchError, results[0].Outcome)
	assert.ErrorIs(t, results[0].Err, ErrTooLarge)
	assert.Empty(t, q.Queued())

	_, err := cache.Stat(context.Background(), CachePath("big"))
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}

func TestHTTPFetcherSizeLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("n"))
		io.WriteString(w, strings.Repeat("x", n))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(5 * time.Second)

	body, err := f.Fetch(context.Background(), srv.URL+"/?n="+strconv.Itoa(maxStylesheetSize))
	require.NoError(t, err)
	assert.Len(t, body, maxStylesheetSize)

	_, err = f.Fetch(context.Background(), srv.URL+"/?n="+strconv.Itoa(maxStylesheetSize+1))
	assert.ErrorIs(t, err, ErrTooLarge)
}
