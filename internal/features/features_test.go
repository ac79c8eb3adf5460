package features

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opticore/opticore/internal/assets"
	"github.com/opticore/opticore/internal/hooks"
	"github.com/opticore/opticore/internal/settings"
	"github.com/opticore/opticore/internal/storage"
)

type stubFetcher struct {
	calls int
}

func (f *stubFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	f.calls++
	return []byte("a { color : red ; }"), nil
}

func quietEnv() *Env {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Env{Logger: l, StaticURL: "https://site.test/static/"}
}

func runAll(lc *hooks.Lifecycle, p *hooks.Page) {
	for _, stage := range hooks.Stages {
		lc.Run(context.Background(), stage, p)
		if p.Halted() {
			return
		}
	}
}

func TestKnown(t *testing.T) {
	assert.True(t, Known("minify-css"))
	assert.True(t, Known("disable-rest-api"))
	assert.True(t, Known("hide-wp-version"))
	assert.False(t, Known("exclude-css"))
	assert.False(t, Known("output-type-css"))
}

func TestLoadSnippetsSeeCopy(t *testing.T) {
	snippets["test-overwrite"] = func(c *Context) {
		c.Settings["minify-css"] = "0"
		c.Settings["added"] = "1"
	}
	t.Cleanup(func() { delete(snippets, "test-overwrite") })

	blob := settings.Blob{"test-overwrite": "1", "minify-css": "1"}
	loaded := Load(blob, hooks.New(), quietEnv(), nil)

	assert.Contains(t, loaded, "test-overwrite")
	assert.Equal(t, settings.Blob{"test-overwrite": "1", "minify-css": "1"}, blob)
}

func TestLoad(t *testing.T) {
	blob := settings.Blob{
		"hide-wp-version":      "1",
		"disable-emojis":       "0",
		"add-blank-favicon":    "",
		"exclude-css":          "https://cdn.test/a.css",
		"unknown-feature":      "1",
		"limit-post-revisions": "3",
	}

	lc := hooks.New()
	loaded := Load(blob, lc, quietEnv(), nil)
	assert.Equal(t, []string{"hide-wp-version", "limit-post-revisions"}, loaded)
	assert.True(t, lc.HasFilter(hooks.FilterGenerator))
}

func TestLoadValueFilter(t *testing.T) {
	blob := settings.Blob{"autosave-interval": "60", "hide-wp-version": "1"}

	filter := func(key, value string) string {
		switch key {
		case "autosave-interval":
			return "120"
		case "hide-wp-version":
			return "0"
		}
		return value
	}

	lc := hooks.New()
	loaded := Load(blob, lc, quietEnv(), filter)
	assert.Equal(t, []string{"autosave-interval"}, loaded)

	p := hooks.NewPage("/")
	runAll(lc, p)
	v, ok := p.Constant("AUTOSAVE_INTERVAL")
	require.True(t, ok)
	assert.Equal(t, "120", v)
}

func TestHideVersion(t *testing.T) {
	lc := hooks.New()
	lc.On(hooks.StageHead, hooks.ActionGenerator, hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.EmitHead("<meta name=\"generator\" />")
	})

	Load(settings.Blob{"hide-wp-version": "1"}, lc, quietEnv(), nil)

	assert.False(t, lc.Has(hooks.StageHead, hooks.ActionGenerator))
	assert.Equal(t, "", lc.Apply(hooks.FilterGenerator, "OptiCore 1.0.0", hooks.NewPage("/")))
}

func TestDisableRSSFeeds(t *testing.T) {
	lc := hooks.New()
	lc.On(hooks.StageHead, hooks.ActionFeedLinks, 2, func(context.Context, *hooks.Page) {})
	lc.On(hooks.StageHead, hooks.ActionFeedLinksExtra, 3, func(context.Context, *hooks.Page) {})
	Load(settings.Blob{"disable-rss-feeds": "1"}, lc, quietEnv(), nil)

	p := hooks.NewPage("/feed/")
	p.Home = "https://site.test"
	runAll(lc, p)

	require.True(t, p.Halted())
	status, body := p.Response()
	assert.Equal(t, http.StatusNotFound, status)
	assert.Contains(t, body, `<a href="https://site.test/">homepage</a>`)
	assert.False(t, lc.Has(hooks.StageHead, hooks.ActionFeedLinks))
	assert.False(t, lc.Has(hooks.StageHead, hooks.ActionFeedLinksExtra))

	p = hooks.NewPage("/about")
	runAll(lc, p)
	assert.False(t, p.Halted())
}

func TestDisableXMLRPC(t *testing.T) {
	lc := hooks.New()
	Load(settings.Blob{"disable-xml-rpc": "1"}, lc, quietEnv(), nil)

	p := hooks.NewPage("/xmlrpc.php")
	runAll(lc, p)
	require.True(t, p.Halted())
	status, _ := p.Response()
	assert.Equal(t, http.StatusForbidden, status)

	p = hooks.NewPage("/")
	p.Header.Set("X-Pingback", "https://site.test/xmlrpc.php")
	runAll(lc, p)
	assert.False(t, p.Halted())
	assert.Empty(t, p.Header.Get("X-Pingback"))

	out := lc.Apply(hooks.FilterOutput, `<head><link rel="pingback" href="https://site.test/xmlrpc.php" /></head>`, p)
	assert.Equal(t, "<head></head>", out)
}

func TestDisableRESTAPI(t *testing.T) {
	tests := []struct {
		setting string
		admin   bool
		blocked bool
	}{
		{"disable", true, true},
		{"disable", false, true},
		{"admin-only", true, false},
		{"admin-only", false, true},
		{"active", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.setting, func(t *testing.T) {
			lc := hooks.New()
			lc.On(hooks.StageHead, hooks.ActionRESTLink, hooks.DefaultPriority, func(context.Context, *hooks.Page) {})
			Load(settings.Blob{"disable-rest-api": tt.setting}, lc, quietEnv(), nil)

			p := hooks.NewPage("/wp-json/wp/v2/posts")
			p.Admin = tt.admin
			runAll(lc, p)

			assert.Equal(t, tt.blocked, p.Halted())
			assert.Equal(t, !tt.blocked, lc.Has(hooks.StageHead, hooks.ActionRESTLink))
			if tt.blocked {
				status, body := p.Response()
				assert.Equal(t, http.StatusUnauthorized, status)
				assert.JSONEq(t, `{"code":"rest_authentication_error","message":"Sorry, you do not have permission to make REST API requests.","data":{"status":401}}`, body)
			}
		})
	}
}

func TestDisableHeartbeat(t *testing.T) {
	tests := []struct {
		name     string
		setting  string
		editing  bool
		path     string
		query    string
		replaced bool
	}{
		{"disable", "disable", false, "/", "", true},
		{"only editing on editor", "only-editing", true, "/wp-admin/post.php", "", false},
		{"only editing elsewhere", "only-editing", false, "/", "", true},
		{"default", "default", false, "/", "", false},
		{"forms exception", "disable", false, "/wp-admin/admin.php", "gf_entries", false},
		{"site health exception", "disable", false, "/wp-admin/site-health.php", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := hooks.New()
			Load(settings.Blob{"disable-heartbeat": tt.setting}, lc, quietEnv(), nil)

			p := hooks.NewPage(tt.path)
			p.Admin = strings.HasPrefix(tt.path, "/wp-admin")
			p.Editing = tt.editing
			if tt.query != "" {
				p.Query.Set("page", tt.query)
			}
			runAll(lc, p)

			script, ok := p.Scripts.Registered(hooks.HandleHeartbeat)
			assert.Equal(t, tt.replaced, ok)
			if tt.replaced {
				assert.Equal(t, "https://site.test/static/js/heartbeat.js", script.Src)
			}
		})
	}
}

func TestHeartbeatFrequency(t *testing.T) {
	p := hooks.NewPage("/")

	lc := hooks.New()
	Load(settings.Blob{"heartbeat-frequency": "60"}, lc, quietEnv(), nil)
	assert.Equal(t, "60", lc.Apply(hooks.FilterHeartbeat, "", p))

	lc = hooks.New()
	Load(settings.Blob{"heartbeat-frequency": "default"}, lc, quietEnv(), nil)
	assert.Equal(t, "15", lc.Apply(hooks.FilterHeartbeat, "15", p))
}

func TestDefines(t *testing.T) {
	lc := hooks.New()
	Load(settings.Blob{"autosave-interval": "90", "limit-post-revisions": "5"}, lc, quietEnv(), nil)

	p := hooks.NewPage("/")
	p.Define("WP_POST_REVISIONS", "10")
	runAll(lc, p)

	v, _ := p.Constant("AUTOSAVE_INTERVAL")
	assert.Equal(t, "90", v)
	// Already defined elsewhere wins
	v, _ = p.Constant("WP_POST_REVISIONS")
	assert.Equal(t, "10", v)
}

func TestRemoveJQueryMigrate(t *testing.T) {
	lc := hooks.New()
	lc.On(hooks.StageInit, hooks.ActionDefaultScripts, hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.Scripts.Register(assets.Asset{
			Handle: hooks.HandleJQuery,
			Deps:   []string{hooks.HandleJQueryCore, hooks.HandleJQueryMigrate},
		})
	})
	Load(settings.Blob{"remove-jquery-migrate": "1"}, lc, quietEnv(), nil)

	p := hooks.NewPage("/")
	runAll(lc, p)
	jquery, _ := p.Scripts.Registered(hooks.HandleJQuery)
	assert.Equal(t, []string{hooks.HandleJQueryCore}, jquery.Deps)

	admin := hooks.NewPage("/wp-admin/")
	admin.Admin = true
	runAll(lc, admin)
	jquery, _ = admin.Scripts.Registered(hooks.HandleJQuery)
	assert.Equal(t, []string{hooks.HandleJQueryCore, hooks.HandleJQueryMigrate}, jquery.Deps)
}

func TestDisableDashicons(t *testing.T) {
	lc := hooks.New()
	lc.On(hooks.StageEnqueueScripts, "core", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.Styles.Enqueue(assets.Asset{Handle: hooks.HandleDashicons, Src: "https://site.test/dashicons.css"})
	})
	Load(settings.Blob{"disable-dashicons": "1"}, lc, quietEnv(), nil)

	p := hooks.NewPage("/")
	p.AdminBar = true
	runAll(lc, p)

	assert.False(t, p.Styles.IsQueued(hooks.HandleDashicons))
	_, ok := p.Styles.Registered(hooks.HandleDashicons)
	assert.False(t, ok)
	assert.False(t, p.AdminBar)
}

func TestRemoveGlobalStylesAndEmojis(t *testing.T) {
	lc := hooks.New()
	noop := func(context.Context, *hooks.Page) {}
	lc.On(hooks.StageEnqueueScripts, hooks.ActionGlobalStyles, hooks.DefaultPriority, noop)
	lc.On(hooks.StageFooter, hooks.ActionGlobalStyles, 1, noop)
	lc.On(hooks.StageHead, hooks.ActionEmojiScript, 7, noop)
	lc.On(hooks.StageEnqueueScripts, hooks.ActionEmojiStyles, hooks.DefaultPriority, noop)

	Load(settings.Blob{"remove-global-styles": "1", "disable-emojis": "1"}, lc, quietEnv(), nil)
	lc.Run(context.Background(), hooks.StageSetupTheme, hooks.NewPage("/"))
	lc.Run(context.Background(), hooks.StageInit, hooks.NewPage("/"))

	assert.False(t, lc.Has(hooks.StageEnqueueScripts, hooks.ActionGlobalStyles))
	assert.False(t, lc.Has(hooks.StageFooter, hooks.ActionGlobalStyles))
	assert.False(t, lc.Has(hooks.StageHead, hooks.ActionEmojiScript))
	assert.False(t, lc.Has(hooks.StageEnqueueScripts, hooks.ActionEmojiStyles))
}

func TestCommentFilters(t *testing.T) {
	lc := hooks.New()
	Load(settings.Blob{"disable-comment-urls": "1", "disable-comments": "1", "disable-self-pingback": "1"}, lc, quietEnv(), nil)

	p := hooks.NewPage("/")
	p.Home = "https://site.test"
	runAll(lc, p)

	assert.Equal(t, "", lc.Apply(hooks.FilterCommentURL, "https://spam.test", p))
	assert.Equal(t, "", lc.Apply(hooks.FilterCommentsOpen, "1", p))
	assert.Equal(t, "https://other.test/post",
		lc.Apply(hooks.FilterPingTargets, "https://site.test/hello\nhttps://other.test/post", p))
}

func TestMinifyCSSSnippet(t *testing.T) {
	backend, err := storage.NewFilesystemBackend(t.TempDir())
	require.NoError(t, err)

	fetcher := &stubFetcher{}
	env := quietEnv()
	env.Fetcher = fetcher
	env.Cache = backend
	env.CacheURL = "https://site.test/content/cache"

	lc := hooks.New()
	lc.On(hooks.StageEnqueueScripts, "theme", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.Styles.Enqueue(assets.Asset{Handle: "theme", Src: "https://site.test/theme.css"})
		p.Styles.Enqueue(assets.Asset{Handle: "vendor", Src: "https://cdn.test/vendor.css"})
	})

	loaded := Load(settings.Blob{
		"minify-css":      "1",
		"exclude-css":     "https://cdn.test/vendor.css",
		"output-type-css": "internal",
	}, lc, env, nil)
	require.Equal(t, []string{"minify-css"}, loaded)

	p := hooks.NewPage("/")
	runAll(lc, p)

	assert.Equal(t, 1, fetcher.calls)
	theme, ok := p.Styles.Registered("theme")
	require.True(t, ok)
	assert.Empty(t, theme.Src)
	assert.Equal(t, []string{"a{color:red}"}, theme.Inline)

	vendor, _ := p.Styles.Registered("vendor")
	assert.Equal(t, "https://cdn.test/vendor.css", vendor.Src)
}

func TestMinifyCSSWithoutCache(t *testing.T) {
	lc := hooks.New()
	Load(settings.Blob{"minify-css": "1"}, lc, quietEnv(), nil)
	assert.Empty(t, lc.Callbacks(hooks.StageEnqueueScripts))
}

func TestHTMLFilters(t *testing.T) {
	lc := hooks.New()
	Load(settings.Blob{"minify-html": "1", "remove-html-comments": "1"}, lc, quietEnv(), nil)

	p := hooks.NewPage("/")
	runAll(lc, p)

	doc := "<html>\n  <body>\n    <!-- note -->\n    <p>Hi   there</p>\n    <pre>  keep\n  this </pre>\n  </body>\n</html>\n"
	assert.Equal(t, "<html><body><p>Hi there</p>\n<pre>  keep\n  this </pre>\n</body></html>", lc.Apply(hooks.FilterOutput, doc, p))

	admin := hooks.NewPage("/wp-admin/")
	admin.Admin = true
	lc = hooks.New()
	Load(settings.Blob{"minify-html": "1"}, lc, quietEnv(), nil)
	runAll(lc, admin)
	assert.False(t, lc.HasFilter(hooks.FilterOutput))
}

func TestMinifyHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"blank", "   \n", "   \n"},
		{"between tags", "<div>\n  <span>a</span>\n</div>", "<div><span>a</span></div>"},
		{"script kept", "<script>\n  var a  =  1;\n</script>\n<p> x </p>", "<script>\n  var a  =  1;\n</script>\n<p> x </p>"},
		{"textarea kept", "<TEXTAREA>  a\n\n b</TEXTAREA>", "<TEXTAREA>  a\n\n b</TEXTAREA>"},
		{"multiple spaces", "<p>a    b</p>", "<p>a b</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MinifyHTML(tt.input))
		})
	}
}

func TestRemoveHTMLComments(t *testing.T) {
	in := "<!-- drop --><!--[if IE]>keep<![endif]--><!-- wp:paragraph --><p>x</p><!-- /wp:paragraph --><!--\nmulti\n-->"
	assert.Equal(t, "<!--[if IE]>keep<![endif]--><!-- wp:paragraph --><p>x</p><!-- /wp:paragraph -->", RemoveHTMLComments(in))
}
