package site

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
)

func newTestRenderer() *Renderer {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewRenderer(Options{
		Title:     "Example & Co",
		Body:      `<p>See <a href="https://site.test/hello">hello</a> and <a href="https://other.test/">other</a></p>`,
		Home:      "https://site.test/",
		Generator: "OptiCore 1.0.0",
		StaticURL: "https://site.test/wp-includes",
		Stylesheets: []assets.Asset{
			{Handle: "theme", Src: "https://site.test/theme.css", Ver: "2.0", Media: "all"},
		},
		Comments: []Comment{{Author: "Ann", URL: "https://ann.test", Text: "Nice"}},
	}, l)
}

func render(t *testing.T, r *Renderer, p *hooks.Page, setup func(lc *hooks.Lifecycle)) Response {
	t.Helper()
	lc := hooks.New()
	r.Register(lc)
	if setup != nil {
		setup(lc)
	}
	return r.Render(context.Background(), lc, p)
}

func TestRenderDefaults(t *testing.T) {
	r := newTestRenderer()
	p := r.NewPage("/")

	resp := render(t, r, p, nil)
	require.Equal(t, http.StatusOK, resp.Status)

	body := resp.Body
	assert.Contains(t, body, "<title>Example &amp; Co</title>")
	assert.Contains(t, body, `<link rel="stylesheet" id="theme-css" href="https://site.test/theme.css?ver=2.0" media="all" />`)
	assert.Contains(t, body, `id="wp-block-library-css"`)
	assert.Contains(t, body, `<style id="wp-emoji-styles-inline-css">`)
	assert.Contains(t, body, `<style id="global-styles-inline-css">`)
	assert.Contains(t, body, `<meta name="generator" content="OptiCore 1.0.0" />`)
	assert.Contains(t, body, `<link rel="pingback" href="https://site.test/xmlrpc.php" />`)
	assert.Contains(t, body, `href="https://site.test/feed/"`)
	assert.Contains(t, body, `window._wpemojiSettings`)
	assert.Contains(t, body, `<a href="https://ann.test" rel="external nofollow ugc" class="url">Ann</a>`)
	assert.Contains(t, body, `id="commentform"`)
	assert.Contains(t, body, `name="url"`)
	assert.NotContains(t, body, "wpadminbar")

	assert.Equal(t, "https://site.test/xmlrpc.php", resp.Header.Get("X-Pingback"))
	assert.Len(t, resp.Header.Values("Link"), 2)
	assert.Equal(t, "text/html; charset=UTF-8", resp.Header.Get("Content-Type"))
	assert.Equal(t, []string{"https://site.test/hello", "https://other.test/"}, resp.Pings)
}

func TestRenderStylesPrintedOnce(t *testing.T) {
	r := newTestRenderer()
	resp := render(t, r, r.NewPage("/"), nil)
	assert.Equal(t, 1, strings.Count(resp.Body, `id="theme-css"`))
	assert.Equal(t, 1, strings.Count(resp.Body, `id="global-styles-inline-css"`))
}

func TestRenderFilters(t *testing.T) {
	r := newTestRenderer()
	p := r.NewPage("/")

	resp := render(t, r, p, func(lc *hooks.Lifecycle) {
		empty := func(string, *hooks.Page) string { return "" }
		lc.Remove(hooks.StageHead, hooks.ActionFeedLinks)
		lc.AddFilter(hooks.FilterGenerator, "test", hooks.DefaultPriority, empty)
		lc.AddFilter(hooks.FilterCommentURL, "test", hooks.DefaultPriority, empty)
		lc.AddFilter(hooks.FilterSeparateBlocks, "test", hooks.DefaultPriority, func(string, *hooks.Page) string { return "1" })
		lc.AddFilter(hooks.FilterOutput, "test", hooks.DefaultPriority, func(doc string, _ *hooks.Page) string {
			return doc + "<!-- filtered -->"
		})
	})

	body := resp.Body
	assert.NotContains(t, body, `href="https://site.test/feed/"`)
	assert.NotContains(t, body, `name="generator"`)
	assert.NotContains(t, body, `wp-block-library`)
	assert.NotContains(t, body, `https://ann.test`)
	assert.NotContains(t, body, `name="url"`)
	assert.Contains(t, body, `<cite class="fn">Ann</cite>`)
	assert.Contains(t, body, "<!-- filtered -->")
}

func TestRenderCommentsClosed(t *testing.T) {
	r := newTestRenderer()
	resp := render(t, r, r.NewPage("/"), func(lc *hooks.Lifecycle) {
		lc.AddFilter(hooks.FilterCommentsOpen, "test", hooks.DefaultPriority, func(string, *hooks.Page) string { return "" })
	})
	assert.NotContains(t, resp.Body, "commentform")
	assert.NotContains(t, resp.Body, "comment-list")
}

func TestRenderHalted(t *testing.T) {
	r := newTestRenderer()
	p := r.NewPage("/blocked")

	headRan := false
	resp := render(t, r, p, func(lc *hooks.Lifecycle) {
		lc.On(hooks.StageTemplateRedirect, "block", 1, func(ctx context.Context, p *hooks.Page) {
			p.Halt(http.StatusForbidden, "nope")
		})
		lc.On(hooks.StageHead, "spy", 1, func(ctx context.Context, p *hooks.Page) { headRan = true })
	})

	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "nope", resp.Body)
	assert.False(t, headRan)
}

func TestRenderAdminBar(t *testing.T) {
	r := newTestRenderer()
	p := r.NewPage("/wp-admin/post.php")
	p.Admin = true
	p.Editing = true
	p.AdminBar = true

	resp := render(t, r, p, func(lc *hooks.Lifecycle) {
		lc.AddFilter(hooks.FilterHeartbeat, "test", hooks.DefaultPriority, func(string, *hooks.Page) string { return "60" })
	})

	body := resp.Body
	assert.Contains(t, body, `id="dashicons-css"`)
	assert.Contains(t, body, `id="admin-bar-css"`)
	assert.Contains(t, body, `id="jquery-core-js"`)
	assert.Contains(t, body, `id="heartbeat-js"`)
	assert.Contains(t, body, `var heartbeatSettings = {"interval":"60","minimalInterval":"60"};`)
	assert.Contains(t, body, `<div id="wpadminbar"`)
}
