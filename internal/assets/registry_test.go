package assets

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnqueueAndDequeue(t *testing.T) {
	r := NewRegistry(KindStyle)

	assert.True(t, r.Register(Asset{Handle: "theme", Src: "https://example.com/style.css"}))
	assert.False(t, r.Register(Asset{Handle: "theme", Src: "other.css"}))
	assert.False(t, r.Register(Asset{}))

	r.Enqueue(Asset{Handle: "theme"})
	r.Enqueue(Asset{Handle: "plugin", Src: "https://example.com/plugin.css"})
	r.Enqueue(Asset{Handle: "theme"})
	assert.Equal(t, []string{"theme", "plugin"}, r.Queued())

	a, ok := r.Registered("theme")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/style.css", a.Src)

	r.Dequeue("theme")
	assert.False(t, r.IsQueued("theme"))
	_, ok = r.Registered("theme")
	assert.True(t, ok)

	r.Deregister("theme")
	_, ok = r.Registered("theme")
	assert.False(t, ok)

	assert.Equal(t, []string{"plugin"}, r.Handles())
}

func TestInlineAndData(t *testing.T) {
	r := NewRegistry(KindStyle)

	assert.False(t, r.AddInline("missing", "a{}"))
	assert.False(t, r.AddData("missing", "k", "v"))

	r.Enqueue(Asset{Handle: "global-styles"})
	assert.True(t, r.AddInline("global-styles", "body{margin:0}"))
	assert.False(t, r.AddInline("global-styles", ""))
	assert.True(t, r.AddData("global-styles", "path", "/tmp/x"))

	a, _ := r.Registered("global-styles")
	assert.Equal(t, []string{"body{margin:0}"}, a.Inline)
	assert.Equal(t, "/tmp/x", a.Data["path"])
}

func TestPrint(t *testing.T) {
	r := NewRegistry(KindStyle)
	r.Register(Asset{Handle: "base", Src: "https://example.com/base.css", Ver: "1"})
	r.Enqueue(Asset{Handle: "theme", Src: "https://example.com/style.css?x=1", Deps: []string{"base", "unknown"}, Ver: "42", Media: "screen"})
	r.Enqueue(Asset{Handle: "inline-only", Inline: []string{"a{color:red}"}})
	r.Enqueue(Asset{Handle: "base"})

	var b strings.Builder
	require.NoError(t, r.Print(&b))

	assert.Equal(t,
		`<link rel="stylesheet" id="base-css" href="https://example.com/base.css?ver=1" media="all" />`+"\n"+
			`<link rel="stylesheet" id="theme-css" href="https://example.com/style.css?ver=42&amp;x=1" media="screen" />`+"\n"+
			`<style id="inline-only-inline-css">`+"\n"+`a{color:red}`+"\n"+`</style>`+"\n",
		b.String())

	// A second print emits nothing; every handle is done
	b.Reset()
	require.NoError(t, r.Print(&b))
	assert.Empty(t, b.String())
}

func TestPrintScripts(t *testing.T) {
	r := NewRegistry(KindScript)
	r.Register(Asset{Handle: "jquery-core", Src: "/js/jquery.js"})
	r.Enqueue(Asset{Handle: "jquery", Deps: []string{"jquery-core"}})

	assert.True(t, r.SetDeps("jquery", []string{"jquery-core"}))
	assert.False(t, r.SetDeps("nope", nil))

	var b strings.Builder
	require.NoError(t, r.Print(&b))
	assert.Equal(t, "<script src=\"/js/jquery.js\" id=\"jquery-core-js\"></script>\n", b.String())
}
