// Package features maps stored setting keys to the lifecycle hooks that
// implement them. Each enabled key registers its snippet once per render.
package features

import (
	"github.com/sirupsen/logrus"

	"github.com/opticore/opticore/internal/hooks"
	"github.com/opticore/opticore/internal/optimizer"
	"github.com/opticore/opticore/internal/settings"
)

// Env carries the services snippets may need
type Env struct {
	Logger *logrus.Logger

	// Stylesheet pipeline dependencies
	Fetcher     optimizer.Fetcher
	Cache       optimizer.Cache
	CacheURL    string
	Precompress bool
	Recorder    optimizer.Recorder

	// StaticURL is the public URL of the bundled static assets
	StaticURL string
}

// Context is what a snippet sees when it registers
type Context struct {
	Lifecycle *hooks.Lifecycle
	Key       string
	Value     string
	Settings  settings.Blob
	Env       *Env
}

func (c *Context) logger() *logrus.Logger {
	if c.Env != nil && c.Env.Logger != nil {
		return c.Env.Logger
	}
	return logrus.StandardLogger()
}

// Snippet registers the hooks of one feature
type Snippet func(c *Context)

// ValueFilter lets callers rewrite a stored value before its snippet
// sees it
type ValueFilter func(key, value string) string

var snippets = map[string]Snippet{
	"minify-css":            minifyCSS,
	"minify-html":           minifyHTML,
	"remove-html-comments":  removeHTMLComments,
	"add-blank-favicon":     addBlankFavicon,
	"hide-wp-version":       hideVersion,
	"disable-emojis":        disableEmojis,
	"disable-dashicons":     disableDashicons,
	"remove-global-styles":  removeGlobalStyles,
	"separate-block-styles": separateBlockStyles,
	"disable-embeds":        disableEmbeds,
	"disable-shortlink":     disableShortlink,
	"disable-rss-feeds":     disableFeeds,
	"disable-xml-rpc":       disableXMLRPC,
	"disable-rest-api":      disableRESTAPI,
	"remove-rest-api-link":  removeRESTLink,
	"heartbeat-frequency":   heartbeatFrequency,
	"disable-heartbeat":     disableHeartbeat,
	"autosave-interval":     autosaveInterval,
	"limit-post-revisions":  limitPostRevisions,
	"remove-jquery-migrate": removeJQueryMigrate,
	"disable-self-pingback": disableSelfPingback,
	"disable-comment-urls":  disableCommentURLs,
	"disable-comments":      disableComments,
}

// Known reports whether key has a snippet
func Known(key string) bool {
	_, ok := snippets[key]
	return ok
}

// Load registers the snippet of every stored key whose value is on.
// Keys without a snippet are ignored. Returns the loaded keys in order.
// Snippets see a copy of blob.
func Load(blob settings.Blob, lc *hooks.Lifecycle, env *Env, filter ValueFilter) []string {
	var loaded []string
	snapshot := blob.Clone()

	for _, key := range snapshot.Keys() {
		if !Known(key) {
			continue
		}

		value := snapshot[key]
		if filter != nil {
			value = filter(key, value)
		}
		if value == "" || value == "0" {
			continue
		}

		snippets[key](&Context{
			Lifecycle: lc,
			Key:       key,
			Value:     value,
			Settings:  snapshot,
			Env:       env,
		})
		loaded = append(loaded, key)
	}

	return loaded
}
