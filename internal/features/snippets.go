package features

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/opticore/opticore/internal/assets"
	"github.com/opticore/opticore/internal/hooks"
	"github.com/opticore/opticore/internal/optimizer"
)

const blankFavicon = `<link href="data:image/x-icon;base64,iVBORw0KGgoAAAANSUhEUgAAABAAAAAQEAYAAABPYyMiAAAABmJLR0T///////8JWPfcAAAACXBIWXMAAABIAAAASABGyWs+AAAAF0lEQVRIx2NgGAWjYBSMglEwCkbBSAcACBAAAeaR9cIAAAAASUVORK5CYII=" rel="icon" type="image/x-icon" />` + "\n"

// Admin screens that keep the heartbeat regardless of the setting
var heartbeatExceptions = map[string]bool{
	"gf_edit_forms": true,
	"gf_entries":    true,
	"gf_settings":   true,
}

func minifyCSS(c *Context) {
	env := c.Env
	if env == nil || env.Fetcher == nil || env.Cache == nil {
		c.logger().Warn("minify-css enabled without a cache backend, skipping")
		return
	}

	opts := optimizer.Options{
		Mode:        optimizer.ParseMode(c.Settings.Value("output-type-css", string(optimizer.ModeFile))),
		Exclude:     optimizer.ParseExclusions(c.Settings.Value("exclude-css", "")),
		BaseURL:     env.CacheURL,
		Precompress: env.Precompress,
	}
	options := []optimizer.Option{optimizer.WithLogger(c.logger())}
	if env.Recorder != nil {
		options = append(options, optimizer.WithRecorder(env.Recorder))
	}
	pipeline := optimizer.New(env.Fetcher, env.Cache, opts, options...)

	c.Lifecycle.On(hooks.StageEnqueueScripts, "opticore_minify_css", 1000, func(ctx context.Context, p *hooks.Page) {
		pipeline.Run(ctx, p.Styles)
	})
}

func minifyHTML(c *Context) {
	lc := c.Lifecycle
	lc.On(hooks.StageTemplateRedirect, "opticore_minify_html", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		if p.Admin {
			return
		}
		lc.AddFilter(hooks.FilterOutput, "opticore_minify_html", hooks.DefaultPriority, func(doc string, _ *hooks.Page) string {
			return MinifyHTML(doc)
		})
	})
}

func removeHTMLComments(c *Context) {
	lc := c.Lifecycle
	lc.On(hooks.StageTemplateRedirect, "opticore_remove_html_comments", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		if p.Admin {
			return
		}
		// Runs ahead of minification so collapsed comments don't leave gaps
		lc.AddFilter(hooks.FilterOutput, "opticore_remove_html_comments", hooks.DefaultPriority-1, func(doc string, _ *hooks.Page) string {
			return RemoveHTMLComments(doc)
		})
	})
}

func addBlankFavicon(c *Context) {
	c.Lifecycle.On(hooks.StageHead, "opticore_blank_favicon", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.EmitHead(blankFavicon)
	})
}

func hideVersion(c *Context) {
	c.Lifecycle.Remove(hooks.StageHead, hooks.ActionGenerator)
	c.Lifecycle.AddFilter(hooks.FilterGenerator, "opticore_hide_version", hooks.DefaultPriority, func(string, *hooks.Page) string {
		return ""
	})
}

func disableEmojis(c *Context) {
	lc := c.Lifecycle
	lc.On(hooks.StageInit, "opticore_disable_emojis", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		lc.Remove(hooks.StageHead, hooks.ActionEmojiScript)
		lc.Remove(hooks.StageEnqueueScripts, hooks.ActionEmojiStyles)
		p.Styles.Dequeue(hooks.HandleEmojiStyles)
		p.Styles.Deregister(hooks.HandleEmojiStyles)
	})
}

func disableDashicons(c *Context) {
	c.Lifecycle.On(hooks.StageEnqueueScripts, "opticore_disable_dashicons", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.Styles.Dequeue(hooks.HandleDashicons)
		p.Styles.Deregister(hooks.HandleDashicons)
		p.AdminBar = false
	})
}

func removeGlobalStyles(c *Context) {
	lc := c.Lifecycle
	lc.On(hooks.StageSetupTheme, "opticore_remove_global_styles", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		lc.Remove(hooks.StageEnqueueScripts, hooks.ActionGlobalStyles)
		lc.Remove(hooks.StageFooter, hooks.ActionGlobalStyles)
	})
}

func separateBlockStyles(c *Context) {
	c.Lifecycle.AddFilter(hooks.FilterSeparateBlocks, "opticore_separate_block_styles", hooks.DefaultPriority, func(string, *hooks.Page) string {
		return "1"
	})
}

func disableEmbeds(c *Context) {
	lc := c.Lifecycle
	lc.On(hooks.StageInit, "opticore_disable_embeds", 9999, func(ctx context.Context, p *hooks.Page) {
		lc.Remove(hooks.StageHead, hooks.ActionOEmbedDiscovery)
		lc.Remove(hooks.StageHead, hooks.ActionOEmbedHostJS)
		p.Scripts.Dequeue(hooks.HandleWPEmbed)
		p.Scripts.Deregister(hooks.HandleWPEmbed)
	})
}

func disableShortlink(c *Context) {
	lc := c.Lifecycle
	lc.On(hooks.StageInit, "opticore_disable_shortlink", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		lc.Remove(hooks.StageHead, hooks.ActionShortlink)
		lc.Remove(hooks.StageTemplateRedirect, hooks.ActionShortlinkHeader)
	})
}

func disableFeeds(c *Context) {
	lc := c.Lifecycle
	lc.On(hooks.StageInit, "opticore_disable_feeds", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		lc.On(hooks.StageTemplateRedirect, "opticore_disable_feed", 1, func(ctx context.Context, p *hooks.Page) {
			if !p.IsFeed() {
				return
			}
			home := html.EscapeString(p.Home + "/")
			p.Halt(http.StatusNotFound, fmt.Sprintf(`No feed available, please visit our <a href="%s">homepage</a>!`, home))
		})

		lc.Remove(hooks.StageHead, hooks.ActionFeedLinksExtra)
		lc.Remove(hooks.StageHead, hooks.ActionFeedLinks)
	})
}

func disableXMLRPC(c *Context) {
	lc := c.Lifecycle

	lc.On(hooks.StageInit, "opticore_disable_xmlrpc", 1, func(ctx context.Context, p *hooks.Page) {
		if p.Path == "/xmlrpc.php" {
			p.Halt(http.StatusForbidden, "HTTP/1.1 403 Forbidden")
		}
	})
	lc.On(hooks.StageTemplateRedirect, "opticore_remove_pingback_header", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.Header.Del("X-Pingback")
	})
	lc.AddFilter(hooks.FilterOutput, "opticore_remove_pingback_links", 2, func(doc string, _ *hooks.Page) string {
		return RemovePingbackLinks(doc)
	})
}

type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status int `json:"status"`
	} `json:"data"`
}

func disableRESTAPI(c *Context) {
	lc := c.Lifecycle
	setting := c.Value

	lc.On(hooks.StageInit, "opticore_disable_rest_api", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		disabled := setting == "disable" || (setting == "admin-only" && !p.Admin)
		if !disabled {
			return
		}

		lc.On(hooks.StageTemplateRedirect, "opticore_rest_authentication_error", 1, func(ctx context.Context, p *hooks.Page) {
			if !p.IsRESTRequest() {
				return
			}
			body := restError{
				Code:    "rest_authentication_error",
				Message: "Sorry, you do not have permission to make REST API requests.",
			}
			body.Data.Status = http.StatusUnauthorized
			data, _ := json.Marshal(body)

			p.Header.Set("Content-Type", "application/json; charset=UTF-8")
			p.Halt(http.StatusUnauthorized, string(data))
		})

		lc.Remove(hooks.StageHead, hooks.ActionRESTLink)
		lc.Remove(hooks.StageTemplateRedirect, hooks.ActionRESTLinkHeader)
	})
}

func removeRESTLink(c *Context) {
	lc := c.Lifecycle
	lc.On(hooks.StageInit, "opticore_remove_rest_link", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		lc.Remove(hooks.StageHead, hooks.ActionRESTLink)
		lc.Remove(hooks.StageTemplateRedirect, hooks.ActionRESTLinkHeader)
	})
}

func heartbeatFrequency(c *Context) {
	setting := c.Value
	c.Lifecycle.AddFilter(hooks.FilterHeartbeat, "opticore_heartbeat_frequency", hooks.DefaultPriority, func(interval string, _ *hooks.Page) string {
		if setting == "default" {
			return interval
		}
		return setting
	})
}

func disableHeartbeat(c *Context) {
	setting := c.Value
	staticURL := ""
	if c.Env != nil {
		staticURL = strings.TrimSuffix(c.Env.StaticURL, "/")
	}

	c.Lifecycle.On(hooks.StageInit, "opticore_disable_heartbeat", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		if p.Admin {
			if p.Path == "/wp-admin/admin.php" && heartbeatExceptions[p.Query.Get("page")] {
				return
			}
			if p.Path == "/wp-admin/site-health.php" {
				return
			}
		}

		replace := func() {
			p.Scripts.Dequeue(hooks.HandleHeartbeat)
			p.Scripts.Deregister(hooks.HandleHeartbeat)
			p.Scripts.Enqueue(assets.Asset{
				Handle: hooks.HandleHeartbeat,
				Src:    staticURL + "/js/heartbeat.js",
			})
		}

		switch setting {
		case "disable":
			replace()
		case "only-editing":
			if !p.Editing {
				replace()
			}
		}
	})
}

func autosaveInterval(c *Context) {
	value := c.Value
	c.Lifecycle.On(hooks.StageSetupTheme, "opticore_autosave_interval", 0, func(ctx context.Context, p *hooks.Page) {
		p.Define("AUTOSAVE_INTERVAL", value)
	})
}

func limitPostRevisions(c *Context) {
	value := c.Value
	c.Lifecycle.On(hooks.StageSetupTheme, "opticore_limit_post_revisions", 0, func(ctx context.Context, p *hooks.Page) {
		p.Define("WP_POST_REVISIONS", value)
	})
}

func removeJQueryMigrate(c *Context) {
	c.Lifecycle.On(hooks.StageInit, "opticore_remove_jquery_migrate", hooks.DefaultPriority+1, func(ctx context.Context, p *hooks.Page) {
		if p.Admin {
			return
		}
		jquery, ok := p.Scripts.Registered(hooks.HandleJQuery)
		if !ok || len(jquery.Deps) == 0 {
			return
		}
		deps := jquery.Deps[:0]
		for _, d := range jquery.Deps {
			if d != hooks.HandleJQueryMigrate {
				deps = append(deps, d)
			}
		}
		p.Scripts.SetDeps(hooks.HandleJQuery, deps)
	})
}

func disableSelfPingback(c *Context) {
	c.Lifecycle.AddFilter(hooks.FilterPingTargets, "opticore_disable_self_pingback", hooks.DefaultPriority, func(links string, p *hooks.Page) string {
		if links == "" || p.Home == "" {
			return links
		}
		var kept []string
		for _, link := range strings.Split(links, "\n") {
			if !strings.HasPrefix(link, p.Home) {
				kept = append(kept, link)
			}
		}
		return strings.Join(kept, "\n")
	})
}

func disableCommentURLs(c *Context) {
	lc := c.Lifecycle
	lc.On(hooks.StageTemplateRedirect, "opticore_disable_comment_urls", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		lc.AddFilter(hooks.FilterCommentURL, "opticore_disable_comment_urls", hooks.DefaultPriority, func(string, *hooks.Page) string {
			return ""
		})
	})
}

func disableComments(c *Context) {
	c.Lifecycle.AddFilter(hooks.FilterCommentsOpen, "opticore_disable_comments", hooks.DefaultPriority, func(string, *hooks.Page) string {
		return ""
	})
}
