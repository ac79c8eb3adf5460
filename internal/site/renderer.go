// Package site renders pages through the hook lifecycle. It registers the
// core callbacks that features remove or filter, runs every stage and
// assembles the final document.
package site

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/sirupsen/logrus"

	"github.com/opticore/opticore/internal/assets"
	"github.com/opticore/opticore/internal/hooks"
)

const emojiStyles = `img.wp-smiley, img.emoji { display: inline !important; border: none !important; box-shadow: none !important; height: 1em !important; width: 1em !important; margin: 0 0.07em !important; vertical-align: -0.1em !important; background: none !important; padding: 0 !important; }`

const globalStyles = `:root { --wp--preset--font-size--small: 13px; --wp--preset--font-size--medium: 20px; --wp--preset--font-size--large: 36px; --wp--preset--spacing--20: 0.44rem; --wp--preset--spacing--30: 0.67rem; }`

var hrefRe = regexp2.MustCompile(`href=["']([^"']+)["']`, regexp2.IgnoreCase)

// Comment is one approved comment shown below the body
type Comment struct {
	Author string
	URL    string
	Text   string
}

// Options describe the site being rendered
type Options struct {
	Title     string
	Body      string
	Home      string
	Generator string
	// StaticURL hosts core assets such as dashicons and jquery
	StaticURL   string
	Stylesheets []assets.Asset
	Comments    []Comment
}

// Response is the outcome of one render
type Response struct {
	Status int
	Header http.Header
	Body   string
	// Pings are the pingback targets found in the body after filtering
	Pings []string
}

// Renderer renders pages of one site
type Renderer struct {
	opts   Options
	logger *logrus.Logger
}

// NewRenderer creates a renderer
func NewRenderer(opts Options, logger *logrus.Logger) *Renderer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	opts.Home = strings.TrimSuffix(opts.Home, "/")
	opts.StaticURL = strings.TrimSuffix(opts.StaticURL, "/")
	return &Renderer{opts: opts, logger: logger}
}

// NewPage prepares the page state for a request path
func (r *Renderer) NewPage(path string) *hooks.Page {
	p := hooks.NewPage(path)
	p.Home = r.opts.Home
	p.Header.Set("X-Pingback", r.opts.Home+"/xmlrpc.php")
	return p
}

// Register adds the core callbacks to lc. It must run before features
// are loaded so they can remove them.
func (r *Renderer) Register(lc *hooks.Lifecycle) {
	lc.On(hooks.StageInit, hooks.ActionDefaultScripts, hooks.DefaultPriority, r.defaultScripts)

	lc.On(hooks.StageTemplateRedirect, hooks.ActionRESTLinkHeader, 11, func(ctx context.Context, p *hooks.Page) {
		p.Header.Add("Link", fmt.Sprintf(`<%s/wp-json/>; rel="https://api.w.org/"`, r.opts.Home))
	})
	lc.On(hooks.StageTemplateRedirect, hooks.ActionShortlinkHeader, 11, func(ctx context.Context, p *hooks.Page) {
		p.Header.Add("Link", fmt.Sprintf(`<%s/>; rel=shortlink`, r.opts.Home))
	})

	lc.On(hooks.StageEnqueueScripts, hooks.ActionEnqueueStyles, hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		r.enqueueStyles(lc, p)
	})
	lc.On(hooks.StageEnqueueScripts, hooks.ActionEmojiStyles, hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.Styles.Enqueue(assets.Asset{Handle: hooks.HandleEmojiStyles})
		p.Styles.AddInline(hooks.HandleEmojiStyles, emojiStyles)
	})
	lc.On(hooks.StageEnqueueScripts, hooks.ActionAdminBar, 11, func(ctx context.Context, p *hooks.Page) {
		if p.AdminBar {
			p.Styles.Enqueue(assets.Asset{Handle: hooks.HandleAdminBar})
			p.Scripts.Enqueue(assets.Asset{Handle: hooks.HandleJQuery})
		}
	})
	lc.On(hooks.StageEnqueueScripts, hooks.ActionGlobalStyles, hooks.DefaultPriority, enqueueGlobalStyles)
	lc.On(hooks.StageEnqueueScripts, "wp_enqueue_heartbeat", hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		if !p.Admin && !p.Editing {
			return
		}
		p.Scripts.Enqueue(assets.Asset{
			Handle: hooks.HandleHeartbeat,
			Src:    r.opts.StaticURL + "/js/heartbeat.min.js",
			Deps:   []string{hooks.HandleJQuery},
		})
		if interval := lc.Apply(hooks.FilterHeartbeat, "", p); interval != "" {
			p.Scripts.AddInline(hooks.HandleHeartbeat,
				fmt.Sprintf(`var heartbeatSettings = {"interval":%q,"minimalInterval":%q};`, interval, interval))
		}
	})

	lc.On(hooks.StageHead, hooks.ActionOEmbedHostJS, 1, func(ctx context.Context, p *hooks.Page) {
		p.Scripts.Enqueue(assets.Asset{Handle: hooks.HandleWPEmbed, Src: r.opts.StaticURL + "/js/wp-embed.min.js"})
	})
	lc.On(hooks.StageHead, hooks.ActionFeedLinks, 2, func(ctx context.Context, p *hooks.Page) {
		p.EmitHead(fmt.Sprintf(`<link rel="alternate" type="application/rss+xml" title="%s &raquo; Feed" href="%s/feed/" />`+"\n",
			html.EscapeString(r.opts.Title), r.opts.Home))
	})
	lc.On(hooks.StageHead, hooks.ActionFeedLinksExtra, 3, func(ctx context.Context, p *hooks.Page) {
		p.EmitHead(fmt.Sprintf(`<link rel="alternate" type="application/rss+xml" title="%s &raquo; Comments Feed" href="%s/comments/feed/" />`+"\n",
			html.EscapeString(r.opts.Title), r.opts.Home))
	})
	lc.On(hooks.StageHead, hooks.ActionEmojiScript, 7, func(ctx context.Context, p *hooks.Page) {
		p.EmitHead(`<script>window._wpemojiSettings = {"baseUrl":"https:\/\/s.w.org\/images\/core\/emoji\/15.0.3\/72x72\/","ext":".png"};</script>` + "\n")
	})
	lc.On(hooks.StageHead, hooks.ActionPrintStyles, 8, func(ctx context.Context, p *hooks.Page) {
		r.print(p, p.Styles, p.EmitHead)
	})
	lc.On(hooks.StageHead, hooks.ActionPrintHeadScripts, 9, func(ctx context.Context, p *hooks.Page) {
		r.print(p, p.Scripts, p.EmitHead)
	})
	lc.On(hooks.StageHead, hooks.ActionRESTLink, hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.EmitHead(fmt.Sprintf(`<link rel="https://api.w.org/" href="%s/wp-json/" />`+"\n", r.opts.Home))
	})
	lc.On(hooks.StageHead, hooks.ActionOEmbedDiscovery, hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.EmitHead(fmt.Sprintf(`<link rel="alternate" type="application/json+oembed" href="%s/wp-json/oembed/1.0/embed" />`+"\n", r.opts.Home))
	})
	lc.On(hooks.StageHead, hooks.ActionGenerator, hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		if gen := lc.Apply(hooks.FilterGenerator, r.opts.Generator, p); gen != "" {
			p.EmitHead(fmt.Sprintf(`<meta name="generator" content="%s" />`+"\n", html.EscapeString(gen)))
		}
	})
	lc.On(hooks.StageHead, hooks.ActionShortlink, hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.EmitHead(fmt.Sprintf(`<link rel="shortlink" href="%s/" />`+"\n", r.opts.Home))
	})
	lc.On(hooks.StageHead, hooks.ActionPingbackLink, hooks.DefaultPriority, func(ctx context.Context, p *hooks.Page) {
		p.EmitHead(fmt.Sprintf(`<link rel="pingback" href="%s/xmlrpc.php" />`+"\n", r.opts.Home))
	})

	lc.On(hooks.StageFooter, hooks.ActionGlobalStyles, 1, enqueueGlobalStyles)
	lc.On(hooks.StageFooter, hooks.ActionPrintFooterScripts, 20, func(ctx context.Context, p *hooks.Page) {
		r.print(p, p.Styles, p.EmitFooter)
		r.print(p, p.Scripts, p.EmitFooter)
	})
	lc.On(hooks.StageFooter, "wp_admin_bar_render", 1000, func(ctx context.Context, p *hooks.Page) {
		if p.AdminBar {
			p.EmitFooter(`<div id="wpadminbar" class="nojq"></div>` + "\n")
		}
	})
}

// Render runs every stage and assembles the document. A page halted by a
// callback returns the halt response instead.
func (r *Renderer) Render(ctx context.Context, lc *hooks.Lifecycle, p *hooks.Page) Response {
	for _, stage := range hooks.Stages {
		if stage == hooks.StageFooter {
			// Body content is known before the footer runs
			break
		}
		lc.Run(ctx, stage, p)
		if p.Halted() {
			return r.halted(p)
		}
	}

	body := r.body(lc, p)

	lc.Run(ctx, hooks.StageFooter, p)
	if p.Halted() {
		return r.halted(p)
	}

	var doc strings.Builder
	doc.WriteString("<!DOCTYPE html>\n<html lang=\"en-US\">\n<head>\n<meta charset=\"UTF-8\" />\n")
	fmt.Fprintf(&doc, "<title>%s</title>\n", html.EscapeString(r.opts.Title))
	doc.WriteString(p.HeadMarkup())
	doc.WriteString("</head>\n<body>\n")
	doc.WriteString(body)
	doc.WriteString(p.FooterMarkup())
	doc.WriteString("</body>\n</html>\n")

	if p.Header.Get("Content-Type") == "" {
		p.Header.Set("Content-Type", "text/html; charset=UTF-8")
	}

	return Response{
		Status: http.StatusOK,
		Header: p.Header,
		Body:   lc.Apply(hooks.FilterOutput, doc.String(), p),
		Pings:  r.pings(lc, p),
	}
}

func (r *Renderer) halted(p *hooks.Page) Response {
	status, body := p.Response()
	if p.Header.Get("Content-Type") == "" {
		p.Header.Set("Content-Type", "text/html; charset=UTF-8")
	}
	r.logger.WithFields(logrus.Fields{
		"path":   p.Path,
		"status": status,
	}).Debug("Render halted")
	return Response{Status: status, Header: p.Header, Body: body}
}

func (r *Renderer) defaultScripts(ctx context.Context, p *hooks.Page) {
	p.Scripts.Register(assets.Asset{Handle: hooks.HandleJQueryCore, Src: r.opts.StaticURL + "/js/jquery/jquery.min.js", Ver: "3.7.1"})
	p.Scripts.Register(assets.Asset{Handle: hooks.HandleJQueryMigrate, Src: r.opts.StaticURL + "/js/jquery/jquery-migrate.min.js", Ver: "3.4.1"})
	p.Scripts.Register(assets.Asset{
		Handle: hooks.HandleJQuery,
		Deps:   []string{hooks.HandleJQueryCore, hooks.HandleJQueryMigrate},
		Ver:    "3.7.1",
	})
	p.Styles.Register(assets.Asset{Handle: hooks.HandleDashicons, Src: r.opts.StaticURL + "/css/dashicons.min.css", Media: "all"})
	p.Styles.Register(assets.Asset{
		Handle: hooks.HandleAdminBar,
		Src:    r.opts.StaticURL + "/css/admin-bar.min.css",
		Deps:   []string{hooks.HandleDashicons},
		Media:  "all",
	})
}

func (r *Renderer) enqueueStyles(lc *hooks.Lifecycle, p *hooks.Page) {
	if lc.Apply(hooks.FilterSeparateBlocks, "", p) == "" {
		p.Styles.Enqueue(assets.Asset{
			Handle: hooks.HandleBlockLibrary,
			Src:    r.opts.StaticURL + "/css/dist/block-library/style.min.css",
			Media:  "all",
		})
	}

	for _, s := range r.opts.Stylesheets {
		p.Styles.Enqueue(s)
	}

}

func enqueueGlobalStyles(ctx context.Context, p *hooks.Page) {
	if p.Styles.IsQueued(hooks.HandleGlobalStyles) {
		return
	}
	p.Styles.Enqueue(assets.Asset{Handle: hooks.HandleGlobalStyles})
	p.Styles.AddInline(hooks.HandleGlobalStyles, globalStyles)
}

func (r *Renderer) print(p *hooks.Page, reg *assets.Registry, emit func(string)) {
	var b strings.Builder
	if err := reg.Print(&b); err != nil {
		r.logger.WithError(err).WithField("path", p.Path).Warn("Failed to print assets")
	}
	emit(b.String())
}

func (r *Renderer) body(lc *hooks.Lifecycle, p *hooks.Page) string {
	var b strings.Builder
	b.WriteString(r.opts.Body)
	if !strings.HasSuffix(r.opts.Body, "\n") && r.opts.Body != "" {
		b.WriteString("\n")
	}

	if lc.Apply(hooks.FilterCommentsOpen, "1", p) == "" {
		return b.String()
	}

	if len(r.opts.Comments) > 0 {
		b.WriteString("<ol class=\"comment-list\">\n")
		for _, c := range r.opts.Comments {
			author := html.EscapeString(c.Author)
			if url := lc.Apply(hooks.FilterCommentURL, c.URL, p); url != "" {
				author = fmt.Sprintf(`<a href="%s" rel="external nofollow ugc" class="url">%s</a>`, html.EscapeString(url), author)
			}
			fmt.Fprintf(&b, "<li class=\"comment\"><cite class=\"fn\">%s</cite><p>%s</p></li>\n", author, html.EscapeString(c.Text))
		}
		b.WriteString("</ol>\n")
	}

	b.WriteString("<form id=\"commentform\" method=\"post\">\n")
	b.WriteString("<p class=\"comment-form-author\"><input id=\"author\" name=\"author\" type=\"text\" /></p>\n")
	b.WriteString("<p class=\"comment-form-email\"><input id=\"email\" name=\"email\" type=\"email\" /></p>\n")
	if lc.Apply(hooks.FilterCommentURL, "url", p) != "" {
		b.WriteString("<p class=\"comment-form-url\"><input id=\"url\" name=\"url\" type=\"url\" /></p>\n")
	}
	b.WriteString("<p class=\"comment-form-comment\"><textarea id=\"comment\" name=\"comment\"></textarea></p>\n")
	b.WriteString("</form>\n")

	return b.String()
}

// pings lists the links of the body that would receive a pingback
func (r *Renderer) pings(lc *hooks.Lifecycle, p *hooks.Page) []string {
	var links []string
	m, err := hrefRe.FindStringMatch(r.opts.Body)
	for err == nil && m != nil {
		links = append(links, m.GroupByNumber(1).String())
		m, err = hrefRe.FindNextMatch(m)
	}
	if len(links) == 0 {
		return nil
	}

	filtered := lc.Apply(hooks.FilterPingTargets, strings.Join(links, "\n"), p)
	if filtered == "" {
		return nil
	}
	return strings.Split(filtered, "\n")
}
