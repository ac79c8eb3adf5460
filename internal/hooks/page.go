package hooks

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/opticore/opticore/internal/assets"
)

// Filter names applied by the page renderer
const (
	FilterOutput         = "output"
	FilterGenerator      = "the_generator"
	FilterCommentURL     = "comment_author_url"
	FilterCommentsOpen   = "comments_open"
	FilterPingTargets    = "pre_ping"
	FilterSeparateBlocks = "should_load_separate_core_block_assets"
	FilterHeartbeat      = "heartbeat_settings"
)

// Page is the mutable state of one page render
type Page struct {
	Path    string
	Query   url.Values
	Admin   bool
	Editing bool
	Home    string
	// AdminBar controls whether the toolbar and its assets are printed
	AdminBar bool

	Styles  *assets.Registry
	Scripts *assets.Registry
	Header  http.Header

	constants map[string]string
	head      strings.Builder
	footer    strings.Builder

	halted bool
	status int
	body   string
}

// NewPage creates the state for rendering path
func NewPage(path string) *Page {
	return &Page{
		Path:      path,
		Query:     make(url.Values),
		Styles:    assets.NewRegistry(assets.KindStyle),
		Scripts:   assets.NewRegistry(assets.KindScript),
		Header:    make(http.Header),
		constants: make(map[string]string),
	}
}

// Define sets a constant unless it is already defined
func (p *Page) Define(name, value string) bool {
	if _, ok := p.constants[name]; ok {
		return false
	}
	p.constants[name] = value
	return true
}

// Constant returns a defined constant
func (p *Page) Constant(name string) (string, bool) {
	v, ok := p.constants[name]
	return v, ok
}

// Constants returns a copy of every defined constant
func (p *Page) Constants() map[string]string {
	out := make(map[string]string, len(p.constants))
	for k, v := range p.constants {
		out[k] = v
	}
	return out
}

// EmitHead appends markup to the document head
func (p *Page) EmitHead(markup string) {
	p.head.WriteString(markup)
}

// EmitFooter appends markup before the closing body tag
func (p *Page) EmitFooter(markup string) {
	p.footer.WriteString(markup)
}

// HeadMarkup returns everything emitted into the head so far
func (p *Page) HeadMarkup() string {
	return p.head.String()
}

// FooterMarkup returns everything emitted into the footer so far
func (p *Page) FooterMarkup() string {
	return p.footer.String()
}

// Halt ends the render early with a fixed response
func (p *Page) Halt(status int, body string) {
	p.halted = true
	p.status = status
	p.body = body
}

// Halted reports whether a callback ended the render
func (p *Page) Halted() bool {
	return p.halted
}

// Response returns the status and body passed to Halt
func (p *Page) Response() (int, string) {
	return p.status, p.body
}

// IsFeed reports whether the page is a feed endpoint
func (p *Page) IsFeed() bool {
	return p.Path == "/feed" || strings.HasPrefix(p.Path, "/feed/") ||
		strings.HasSuffix(p.Path, "/feed") || strings.HasSuffix(p.Path, "/feed/")
}

// IsRESTRequest reports whether the page is a REST API route
func (p *Page) IsRESTRequest() bool {
	return p.Path == "/wp-json" || strings.HasPrefix(p.Path, "/wp-json/")
}
