// Package assets models the stylesheet and script queues a page renders.
package assets

import (
	"fmt"
	"html"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
)

// Kind selects how registered assets are rendered
type Kind string

const (
	KindStyle  Kind = "style"
	KindScript Kind = "script"
)

// Asset is one registered stylesheet or script
type Asset struct {
	Handle string
	Src    string
	Deps   []string
	Ver    string
	Media  string
	Inline []string
	Data   map[string]string
}

// Queue is the view of a registry the stylesheet pipeline works on
type Queue interface {
	Queued() []string
	Registered(handle string) (Asset, bool)
	Enqueue(a Asset)
	Dequeue(handle string)
	Deregister(handle string)
	AddInline(handle, code string) bool
	AddData(handle, key, value string) bool
}

// Registry holds registered assets and the ordered queue of handles to print
type Registry struct {
	mu         sync.Mutex
	kind       Kind
	registered map[string]*Asset
	queue      []string
	done       map[string]bool
}

// NewRegistry creates an empty registry
func NewRegistry(kind Kind) *Registry {
	return &Registry{
		kind:       kind,
		registered: make(map[string]*Asset),
		done:       make(map[string]bool),
	}
}

// Register adds an asset unless the handle is already taken
func (r *Registry) Register(a Asset) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.register(a)
}

func (r *Registry) register(a Asset) bool {
	if a.Handle == "" {
		return false
	}
	if _, exists := r.registered[a.Handle]; exists {
		return false
	}
	cp := a
	cp.Deps = append([]string(nil), a.Deps...)
	cp.Inline = append([]string(nil), a.Inline...)
	if a.Data != nil {
		cp.Data = make(map[string]string, len(a.Data))
		for k, v := range a.Data {
			cp.Data[k] = v
		}
	}
	r.registered[a.Handle] = &cp
	return true
}

// Enqueue registers a (when not registered yet) and appends its handle
// to the queue
func (r *Registry) Enqueue(a Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.registered[a.Handle]; !exists {
		if !r.register(a) {
			return
		}
	}
	for _, h := range r.queue {
		if h == a.Handle {
			return
		}
	}
	r.queue = append(r.queue, a.Handle)
}

// Dequeue removes a handle from the queue but keeps it registered
func (r *Registry) Dequeue(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, h := range r.queue {
		if h == handle {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

// Deregister forgets an asset
func (r *Registry) Deregister(handle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.registered, handle)
}

// Queued returns a snapshot of the queued handles in order
func (r *Registry) Queued() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queue...)
}

// IsQueued reports whether handle is in the queue
func (r *Registry) IsQueued(handle string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, h := range r.queue {
		if h == handle {
			return true
		}
	}
	return false
}

// Registered returns a copy of a registered asset
func (r *Registry) Registered(handle string) (Asset, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.registered[handle]
	if !ok {
		return Asset{}, false
	}
	cp := *a
	cp.Deps = append([]string(nil), a.Deps...)
	cp.Inline = append([]string(nil), a.Inline...)
	return cp, true
}

// SetDeps replaces the dependencies of a registered asset
func (r *Registry) SetDeps(handle string, deps []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.registered[handle]
	if !ok {
		return false
	}
	a.Deps = append([]string(nil), deps...)
	return true
}

// AddInline attaches code printed right after the asset's tag
func (r *Registry) AddInline(handle, code string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.registered[handle]
	if !ok || code == "" {
		return false
	}
	a.Inline = append(a.Inline, code)
	return true
}

// AddData stores a key/value pair on a registered asset
func (r *Registry) AddData(handle, key, value string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.registered[handle]
	if !ok {
		return false
	}
	if a.Data == nil {
		a.Data = make(map[string]string)
	}
	a.Data[key] = value
	return true
}

// Print writes tags for every queued handle, dependencies first. Each
// handle is printed at most once per registry; handles that are not
// registered are skipped.
func (r *Registry) Print(w io.Writer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, h := range r.queue {
		if err := r.print(w, h, map[string]bool{}); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) print(w io.Writer, handle string, visiting map[string]bool) error {
	if r.done[handle] || visiting[handle] {
		return nil
	}
	a, ok := r.registered[handle]
	if !ok {
		return nil
	}

	visiting[handle] = true
	for _, dep := range a.Deps {
		if err := r.print(w, dep, visiting); err != nil {
			return err
		}
	}
	r.done[handle] = true

	_, err := io.WriteString(w, r.tag(a))
	return err
}

func (r *Registry) tag(a *Asset) string {
	var b strings.Builder
	id := html.EscapeString(a.Handle)

	if a.Src != "" {
		href := html.EscapeString(versioned(a.Src, a.Ver))
		switch r.kind {
		case KindScript:
			fmt.Fprintf(&b, "<script src=\"%s\" id=\"%s-js\"></script>\n", href, id)
		default:
			media := a.Media
			if media == "" {
				media = "all"
			}
			fmt.Fprintf(&b, "<link rel=\"stylesheet\" id=\"%s-css\" href=\"%s\" media=\"%s\" />\n",
				id, href, html.EscapeString(media))
		}
	}

	if len(a.Inline) > 0 {
		code := strings.Join(a.Inline, "\n")
		switch r.kind {
		case KindScript:
			fmt.Fprintf(&b, "<script id=\"%s-js-after\">\n%s\n</script>\n", id, code)
		default:
			fmt.Fprintf(&b, "<style id=\"%s-inline-css\">\n%s\n</style>\n", id, code)
		}
	}

	return b.String()
}

// versioned appends ?ver= to src when a version is set
func versioned(src, ver string) string {
	if ver == "" {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	q := u.Query()
	q.Set("ver", ver)
	u.RawQuery = q.Encode()
	return u.String()
}

// Handles returns all registered handles in sorted order
func (r *Registry) Handles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]string, 0, len(r.registered))
	for h := range r.registered {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
