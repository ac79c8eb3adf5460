package server

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/opticore/opticore/internal/features"
	"github.com/opticore/opticore/internal/hooks"
	"github.com/opticore/opticore/internal/optimizer"
	"github.com/opticore/opticore/internal/storage"
	"github.com/opticore/opticore/pkg/compression"
)

const adminPrefix = "/wp-admin"

// handlePage renders one page of the site. Core callbacks are registered
// first so enabled features can remove or reorder them.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	blob, err := s.store.Load(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load settings")
		http.Error(w, "Failed to load settings", http.StatusInternalServerError)
		return
	}

	lc := hooks.New()
	s.site.Register(lc)

	loaded := features.Load(blob, lc, s.featureEnv(), nil)

	p := s.site.NewPage(r.URL.Path)
	p.Query = r.URL.Query()
	p.Admin = r.URL.Path == adminPrefix || strings.HasPrefix(r.URL.Path, adminPrefix+"/")
	p.Editing = r.URL.Path == adminPrefix+"/post.php" || r.URL.Path == adminPrefix+"/post-new.php"
	p.AdminBar = p.Admin

	resp := s.site.Render(ctx, lc, p)

	s.logger.WithFields(logrus.Fields{
		"path":     r.URL.Path,
		"features": len(loaded),
		"status":   resp.Status,
		"pings":    len(resp.Pings),
	}).Debug("Page rendered")

	for name, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(resp.Body)))
	w.WriteHeader(resp.Status)
	if r.Method != http.MethodHead {
		io.WriteString(w, resp.Body)
	}
}

func (s *Server) featureEnv() *features.Env {
	return &features.Env{
		Logger:      s.logger,
		Fetcher:     s.fetcher,
		Cache:       s.cache,
		CacheURL:    s.config.PublicURL + strings.TrimSuffix(CachePrefix, "/"),
		Precompress: s.config.Cache.Precompress,
		Recorder:    s.metricsManager,
		StaticURL:   s.config.PublicURL + strings.TrimSuffix(StaticPrefix, "/"),
	}
}

// handleCacheFile serves files below the cache directory, preferring a
// precompressed sibling the client accepts
func (s *Server) handleCacheFile(w http.ResponseWriter, r *http.Request) {
	rel := strings.TrimPrefix(r.URL.Path, CachePrefix)
	if !strings.HasPrefix(rel, optimizer.CacheRoot+"/") {
		http.NotFound(w, r)
		return
	}

	w.Header().Add("Vary", "Accept-Encoding")

	for _, alg := range compression.Negotiate(r.Header.Get("Accept-Encoding")) {
		file, info, err := s.cache.Get(r.Context(), rel+alg.Extension())
		if err != nil {
			continue
		}
		w.Header().Set("Content-Encoding", string(alg))
		s.serveCacheFile(w, r, rel, file, info)
		return
	}

	file, info, err := s.cache.Get(r.Context(), rel)
	if err != nil {
		if !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.WithError(err).WithField("path", rel).Warn("Failed to open cache file")
		}
		http.NotFound(w, r)
		return
	}
	s.serveCacheFile(w, r, rel, file, info)
}

func (s *Server) serveCacheFile(w http.ResponseWriter, r *http.Request, name string, file io.ReadCloser, info storage.ObjectInfo) {
	defer file.Close()

	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	// Links carry ?ver=<mtime> so a stale file is never requested again
	w.Header().Set("Cache-Control", "public, max-age=31536000")

	if rs, ok := file.(io.ReadSeeker); ok {
		http.ServeContent(w, r, name, info.LastModified, rs)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if r.Method != http.MethodHead {
		io.Copy(w, file)
	}
}
