package server

import (
	"fmt"
	"net/http"

	"github.com/opticore/opticore/web"
)

// staticHandler serves the embedded console assets below StaticPrefix
func staticHandler() (http.Handler, error) {
	staticFS, err := web.GetStaticFS()
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded static files: %w", err)
	}
	return http.StripPrefix(StaticPrefix, http.FileServer(http.FS(staticFS))), nil
}
