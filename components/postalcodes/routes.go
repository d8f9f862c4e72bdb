package postalcodes

import (
	"fmt"
	"net/http"
	"strings"
)

// Mux is the minimal interface required to register a net/http handler.
// It is satisfied by *http.ServeMux.
type Mux interface {
	Handle(pattern string, handler http.Handler)
}

// MountPath returns the full mount path for the lookup route under basePath.
func MountPath(basePath string, fns ...OptionFn) string {
	return mountPath(basePath, NewOptions(fns...).RoutePath)
}

// RegisterRoutes registers the handler on mux for both the query form and
// the path form (pattern + "/").
func RegisterRoutes(mux Mux, basePath string, fns ...OptionFn) (string, error) {
	return RegisterRoutesWithOptions(mux, basePath, NewOptions(fns...))
}

// RegisterRoutesWithOptions registers a handler using a pre-built Options
// value.
func RegisterRoutesWithOptions(mux Mux, basePath string, opts Options) (string, error) {
	if mux == nil {
		return "", fmt.Errorf("postalcodes: missing mux")
	}
	opts = NewOptions(func(o *Options) { *o = opts })
	pattern := mountPath(basePath, opts.RoutePath)
	handler := HandlerWithOptions(opts)
	mux.Handle(pattern, handler)
	mux.Handle(pattern+"/", handler)
	return pattern, nil
}

func mountPath(basePath, routePath string) string {
	routePath = "/" + strings.Trim(strings.TrimSpace(routePath), "/")
	basePath = strings.Trim(strings.TrimSpace(basePath), "/")
	if basePath == "" {
		return routePath
	}
	return "/" + basePath + routePath
}
