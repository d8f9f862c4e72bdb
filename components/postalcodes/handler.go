package postalcodes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/goliatone/go-formflow/pkg/model"
)

type HTTPError interface {
	error
	StatusCode() int
}

type StatusError struct {
	Code int
	Err  error
}

func (e StatusError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return http.StatusText(e.Code)
}

func (e StatusError) Unwrap() error { return e.Err }

func (e StatusError) StatusCode() int {
	if e.Code <= 0 {
		return http.StatusInternalServerError
	}
	return e.Code
}

type addressResponse struct {
	Data *Address `json:"data,omitempty"`
	// Error carries a short machine-readable reason on 4xx responses.
	Error string `json:"error,omitempty"`
}

// Handler builds a net/http handler with default options plus any overrides.
func Handler(fns ...OptionFn) http.Handler {
	return HandlerWithOptions(NewOptions(fns...))
}

// HandlerWithOptions builds a handler from a pre-constructed Options value.
// The code is read from the query parameter, falling back to the last path
// segment so both /api/postal-codes?code=01310100 and
// /api/postal-codes/01310100 resolve.
func HandlerWithOptions(opts Options) http.Handler {
	opts = NewOptions(func(o *Options) { *o = opts })
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r == nil {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", http.MethodGet+", "+http.MethodHead)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		if opts.Guard != nil {
			if err := opts.Guard(r); err != nil {
				writeGuardError(w, err)
				return
			}
		}

		dir, err := opts.directory()
		if err != nil {
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		code := model.Digits(requestCode(r, opts))
		if len(code) != CodeLength {
			writeJSON(w, r, http.StatusBadRequest, addressResponse{Error: "invalid postal code"})
			return
		}
		addr, ok := dir.Find(code)
		if !ok {
			writeJSON(w, r, http.StatusNotFound, addressResponse{Error: "not found"})
			return
		}
		writeJSON(w, r, http.StatusOK, addressResponse{Data: &addr})
	})
}

func requestCode(r *http.Request, opts Options) string {
	if code := strings.TrimSpace(r.URL.Query().Get(opts.CodeParam)); code != "" {
		return code
	}
	path := strings.TrimRight(r.URL.Path, "/")
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		return path[idx+1:]
	}
	return path
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body addressResponse) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(body)
}

func writeGuardError(w http.ResponseWriter, err error) {
	if w == nil {
		return
	}
	if err == nil {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	code := http.StatusForbidden
	var httpErr HTTPError
	if errors.As(err, &httpErr) && httpErr != nil {
		code = httpErr.StatusCode()
		if code <= 0 {
			code = http.StatusForbidden
		}
	}
	http.Error(w, http.StatusText(code), code)
}
