package postalcodes

import "net/http"

// Component wraps the lookup handler, its configuration and routing helpers.
type Component struct {
	opts Options
}

// New constructs a component with default options plus any overrides.
func New(fns ...OptionFn) *Component {
	return &Component{opts: NewOptions(fns...)}
}

// Options returns a copy of the component configuration.
func (c *Component) Options() Options {
	if c == nil {
		return DefaultOptions()
	}
	return NewOptions(func(o *Options) { *o = c.opts })
}

// Handler returns the net/http handler.
func (c *Component) Handler() http.Handler {
	if c == nil {
		return Handler()
	}
	return HandlerWithOptions(c.opts)
}

// RegisterRoutes registers the handler under basePath on mux.
func (c *Component) RegisterRoutes(mux Mux, basePath string) (string, error) {
	if c == nil {
		return RegisterRoutes(mux, basePath)
	}
	return RegisterRoutesWithOptions(mux, basePath, c.opts)
}

// Lookup returns an in-process lookup over the component's directory,
// writing to fields.
func (c *Component) Lookup(fields FieldMap) (DirectoryLookup, error) {
	dir, err := c.Options().directory()
	if err != nil {
		return DirectoryLookup{}, err
	}
	return DirectoryLookup{Directory: dir, Fields: fields}, nil
}
