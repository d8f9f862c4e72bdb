package postalcodes

import (
	"net/http"

	"github.com/goliatone/go-formflow/pkg/model"
)

// GuardFunc rejects requests before the lookup runs.
type GuardFunc func(r *http.Request) error

// FieldMap names the form fields that receive each address part. Empty
// entries are not written.
type FieldMap struct {
	Street   model.FieldName
	District model.FieldName
	City     model.FieldName
	State    model.FieldName
}

// DefaultFieldMap writes street, district, city and state.
func DefaultFieldMap() FieldMap {
	return FieldMap{Street: "street", District: "district", City: "city", State: "state"}
}

// Values projects addr onto the mapped fields.
func (m FieldMap) Values(addr Address) model.Values {
	out := model.Values{}
	put := func(name model.FieldName, value string) {
		if name != "" && value != "" {
			out[name] = value
		}
	}
	put(m.Street, addr.Street)
	put(m.District, addr.District)
	put(m.City, addr.City)
	put(m.State, addr.State)
	return out
}

// Targets lists the mapped field names.
func (m FieldMap) Targets() []model.FieldName {
	var out []model.FieldName
	for _, name := range []model.FieldName{m.Street, m.District, m.City, m.State} {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

type Options struct {
	RoutePath string
	CodeParam string
	Guard     GuardFunc

	Addresses []Address
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		RoutePath: "/api/postal-codes",
		CodeParam: "code",
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.RoutePath == "" {
		opts.RoutePath = "/api/postal-codes"
	}
	if opts.CodeParam == "" {
		opts.CodeParam = "code"
	}
	if opts.Addresses != nil {
		opts.Addresses = append([]Address{}, opts.Addresses...)
	}
	return opts
}

func WithRoutePath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.RoutePath = path
	}
}

func WithCodeParam(name string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.CodeParam = name
	}
}

func WithGuard(guard GuardFunc) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.Guard = guard
	}
}

// WithAddresses replaces the embedded directory.
func WithAddresses(addresses []Address) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		if addresses == nil {
			o.Addresses = nil
			return
		}
		o.Addresses = append([]Address{}, addresses...)
	}
}

func (o Options) directory() (Directory, error) {
	if o.Addresses != nil {
		return NewDirectory(o.Addresses), nil
	}
	return DefaultDirectory()
}
