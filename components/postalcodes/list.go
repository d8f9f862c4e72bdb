package postalcodes

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-formflow/pkg/model"
)

//go:embed data/postal_codes.txt
var dataFS embed.FS

const defaultListPath = "data/postal_codes.txt"

// CodeLength is the number of digits in a postal code.
const CodeLength = 8

// Address is the lookup result for one postal code.
type Address struct {
	PostalCode string `json:"postalCode"`
	Street     string `json:"street"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
}

// Directory indexes addresses by their digit-only postal code.
type Directory map[string]Address

// Find returns the address for code, which may carry separators.
func (d Directory) Find(code string) (Address, bool) {
	addr, ok := d[model.Digits(code)]
	return addr, ok
}

// Codes lists the known postal codes in order.
func (d Directory) Codes() []string {
	out := make([]string, 0, len(d))
	for code := range d {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// NewDirectory indexes addresses, normalizing their postal codes.
func NewDirectory(addresses []Address) Directory {
	dir := make(Directory, len(addresses))
	for _, addr := range addresses {
		code := model.Digits(addr.PostalCode)
		if len(code) != CodeLength {
			continue
		}
		addr.PostalCode = code
		dir[code] = addr
	}
	return dir
}

var (
	defaultOnce sync.Once
	defaultDir  Directory
	defaultErr  error
)

// DefaultDirectory returns the embedded directory.
func DefaultDirectory() (Directory, error) {
	defaultOnce.Do(func() {
		f, err := dataFS.Open(defaultListPath)
		if err != nil {
			defaultErr = err
			return
		}
		defer func() { _ = f.Close() }()

		addresses, err := LoadAddresses(f)
		if err != nil {
			defaultErr = err
			return
		}
		defaultDir = NewDirectory(addresses)
	})

	if defaultErr != nil {
		return nil, defaultErr
	}
	out := make(Directory, len(defaultDir))
	for code, addr := range defaultDir {
		out[code] = addr
	}
	return out, nil
}

// LoadAddresses reads pipe-separated lines of
// code|street|district|city|state. Blank lines and # comments are skipped.
func LoadAddresses(r io.Reader) ([]Address, error) {
	if r == nil {
		return nil, fmt.Errorf("postalcodes: missing reader")
	}

	scanner := bufio.NewScanner(r)
	var out []Address
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) != 5 {
			return nil, fmt.Errorf("postalcodes: line %d: expected 5 fields, got %d", lineNo, len(parts))
		}
		code := model.Digits(parts[0])
		if len(code) != CodeLength {
			return nil, fmt.Errorf("postalcodes: line %d: invalid postal code %q", lineNo, parts[0])
		}
		out = append(out, Address{
			PostalCode: code,
			Street:     strings.TrimSpace(parts[1]),
			District:   strings.TrimSpace(parts[2]),
			City:       strings.TrimSpace(parts[3]),
			State:      strings.TrimSpace(parts[4]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
