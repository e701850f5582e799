package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/telekom/git-credential-msal/pkg/wwwauth"
)

// ErrMalformedLine indicates an input line without a key=value separator.
// This is the only input condition the helper treats as fatal.
var ErrMalformedLine = errors.New("malformed credential protocol line")

// Request holds one parsed credential request. Scalar attributes are
// last-write-wins; attributes written with a "[]" suffix accumulate in
// arrival order, and an empty value resets the accumulated list (see
// gitcredentials(7)).
type Request struct {
	scalars map[string]string
	lists   map[string][]string
}

// Parse reads newline-terminated key=value lines until EOF and builds the
// request. Each line is split on the first "=".
func Parse(r io.Reader) (*Request, error) {
	req := &Request{
		scalars: map[string]string{},
		lists:   map[string][]string{},
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformedLine, line)
		}
		if trimmed, isList := strings.CutSuffix(key, "[]"); isList {
			if value == "" {
				// An empty assignment clears previous values but still
				// marks the attribute as present.
				req.lists[trimmed] = nil
				continue
			}
			if _, seen := req.lists[trimmed]; !seen {
				req.lists[trimmed] = nil
			}
			req.lists[trimmed] = append(req.lists[trimmed], value)
			continue
		}
		req.scalars[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading credential request: %w", err)
	}
	return req, nil
}

// Get returns a scalar attribute value, or "" when absent.
func (r *Request) Get(key string) string {
	return r.scalars[key]
}

// GetAll returns the accumulated values of a multi-valued attribute and
// whether the attribute was present at all.
func (r *Request) GetAll(key string) ([]string, bool) {
	values, ok := r.lists[key]
	return values, ok
}

// Protocol returns the "protocol" attribute.
func (r *Request) Protocol() string { return r.Get("protocol") }

// Host returns the "host" attribute.
func (r *Request) Host() string { return r.Get("host") }

// URL reconstructs the remote URL the request is scoped to.
func (r *Request) URL() string {
	return r.Protocol() + "://" + r.Host()
}

// SupportsAuthType reports whether the invoking git announced the authtype
// capability. Without it git cannot consume a Bearer credential.
func SupportsAuthType(r *Request) bool {
	caps, ok := r.GetAll("capability")
	if !ok {
		return false
	}
	for _, c := range caps {
		if c == "authtype" {
			return true
		}
	}
	return false
}

// OffersBearer reports whether any forwarded WWW-Authenticate value
// advertises the Bearer scheme.
func OffersBearer(r *Request) bool {
	challenges, ok := r.GetAll("wwwauth")
	if !ok {
		return false
	}
	for _, c := range challenges {
		if wwwauth.IsBearer(c) {
			return true
		}
	}
	return false
}

// Response is the credential the helper hands back to git on success.
type Response struct {
	Credential string
	ExpiryUnix int64
}

// Write emits the four response lines in protocol order. Nothing else may
// be written to the protocol stream.
func (resp *Response) Write(w io.Writer) error {
	_, err := fmt.Fprintf(w, "capability[]=authtype\nauthtype=Bearer\ncredential=%s\npassword_expiry_utc=%d\n",
		resp.Credential, resp.ExpiryUnix)
	return err
}
