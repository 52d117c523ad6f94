// Package header shapes the outbound header set for upstream requests.
//
// Two header sources feed every request: the adapter's computed protocol
// headers (auth, version pins, content type) and the user's custom headers
// from model config. User headers win on collision, except for a small
// reserved set that the transport must own.
package header

import "net/http"

// reserved is the set of headers user config may not override. Go's
// http.Transport manages these per connection; a configured value would
// desynchronize the request from the actual transport behavior.
var reserved = map[string]struct{}{
	"Host":              {},
	"Content-Length":    {},
	"Connection":        {},
	"Accept-Encoding":   {},
	"Transfer-Encoding": {},
}

// Apply sets computed protocol headers, then overlays custom user headers,
// skipping reserved names.
func Apply(req *http.Request, computed, custom map[string]string) {
	for k, v := range computed {
		req.Header.Set(k, v)
	}
	for k, v := range custom {
		if _, skip := reserved[http.CanonicalHeaderKey(k)]; skip {
			continue
		}
		req.Header.Set(k, v)
	}
}
