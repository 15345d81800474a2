package mock

import (
	"net/textproto"
	"strings"
	"time"

	"github.com/gofiber/utils"
)

type (
	// Request holds everything the resolver needs to know about an incoming request.
	// It is fully buffered; nothing in here touches the transport.
	Request struct {
		Method  string
		Path    string
		Query   string
		Body    string
		Headers map[string]string
	}

	// Header is one response header with every value it was declared with
	Header struct {
		Name   string
		Values []string
	}

	// Headers keeps response headers in the order they were first declared
	Headers []Header

	// Definition is a parsed mock file
	Definition struct {
		Status  int
		Headers Headers
		Body    string
	}

	// Response is what the resolver hands back to the transport
	Response struct {
		Status  int
		Headers Headers
		Body    string
		// Delay is how long the transport holds the response before writing it
		Delay time.Duration
		// File is the mock file that produced the response, empty when nothing matched
		File    string
		Matched bool
	}
)

// NotMockedBody is the body sent when no mock file matches a request
const NotMockedBody = "Not Mocked"

// NewRequest builds a normalized Request. A raw query found on path wins over the query argument
// only when the latter is empty.
func NewRequest(method, path, query, body string, headers map[string]string) *Request {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if query == "" {
			query = path[i+1:]
		}
		path = path[:i]
	}

	normalized := make(map[string]string, len(headers))
	for name, value := range headers {
		normalized[utils.ToLower(name)] = value
	}

	return &Request{
		Method:  utils.ToUpper(method),
		Path:    NormalizePath(path),
		Query:   strings.ReplaceAll(query, "?", ""),
		Body:    body,
		Headers: normalized,
	}
}

// NormalizePath returns path with a single leading slash and no trailing slash. The root is "/".
func NormalizePath(path string) string {
	path = utils.TrimRight(path, '/')
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return path
}

// Header returns the request header value for name, case-insensitively
func (r *Request) Header(name string) string {
	return r.Headers[utils.ToLower(name)]
}

// Segments returns the non-empty path segments of the request
func (r *Request) Segments() []string {
	return Segments(r.Path)
}

// Segments splits a slash separated path dropping blank segments
func Segments(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}

	return segments
}

// headerCaseExceptions are header names whose usual spelling is not plain word capitalization
var headerCaseExceptions = map[string]string{
	"content-md5":           "Content-MD5",
	"dnt":                   "DNT",
	"etag":                  "ETag",
	"last-event-id":         "Last-Event-ID",
	"tcn":                   "TCN",
	"te":                    "TE",
	"www-authenticate":      "WWW-Authenticate",
	"x-att-deviceid":        "X-ATT-DeviceId",
	"x-dnsprefetch-control": "X-DNSPrefetch-Control",
	"x-uidh":                "X-UIDH",
}

// NormalizeHeaderName returns the canonical capitalization of a header name, so "content-type" and
// "CONTENT-TYPE" both become "Content-Type" while "www-authenticate" becomes "WWW-Authenticate".
func NormalizeHeaderName(name string) string {
	name = strings.TrimSpace(name)
	if exception, ok := headerCaseExceptions[utils.ToLower(name)]; ok {
		return exception
	}

	return textproto.CanonicalMIMEHeaderKey(name)
}

// Add appends value to the header name, creating it if needed
func (h *Headers) Add(name, value string) {
	name = NormalizeHeaderName(name)
	for i := range *h {
		if (*h)[i].Name == name {
			(*h)[i].Values = append((*h)[i].Values, value)
			return
		}
	}

	*h = append(*h, Header{Name: name, Values: []string{value}})
}

// Get returns the first value of the header name or an empty string
func (h Headers) Get(name string) string {
	values := h.Values(name)
	if len(values) == 0 {
		return ""
	}

	return values[0]
}

// Values returns every value of the header name
func (h Headers) Values(name string) []string {
	name = NormalizeHeaderName(name)
	for _, header := range h {
		if header.Name == name {
			return header.Values
		}
	}

	return nil
}

// Has reports whether the header name was declared
func (h Headers) Has(name string) bool {
	return h.Values(name) != nil
}

// Without returns a copy of h that drops the header name
func (h Headers) Without(name string) Headers {
	name = NormalizeHeaderName(name)
	out := make(Headers, 0, len(h))
	for _, header := range h {
		if header.Name != name {
			out = append(out, header)
		}
	}

	return out
}

// Map flattens the headers into the shape most callers want: single values as a string, repeated
// headers as a []string.
func (h Headers) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for _, header := range h {
		if len(header.Values) == 1 {
			out[header.Name] = header.Values[0]
		} else {
			out[header.Name] = append([]string(nil), header.Values...)
		}
	}

	return out
}
