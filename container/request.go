// File: container/request.go
// Author: momentics <momentics@gmail.com>

package container

import (
	"net/url"
	"time"
)

// Request is what the HTTP/1.1 Processor hands the pipeline: the
// servlet API surface proper is out of scope (spec §1), so this is a
// minimal strongly-typed carrier of what a Valve needs.
type Request struct {
	ID          string // unique per request, for access log correlation
	Method      string
	URI         string
	QueryString string
	Protocol    string
	Headers     map[string][]string
	Host        string
	Body        []byte // body, if fully buffered by the caller
	ReceivedAt  time.Time

	// Attributes lets upstream valves stash data (selected Host,
	// Context, Wrapper) for downstream valves to read, analogous to
	// ServletRequest attributes.
	Attributes map[string]any
}

// Header returns the first value for name (case-sensitive; the http1
// Processor stores header names lowercased).
func (r *Request) Header(name string) string {
	vs := r.Headers[name]
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}

// ParsedURL parses URI (which may include a query string already
// split out via QueryString) into a *url.URL for path matching.
func (r *Request) ParsedURL() (*url.URL, error) {
	u := r.URI
	if r.QueryString != "" {
		u += "?" + r.QueryString
	}
	return url.ParseRequestURI(u)
}

// Response is the outgoing half; valves write to it and the final
// basic valve (or an earlier one, on error) commits it.
type Response struct {
	Status    int
	Headers   map[string][]string
	Body      []byte
	Committed bool
}

// SetHeader overwrites any existing values for name.
func (resp *Response) SetHeader(name, value string) {
	if resp.Headers == nil {
		resp.Headers = make(map[string][]string)
	}
	resp.Headers[name] = []string{value}
}

// Commit marks the response as sent; a Valve invoking further
// processing after Commit is the ILLEGAL_STATE protocol violation
// named in spec §7.
func (resp *Response) Commit() { resp.Committed = true }
