// Package api routes transport-neutral invocations to the transaction service.
// The Lambda adapter and the local HTTP server both translate their native
// requests into an Envelope and write back the Response.
package api

import "strings"

// Headers is a flat header map. Lookups ignore case because API Gateway
// delivers header names in whatever case the client sent.
type Headers map[string]string

// Get returns the value of the header named key, ignoring case. An exact
// match wins; among several case variants the lexically smallest name wins.
func (h Headers) Get(key string) string {
	if v, ok := h[key]; ok {
		return v
	}
	var (
		best  string
		value string
		found bool
	)
	for k, v := range h {
		if strings.EqualFold(k, key) && (!found || k < best) {
			best, value, found = k, v, true
		}
	}
	return value
}

// Envelope is one invocation as seen by the router.
type Envelope struct {
	Method                string
	Path                  string
	Headers               Headers
	Body                  string
	IsBase64Encoded       bool
	QueryStringParameters map[string]string
}

// Query returns a query string parameter, or "" when absent.
func (e Envelope) Query(key string) string {
	if e.QueryStringParameters == nil {
		return ""
	}
	return strings.TrimSpace(e.QueryStringParameters[key])
}

// Response is what every route produces. Body is always a JSON document.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       string
}
