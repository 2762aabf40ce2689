// Package clients fetches link previews for tracked URLs.
package clients

import "context"

type Request interface {
	FetchPreview(ctx context.Context, rawURL string) (*Preview, error)
	Close()
}

type RequestBuilder struct {
	Request Request
}

func NewRequestBuilder(t *HTTPClientOptions) *RequestBuilder {
	return &RequestBuilder{
		Request: NewClientRequest(t),
	}
}
