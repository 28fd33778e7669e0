package keepwarm

import (
	"fmt"
	"net/http"
	"strings"
)

const (
	contentTypeJSON = "application/json"
	contentTypeForm = "application/x-www-form-urlencoded"
)

// Request is a fully built outbound ping request.
type Request struct {
	URL    string
	Method string
	Header http.Header

	// Body is nil when no payload is sent.
	Body []byte

	// EncodingErr is set when a structured body could not be encoded for
	// its declared content type. Body then holds a best-effort text
	// rendering and the request is still sent.
	EncodingErr error
}

// BuildRequest turns a configuration into the request that one ping sends.
//
// Body rules:
//   - GET and HEAD requests, and absent bodies, send no payload.
//   - A raw body is sent as-is.
//   - A structured body is JSON-encoded when Content-Type contains
//     application/json or is unset (Content-Type is then set to
//     application/json); form-encoded when it contains
//     application/x-www-form-urlencoded; JSON-encoded for anything else.
//
// BuildRequest never fails. Encoding problems degrade to a text rendering
// recorded in [Request.EncodingErr]; request construction problems such as
// a malformed URL surface when the request is executed.
func BuildRequest(cfg Configuration) Request {
	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = DefaultMethod
	}

	header := make(http.Header, len(cfg.Headers)+1)
	for name, value := range cfg.Headers {
		header.Set(name, value)
	}

	req := Request{
		URL:    cfg.URL,
		Method: method,
		Header: header,
	}

	if method == http.MethodGet || method == http.MethodHead {
		return req
	}

	switch cfg.Body.Kind() {
	case BodyRaw:
		req.Body = []byte(cfg.Body.Raw())

	case BodyStructured:
		contentType := strings.ToLower(header.Get("Content-Type"))
		if contentType == "" {
			header.Set("Content-Type", contentTypeJSON)
		}

		var (
			data []byte
			err  error
		)
		if strings.Contains(contentType, contentTypeForm) {
			data, err = encodeForm(cfg.Body.Node())
			if err != nil {
				// form encoding only fits mappings; send JSON text instead
				data, err = encodeJSON(cfg.Body.Node())
			}
		} else {
			data, err = encodeJSON(cfg.Body.Node())
		}
		if err != nil {
			req.EncodingErr = fmt.Errorf("failed to encode body: %w", err)
			data = []byte(fallbackText(cfg.Body.Node()))
		}
		req.Body = data
	}

	return req
}
