// Package httpd serves the control endpoint over HTTP/1.1 on an lneto TCP
// stack. It handles one connection at a time and closes it after the
// response, which is all a single-panel controller needs.
package httpd

import (
	"bytes"
	"errors"
	"io"
	"strconv"

	"github.com/soypat/lneto/http/httpraw"
)

var (
	ErrIncomplete  = errors.New("httpd: incomplete request")
	ErrTooLarge    = errors.New("httpd: request too large")
	ErrBadRequest  = errors.New("httpd: bad request")
	ErrUnsupported = errors.New("httpd: unsupported transfer encoding")
)

// Request is a parsed HTTP request. Body aliases the read buffer.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// ReadRequest reads one request from r. The header and body are accumulated
// in buf, whose capacity bounds the request size; hdr is reset to use it.
func ReadRequest(r io.Reader, hdr *httpraw.Header, buf []byte) (Request, error) {
	const asResponse = false
	var req Request
	hdr.Reset(buf[:0])
	needMore := true
	for needMore {
		if hdr.BufferFree() == 0 {
			return req, ErrTooLarge
		}
		_, err := hdr.ReadFromLimited(r, hdr.BufferFree())
		if err != nil {
			return req, errors.Join(ErrIncomplete, err)
		}
		if !requestLineComplete(buf[:hdr.BufferReceived()]) {
			continue
		}
		needMore, err = hdr.TryParse(asResponse)
		if err != nil && !needMore {
			return req, errors.Join(ErrBadRequest, err)
		}
	}

	method, uri := hdr.Method(), hdr.RequestURI()
	proto := bytes.TrimSpace(hdr.Protocol())
	if len(method) == 0 || len(uri) == 0 || !bytes.HasPrefix(proto, []byte("HTTP/1.")) {
		return req, ErrBadRequest
	}
	req.Method = string(method)
	req.Path = string(uri)

	hdr.ForEach(func(key, value []byte) error {
		httpraw.NormalizeHeaderKey(key)
		return nil
	})
	if te := hdr.Get("Transfer-Encoding"); te != nil && string(te) != "identity" {
		return req, ErrUnsupported
	}
	length := 0
	if cl := hdr.Get("Content-Length"); cl != nil {
		n, err := strconv.Atoi(string(bytes.TrimSpace(cl)))
		if err != nil || n < 0 {
			return req, ErrBadRequest
		}
		length = n
	}
	if length > hdr.BufferCapacity()-hdr.BufferParsed() {
		return req, ErrTooLarge
	}

	for {
		body, err := hdr.Body()
		if err != nil {
			return req, errors.Join(ErrBadRequest, err)
		}
		if len(body) >= length {
			req.Body = body[:length]
			return req, nil
		}
		_, err = hdr.ReadFromLimited(r, hdr.BufferFree())
		if err != nil {
			return req, errors.Join(ErrIncomplete, err)
		}
	}
}

// requestLineComplete reports whether buf holds a newline-terminated request
// line. The header parser treats everything up to the end of the buffer as
// the request line, so it must not run on a partial one.
func requestLineComplete(buf []byte) bool {
	return bytes.IndexByte(bytes.TrimLeft(buf, "\r\n"), '\n') >= 0
}
