package httpd

import (
	"strconv"

	"github.com/harveysanders/picodisplay/textboard/control"
	"github.com/soypat/lneto/http/httpraw"
)

const statusRequestTooLarge = 413

func reasonPhrase(code int) string {
	switch code {
	case control.StatusOK:
		return "OK"
	case control.StatusBadRequest:
		return "Bad Request"
	case control.StatusNotFound:
		return "Not Found"
	case control.StatusMethodNotAllowed:
		return "Method Not Allowed"
	case statusRequestTooLarge:
		return "Request Entity Too Large"
	}
	return "Unknown"
}

// AppendResponse appends resp as an HTTP/1.1 response to dst, using hdr to
// build the header. The connection is always marked for closing.
func AppendResponse(dst []byte, hdr *httpraw.Header, resp control.Response) ([]byte, error) {
	hdr.Reset(nil)
	hdr.SetProtocol("HTTP/1.1")
	hdr.SetStatus(strconv.Itoa(resp.Status), reasonPhrase(resp.Status))
	hdr.Set("Content-Type", resp.ContentType)
	hdr.Set("Content-Length", strconv.Itoa(len(resp.Body)))
	hdr.Set("Connection", "close")
	dst, err := hdr.AppendResponse(dst)
	if err != nil {
		return dst, err
	}
	return append(dst, resp.Body...), nil
}
