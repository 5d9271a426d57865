package server

import (
	"fmt"
	"strconv"
	"time"

	"github.com/valyala/bytebufferpool"
	"github.com/yoppeh/nvhttpd/cache"
	"github.com/yoppeh/nvhttpd/request"
	"github.com/yoppeh/nvhttpd/transport"
)

// Status is a response status code
type Status int

// Statuses the server responds with
const (
	StatusOK                  Status = 200
	StatusBadRequest          Status = 400
	StatusNotFound            Status = 404
	StatusInternalServerError Status = 500
	StatusNotImplemented      Status = 501
)

var statusText = map[Status]string{
	StatusOK:                  "OK",
	StatusBadRequest:          "Bad Request",
	StatusNotFound:            "Not Found",
	StatusInternalServerError: "Internal Server Error",
	StatusNotImplemented:      "Not Implemented",
}

// Line returns the status line without the protocol, e.g. "404 Not Found"
func (s Status) Line() string {
	return strconv.Itoa(int(s)) + " " + statusText[s]
}

// ErrorPath returns the content path of the canned page for s
func (s Status) ErrorPath() string {
	return fmt.Sprintf("/error/%d/index.html", int(s))
}

const (
	fallbackMime = "text/plain"
	// dateFormat is RFC 1123 with the zone fixed to GMT
	dateFormat = "Mon, 02 Jan 2006 15:04:05 GMT"
)

// statusFor maps a parse failure onto the response status
func statusFor(kind request.Kind) Status {
	switch kind {
	case request.KindMalformed:
		return StatusBadRequest
	case request.KindUnsupported:
		return StatusNotImplemented
	default:
		return StatusInternalServerError
	}
}

type response struct {
	status Status
	mime   string
	body   []byte
	// head omits the body, Content-Length still reports its size
	head bool
}

// resolve picks the response for path in g. A missing path falls back to
// the canned 404 page, then to a plain text status line.
func resolve(g *cache.Generation, path string) response {
	if e, ok := g.Find(path); ok {
		return response{status: StatusOK, mime: e.MIME, body: e.Data}
	}
	return canned(g, StatusNotFound)
}

// canned returns the configured page for an error status, or a plain text
// status line when the page is not in the cache
func canned(g *cache.Generation, s Status) response {
	if e, ok := g.Find(s.ErrorPath()); ok {
		return response{status: s, mime: e.MIME, body: e.Data}
	}
	return response{status: s, mime: fallbackMime, body: []byte(s.Line() + "\n")}
}

// writeResponse sends r with the operator's extra headers appended to the
// fixed header block. It returns the number of bytes written.
func writeResponse(t transport.Transport, r response, extra string, now time.Time) (int, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	buf.B = append(buf.B, "HTTP/1.1 "...)
	buf.B = append(buf.B, r.status.Line()...)
	buf.B = append(buf.B, "\r\nDate: "...)
	buf.B = now.UTC().AppendFormat(buf.B, dateFormat)
	buf.B = append(buf.B, "\r\nContent-Type: "...)
	buf.B = append(buf.B, r.mime...)
	buf.B = append(buf.B, "\r\nContent-Length: "...)
	buf.B = strconv.AppendInt(buf.B, int64(len(r.body)), 10)
	buf.B = append(buf.B, "\r\n"...)
	buf.B = append(buf.B, extra...)
	buf.B = append(buf.B, "\r\n"...)

	n := buf.Len()
	if err := transport.WriteAll(t, buf.B); err != nil {
		return 0, err
	}
	if r.head || len(r.body) == 0 {
		return n, nil
	}
	if err := transport.WriteAll(t, r.body); err != nil {
		return n, err
	}
	return n + len(r.body), nil
}
