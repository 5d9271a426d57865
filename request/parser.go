package request

const (
	indexFile     = "index.html"
	versionPrefix = "HTTP/"
	// maxVersionLen bounds the digits and dot following the version prefix
	maxVersionLen = 9
)

// Limits bounds the size of each request component.
// Exceeding any of them is an Oversized failure.
type Limits struct {
	URI         int
	QueryName   int
	QueryValue  int
	Fragment    int
	HeaderName  int
	HeaderValue int
	Headers     int
}

// DefaultLimits are the limits used by the server unless configured otherwise
var DefaultLimits = Limits{
	URI:         1024,
	QueryName:   128,
	QueryValue:  1024,
	Fragment:    1024,
	HeaderName:  128,
	HeaderValue: 4096,
	Headers:     64,
}

type parser struct {
	c   *Cursor
	lim Limits
	req *Request
}

// Parse reads one request off the cursor.
//
// On failure the error is a *Error. The returned request is nil when the
// method could not be read, otherwise it holds what was parsed so far, which
// lets callers tell a failed HEAD from a failed GET.
// Unsupported methods are only reported once the whole request, header
// section included, parsed cleanly.
func Parse(c *Cursor, lim Limits) (*Request, error) {
	p := &parser{c: c, lim: lim}
	if err := p.parse(); err != nil {
		return p.req, err
	}
	return p.req, nil
}

func (p *parser) parse() error {
	if err := p.skipLeading(); err != nil {
		return err
	}
	if err := p.method(); err != nil {
		return err
	}
	ch, err := p.skipSpace()
	if err != nil {
		return err
	}
	if ch == '\n' {
		return malformed("expected URI after %s", p.req.Method)
	}
	if err := p.uri(); err != nil {
		return err
	}
	if ch, err = p.peek(); err != nil {
		return err
	}
	if ch == '?' {
		p.c.advance()
		if err := p.query(); err != nil {
			return err
		}
		if ch, err = p.peek(); err != nil {
			return err
		}
	}
	if ch == '#' {
		p.c.advance()
		if err := p.fragment(); err != nil {
			return err
		}
	}

	if ch, err = p.skipSpace(); err != nil {
		return err
	}
	if ch == '\n' {
		p.c.advance()
		p.req.Type = TypeSimple
		p.req.Version = Version09
		if p.req.Method != MethodGet {
			return malformed("simple request must be GET, got %s", p.req.Method)
		}
		return nil
	}

	if err := p.version(); err != nil {
		return err
	}
	if ch, err = p.skipSpace(); err != nil {
		return err
	}
	if ch != '\n' {
		return malformed("unexpected %q after version", ch)
	}
	p.c.advance()
	if p.req.Version == Version09 {
		p.req.Type = TypeSimple
		if p.req.Method != MethodGet {
			return malformed("HTTP/0.9 request must be GET, got %s", p.req.Method)
		}
	}
	if err := p.headers(); err != nil {
		return err
	}
	if !p.req.Method.Implemented() {
		return unsupported("method %s", p.req.Method)
	}
	return nil
}

func (p *parser) peek() (byte, error) {
	ch, err := p.c.Peek()
	if err != nil {
		return 0, ioError(err)
	}
	return ch, nil
}

func (p *parser) next() (byte, error) {
	ch, err := p.c.Next()
	if err != nil {
		return 0, ioError(err)
	}
	return ch, nil
}

func (p *parser) expect(want byte) error {
	ch, err := p.next()
	if err != nil {
		return err
	}
	if ch != want {
		return malformed("expected %q, got %q", want, ch)
	}
	return nil
}

// skipLeading skips any whitespace, line breaks included, ahead of the method
func (p *parser) skipLeading() error {
	for {
		ch, err := p.peek()
		if err != nil {
			return err
		}
		if !isSpace(ch) {
			return nil
		}
		p.c.advance()
	}
}

// skipSpace skips whitespace up to, not including, a line feed and returns
// the first byte that was not skipped
func (p *parser) skipSpace() (byte, error) {
	for {
		ch, err := p.peek()
		if err != nil {
			return 0, err
		}
		if ch == '\n' || !isSpace(ch) {
			return ch, nil
		}
		p.c.advance()
	}
}

func (p *parser) method() error {
	var tok [maxMethodLen]byte
	n := 0
	for {
		ch, err := p.peek()
		if err != nil {
			return err
		}
		if isSpace(ch) {
			break
		}
		if n == len(tok) {
			return malformed("method token is not followed by whitespace")
		}
		p.c.advance()
		tok[n] = ch
		n++
	}
	m, ok := matchMethod(tok[:n])
	if !ok {
		return malformed("unknown method %q", tok[:n])
	}
	p.req = &Request{Method: m}
	return nil
}

// matchMethod compares tok against every known method, case insensitively
func matchMethod(tok []byte) (Method, bool) {
	for m, name := range methodNames {
		if len(name) != len(tok) {
			continue
		}
		i := 0
		for i < len(tok) && toUpper(tok[i]) == name[i] {
			i++
		}
		if i == len(tok) {
			return Method(m), true
		}
	}
	return 0, false
}

func (p *parser) uri() error {
	path, err := p.token(p.lim.URI, "path", true, func(b byte) bool {
		return isSpace(b) || b == '?' || b == '#'
	})
	if err != nil {
		return err
	}
	if len(path) == 0 || path[0] != '/' {
		return malformed("path %q is not absolute", path)
	}
	if path[len(path)-1] == '/' {
		path += indexFile
	}
	p.req.URI = path
	return nil
}

func (p *parser) query() error {
	for {
		ch, err := p.peek()
		if err != nil {
			return err
		}
		if isSpace(ch) || ch == '#' {
			return nil
		}
		name, err := p.token(p.lim.QueryName, "query name", true, func(b byte) bool {
			return b == '=' || b == '&' || b == '#' || isSpace(b)
		})
		if err != nil {
			return err
		}
		if ch, err = p.peek(); err != nil {
			return err
		}
		if ch != '=' {
			return malformed("query variable %q has no value", name)
		}
		p.c.advance()
		value, err := p.token(p.lim.QueryValue, "query value", true, func(b byte) bool {
			return b == '&' || b == '#' || isSpace(b)
		})
		if err != nil {
			return err
		}
		p.req.QueryVariables = append(p.req.QueryVariables, Variable{Name: name, Value: value})
		if ch, err = p.peek(); err != nil {
			return err
		}
		if ch == '&' {
			p.c.advance()
		}
	}
}

func (p *parser) fragment() error {
	frag, err := p.token(p.lim.Fragment, "fragment", true, isSpace)
	if err != nil {
		return err
	}
	p.req.Fragment = frag
	return nil
}

func (p *parser) version() error {
	for i := 0; i < len(versionPrefix); i++ {
		ch, err := p.next()
		if err != nil {
			return err
		}
		if ch != versionPrefix[i] {
			return malformed("expected %s version token", versionPrefix)
		}
	}

	var v Version
	dot := false
	digits := 0
	for n := 0; ; n++ {
		ch, err := p.peek()
		if err != nil {
			return err
		}
		if isSpace(ch) {
			break
		}
		if n == maxVersionLen {
			return malformed("version token too long")
		}
		p.c.advance()
		switch {
		case ch == '.':
			if dot || digits == 0 {
				return malformed("misplaced '.' in version")
			}
			dot = true
			digits = 0
		case isDigit(ch):
			digits++
			if dot {
				v.Minor = v.Minor*10 + int(ch-'0')
			} else {
				v.Major = v.Major*10 + int(ch-'0')
			}
		default:
			return malformed("invalid character %q in version", ch)
		}
	}
	if !dot || digits == 0 {
		return malformed("incomplete version")
	}
	p.req.Version = v
	return nil
}

// headers collects header lines until a bare line break. The section is
// always read to its end so the stream stays aligned.
func (p *parser) headers() error {
	for {
		ch, err := p.peek()
		if err != nil {
			return err
		}
		if ch == '\r' {
			p.c.advance()
			return p.expect('\n')
		}
		if ch == '\n' {
			p.c.advance()
			return nil
		}
		if len(p.req.Headers) == p.lim.Headers {
			return oversized("more than %d headers", p.lim.Headers)
		}
		name, err := p.token(p.lim.HeaderName, "header name", false, func(b byte) bool {
			return b == ':' || isSpace(b)
		})
		if err != nil {
			return err
		}
		if name == "" {
			return malformed("empty header name")
		}
		if err := p.expect(':'); err != nil {
			return err
		}
		for {
			if ch, err = p.peek(); err != nil {
				return err
			}
			if ch != ' ' && ch != '\t' {
				break
			}
			p.c.advance()
		}
		value, err := p.token(p.lim.HeaderValue, "header value", false, func(b byte) bool {
			return b == '\r' || b == '\n'
		})
		if err != nil {
			return err
		}
		p.req.Headers = append(p.req.Headers, Variable{Name: name, Value: trimRight(value)})

		if ch, err = p.next(); err != nil {
			return err
		}
		if ch == '\r' {
			if err := p.expect('\n'); err != nil {
				return err
			}
		}
	}
}

// token copies bytes until stop matches the next byte, which is left unread.
// With decode set, percent escapes are decoded before being counted
// against limit.
func (p *parser) token(limit int, what string, decode bool, stop func(byte) bool) (string, error) {
	var buf []byte
	for {
		ch, err := p.peek()
		if err != nil {
			return "", err
		}
		if stop(ch) {
			return string(buf), nil
		}
		p.c.advance()
		if decode && ch == '%' {
			if ch, err = p.escape(); err != nil {
				return "", err
			}
		}
		if len(buf) >= limit {
			return "", oversized("%s exceeds %d bytes", what, limit)
		}
		buf = append(buf, ch)
	}
}

// escape decodes the two hex digits following a '%'. Both digits are
// consumed and validated before they are combined.
func (p *parser) escape() (byte, error) {
	hi, err := p.next()
	if err != nil {
		return 0, err
	}
	lo, err := p.next()
	if err != nil {
		return 0, err
	}
	h, ok := unhex(hi)
	if !ok {
		return 0, malformed("invalid hex digit %q in escape", hi)
	}
	l, ok := unhex(lo)
	if !ok {
		return 0, malformed("invalid hex digit %q in escape", lo)
	}
	return h<<4 | l, nil
}

func unhex(c byte) (byte, bool) {
	switch {
	case '0' <= c && c <= '9':
		return c - '0', true
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10, true
	case 'A' <= c && c <= 'F':
		return c - 'A' + 10, true
	}
	return 0, false
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}

func toUpper(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func trimRight(s string) string {
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
