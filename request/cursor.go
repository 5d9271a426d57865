package request

import (
	"io"

	"github.com/pkg/errors"
)

// BufferSize is the size of the cursor's read window
const BufferSize = 512

// Cursor is a pull based, single buffered byte reader over a transport.
// When the window is exhausted exactly one underlying Read is issued.
type Cursor struct {
	r   io.Reader
	buf [BufferSize]byte
	pos int
	end int
	err error
}

// NewCursor returns a cursor reading from r
func NewCursor(r io.Reader) *Cursor {
	return &Cursor{r: r}
}

// Peek returns the next byte without consuming it
func (c *Cursor) Peek() (byte, error) {
	if c.pos >= c.end {
		if err := c.fill(); err != nil {
			return 0, err
		}
	}
	return c.buf[c.pos], nil
}

// Next consumes and returns the next byte
func (c *Cursor) Next() (byte, error) {
	if c.pos >= c.end {
		if err := c.fill(); err != nil {
			return 0, err
		}
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

// advance consumes a byte already returned by Peek
func (c *Cursor) advance() {
	c.pos++
}

// Buffered returns the number of bytes left in the window
func (c *Cursor) Buffered() int {
	return c.end - c.pos
}

// fill refills the window. A read returning no bytes is end of stream.
// An error that arrives together with data is held back until the data
// has been consumed.
func (c *Cursor) fill() error {
	if c.err != nil {
		return c.err
	}
	n, err := c.r.Read(c.buf[:])
	if n < 0 || n > len(c.buf) {
		c.err = errors.Errorf("invalid read count %d", n)
		return c.err
	}
	c.pos, c.end = 0, n
	if err != nil && err != io.EOF {
		err = errors.Wrap(err, "read failed")
	}
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		c.err = err
		return err
	}
	c.err = err
	return nil
}
