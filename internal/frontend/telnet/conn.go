// Package telnet provides the line-based Telnet listener that fronts the
// game core.
package telnet

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"sync"
	"time"
)

// Telnet IAC (Interpret As Command) constants per RFC 854.
const (
	IAC  byte = 255
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250
	SE   byte = 240

	// Options we negotiate.
	OptEcho            byte = 1
	OptSuppressGoAhead byte = 3
)

// Conn wraps a TCP connection with Telnet protocol handling: IAC sequences
// are stripped from input and all reads are line-oriented.
type Conn struct {
	raw    net.Conn
	reader *bufio.Reader

	mu sync.Mutex // guards writes to raw

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// NewConn wraps a raw TCP connection.
//
// Precondition: raw must be a valid, open network connection.
func NewConn(raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		raw:          raw,
		reader:       bufio.NewReaderSize(raw, 4096),
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// Negotiate sends the initial option negotiation: we suppress go-ahead so
// output can flow without turn markers.
func (c *Conn) Negotiate() error {
	return c.writeRaw([]byte{IAC, WILL, OptSuppressGoAhead})
}

// ReadLine reads one line of input with IAC sequences filtered out. The
// returned line carries no trailing \r\n.
//
// Postcondition: Returns the next line of text, or an error (including io.EOF).
func (c *Conn) ReadLine() (string, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	var line bytes.Buffer
	for {
		b, err := c.reader.ReadByte()
		if err != nil {
			return line.String(), err
		}

		switch {
		case b == IAC:
			if err := c.skipCommand(); err != nil {
				return line.String(), err
			}
		case b == '\n':
			return line.String(), nil
		case b == '\r':
			// Consume a following \n if the client sends CRLF.
			if next, err := c.reader.Peek(1); err == nil && len(next) > 0 && next[0] == '\n' {
				_, _ = c.reader.ReadByte()
			}
			return line.String(), nil
		case b < 32 && b != '\t':
			// Drop control characters.
		default:
			line.WriteByte(b)
		}
	}
}

// skipCommand consumes the remainder of an IAC sequence after the initial
// IAC byte has been read.
func (c *Conn) skipCommand() error {
	cmd, err := c.reader.ReadByte()
	if err != nil {
		return err
	}

	switch cmd {
	case WILL, WONT, DO, DONT:
		// One option byte follows.
		_, err := c.reader.ReadByte()
		return err
	case SB:
		// Sub-negotiation runs until IAC SE.
		for {
			b, err := c.reader.ReadByte()
			if err != nil {
				return err
			}
			if b != IAC {
				continue
			}
			next, err := c.reader.ReadByte()
			if err != nil {
				return err
			}
			if next == SE {
				return nil
			}
		}
	default:
		// Escaped 0xFF and bare commands carry no payload in text context.
		return nil
	}
}

// ReadPassword reads one line with client-side echo suppressed. Echo is
// restored even when the read fails.
func (c *Conn) ReadPassword() (string, error) {
	if err := c.writeRaw([]byte{IAC, WILL, OptEcho}); err != nil {
		return "", err
	}

	line, err := c.ReadLine()

	_ = c.writeRaw([]byte{IAC, WONT, OptEcho})
	// Advance the cursor past the invisible input.
	_ = c.writeRaw([]byte("\r\n"))

	return line, err
}

// WriteLine sends text followed by \r\n.
func (c *Conn) WriteLine(text string) error {
	return c.writeRaw([]byte(text + "\r\n"))
}

// WritePrompt sends text with no trailing newline.
func (c *Conn) WritePrompt(prompt string) error {
	return c.writeRaw([]byte(prompt))
}

func (c *Conn) writeRaw(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(data)
	return err
}

// Close closes the underlying TCP connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}

// RemoteAddr returns the client's network address.
func (c *Conn) RemoteAddr() net.Addr {
	return c.raw.RemoteAddr()
}

// String implements fmt.Stringer for log fields.
func (c *Conn) String() string {
	return fmt.Sprintf("telnet[%s]", c.raw.RemoteAddr())
}
