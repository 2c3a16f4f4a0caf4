package lsp

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Framer reads and writes Content-Length framed JSON-RPC messages on an
// ordered byte stream. Framing is strictly length-prefixed: a message
// boundary is never inferred from JSON structure, since bodies may legally
// contain embedded "\r\n\r\n" inside string values.
type Framer struct {
	conn   net.Conn
	reader *bufio.Reader
	wmu    sync.Mutex // serializes writes
}

// NewFramer wraps a connection for framed message exchange.
func NewFramer(conn net.Conn) *Framer {
	return &Framer{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 64*1024),
	}
}

// WriteMessage serializes msg to UTF-8 JSON and writes a
// "Content-Length: <N>\r\n\r\n" header followed immediately by the body,
// with no trailing delimiter.
func (f *Framer) WriteMessage(msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))

	f.wmu.Lock()
	defer f.wmu.Unlock()

	if _, err := io.WriteString(f.conn, header); err != nil {
		return fmt.Errorf("%w: write header: %s", ErrTransport, err)
	}
	if _, err := f.conn.Write(data); err != nil {
		return fmt.Errorf("%w: write body: %s", ErrTransport, err)
	}
	return nil
}

// ReadMessage reads one complete frame, waiting at most timeout for it to
// begin. The deadline covers only the wait for the frame's first byte; once
// a frame has started it is read to completion without a deadline, so an
// expired poll never strands half-consumed header or body bytes that the
// next call would misparse as a fresh header. It returns io.EOF if the
// stream closes before a full header is seen, ErrTimeout if no frame begins
// in time, and ErrMalformedFrame for a missing or non-numeric Content-Length
// or an undecodable body.
func (f *Framer) ReadMessage(timeout time.Duration) (*Message, error) {
	if timeout > 0 {
		if err := f.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("%w: set deadline: %s", ErrTransport, err)
		}
		if _, err := f.reader.Peek(1); err != nil {
			// Nothing consumed: peeked bytes stay buffered for the next call.
			return nil, readErr(err)
		}
	}
	if err := f.conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, fmt.Errorf("%w: clear deadline: %s", ErrTransport, err)
	}

	contentLength := -1
	for {
		line, err := f.reader.ReadString('\n')
		if err != nil {
			return nil, readErr(err)
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			break // end of headers
		}
		if name, value, ok := strings.Cut(line, ":"); ok &&
			strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil {
				return nil, fmt.Errorf("%w: content-length %q", ErrMalformedFrame, strings.TrimSpace(value))
			}
			contentLength = n
		}
		// Other headers (e.g. Content-Type) are ignored.
	}

	if contentLength < 0 {
		return nil, fmt.Errorf("%w: missing Content-Length header", ErrMalformedFrame)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(f.reader, body); err != nil {
		return nil, readErr(err)
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("%w: decode body: %s", ErrMalformedFrame, err)
	}
	return &msg, nil
}

// Close closes the underlying connection.
func (f *Framer) Close() error {
	return f.conn.Close()
}

// readErr maps raw stream errors onto the protocol error kinds: deadline
// expiry becomes ErrTimeout, a closed stream stays io.EOF so callers can
// treat it as normal termination.
func readErr(err error) error {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return io.EOF
	}
	return fmt.Errorf("%w: %s", ErrTransport, err)
}
