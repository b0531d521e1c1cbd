package queuestream

import (
	"errors"
	"io"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// WSWriter streams chunks over a WebSocket connection as binary
// messages. The caller owns the connection's dial or upgrade; the
// writer owns it from there.
type WSWriter struct {
	conn   *websocket.Conn
	closed bool
}

var _ io.WriteCloser = (*WSWriter)(nil)

// NewWSWriter wraps an established connection.
func NewWSWriter(conn *websocket.Conn) *WSWriter {
	return &WSWriter{conn: conn}
}

func (w *WSWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close sends a normal-closure frame, which the reading peer surfaces
// as io.EOF, then drops the connection.
func (w *WSWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := w.conn.WriteMessage(websocket.CloseMessage, msg)
	if cerr := w.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

// WSReader streams chunks from a WebSocket connection. Reads block
// until a message arrives, bounded by an optional timeout; a
// normal-closure frame from the peer ends the stream with io.EOF.
type WSReader struct {
	conn     *websocket.Conn
	timeout  time.Duration
	leftover []byte
	closed   bool
}

var _ io.ReadCloser = (*WSReader)(nil)

// NewWSReader wraps an established connection.
func NewWSReader(conn *websocket.Conn) *WSReader {
	return &WSReader{conn: conn}
}

// SetReadTimeout bounds each wait for a message. Zero restores blocking
// reads. An expired wait returns ErrReadTimeout; the connection is not
// usable afterwards, websocket framing does not survive an abandoned
// read.
func (r *WSReader) SetReadTimeout(d time.Duration) {
	r.timeout = d
}

func (r *WSReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	for len(r.leftover) == 0 {
		var deadline time.Time
		if r.timeout > 0 {
			deadline = time.Now().Add(r.timeout)
		}
		if err := r.conn.SetReadDeadline(deadline); err != nil {
			return 0, err
		}
		mt, data, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				return 0, ErrReadTimeout
			}
			return 0, err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		r.leftover = data
	}
	n := copy(p, r.leftover)
	r.leftover = r.leftover[n:]
	return n, nil
}

// Available reports the unread bytes of the current message.
func (r *WSReader) Available() int {
	return len(r.leftover)
}

// Close drops the connection without a closure handshake.
func (r *WSReader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.conn.Close()
}
