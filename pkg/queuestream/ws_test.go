package queuestream

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

// wsTestServer upgrades each connection and hands it to fn, returning
// the ws:// URL to dial.
func wsTestServer(t *testing.T, fn func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		fn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestWSRoundTrip(t *testing.T) {
	url := wsTestServer(t, func(conn *websocket.Conn) {
		w := NewWSWriter(conn)
		for _, chunk := range []string{"Hello ", "World"} {
			if _, err := w.Write([]byte(chunk)); err != nil {
				t.Errorf("write: %v", err)
				return
			}
		}
		w.Close()
	})

	r := NewWSReader(dialWS(t, url))
	t.Cleanup(func() { r.Close() })

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if string(data) != "Hello World" {
		t.Fatalf("got %q, want %q", data, "Hello World")
	}
}

func TestWSPartialReads(t *testing.T) {
	url := wsTestServer(t, func(conn *websocket.Conn) {
		w := NewWSWriter(conn)
		w.Write([]byte("abcdefgh"))
		w.Close()
	})

	r := NewWSReader(dialWS(t, url))
	t.Cleanup(func() { r.Close() })

	buf := make([]byte, 3)
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "abc" {
		t.Fatalf("got %q, want %q", buf[:n], "abc")
	}
	if got := r.Available(); got != 5 {
		t.Fatalf("available: got %d, want 5", got)
	}
	rest, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if string(rest) != "defgh" {
		t.Fatalf("got %q, want %q", rest, "defgh")
	}
}

func TestWSTextFramesIgnored(t *testing.T) {
	url := wsTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("noise"))
		w := NewWSWriter(conn)
		w.Write([]byte("payload"))
		w.Close()
	})

	r := NewWSReader(dialWS(t, url))
	t.Cleanup(func() { r.Close() })

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read all: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("got %q, want %q", data, "payload")
	}
}
