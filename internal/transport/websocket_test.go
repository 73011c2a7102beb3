package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"pkt.systems/varsync/schema"
)

func startEchoServer(t *testing.T, onConn func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		onConn(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func nextEvent(t *testing.T, ws *WebSocket) Event {
	t.Helper()
	select {
	case ev := <-ws.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for transport event")
	}
	return Event{}
}

func TestWebSocketConnectSendReceive(t *testing.T) {
	url := startEchoServer(t, func(conn *websocket.Conn) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	})
	ws := NewWebSocket(WebSocketConfig{URL: url}, nil)
	defer ws.Close()

	if err := ws.Send("early"); !errors.Is(err, schema.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected before connect, got %v", err)
	}
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if ev := nextEvent(t, ws); ev.Kind != EventConnected {
		t.Fatalf("expected connected, got %v (%v)", ev.Kind, ev.Err)
	}
	if err := ws.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	if err := ws.Send(`{"type":["varchive","seek"],"message":"12"}`); err != nil {
		t.Fatalf("send: %v", err)
	}
	ev := nextEvent(t, ws)
	if ev.Kind != EventText || !strings.Contains(ev.Text, "seek") {
		t.Fatalf("unexpected event %+v", ev)
	}
}

func TestWebSocketRemoteCloseReportsDisconnected(t *testing.T) {
	url := startEchoServer(t, func(conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		time.Sleep(50 * time.Millisecond)
	})
	ws := NewWebSocket(WebSocketConfig{URL: url}, nil)
	defer ws.Close()
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if ev := nextEvent(t, ws); ev.Kind != EventConnected {
		t.Fatalf("expected connected, got %v", ev.Kind)
	}
	ev := nextEvent(t, ws)
	if ev.Kind != EventDisconnected || ev.Code != websocket.CloseGoingAway || ev.Reason != "bye" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if err := ws.Send("x"); !errors.Is(err, schema.ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected after close, got %v", err)
	}
}

func TestWebSocketDialFailureReportsError(t *testing.T) {
	ws := NewWebSocket(WebSocketConfig{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: 200 * time.Millisecond}, nil)
	defer ws.Close()
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if ev := nextEvent(t, ws); ev.Kind != EventError || ev.Err == nil {
		t.Fatalf("expected error event, got %+v", ev)
	}
}

func TestWebSocketDisconnectSuppressesEvents(t *testing.T) {
	url := startEchoServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	ws := NewWebSocket(WebSocketConfig{URL: url}, nil)
	defer ws.Close()
	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if ev := nextEvent(t, ws); ev.Kind != EventConnected {
		t.Fatalf("expected connected, got %v", ev.Kind)
	}
	ws.Disconnect()
	select {
	case ev := <-ws.Events():
		t.Fatalf("unexpected event after disconnect: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
