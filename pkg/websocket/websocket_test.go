package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ride-sim/pkg/auth"
	"ride-sim/pkg/logger"

	"github.com/gorilla/websocket"
)

type serverFixture struct {
	url     string
	jwt     *auth.JWTManager
	manager *Manager
	ready   chan *Connection
}

func newServer(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		jwt:     auth.NewJWTManager("secret", time.Minute),
		manager: NewManager(logger.Nop()),
		ready:   make(chan *Connection, 1),
	}

	onConnect := func(conn *Connection) {
		f.manager.AddConnection(conn.UserID(), conn)
		f.ready <- conn
		conn.ReadPump(func(int, []byte) {}, func() { f.manager.RemoveConnection(conn.UserID(), conn) })
	}

	mux := http.NewServeMux()
	mux.Handle("GET /ws/passengers/{passenger_id}", NewHandler(logger.Nop(), f.jwt, onConnect, auth.RolePassenger, "passenger_id"))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f.url = "ws" + strings.TrimPrefix(srv.URL, "http")
	return f
}

func (f *serverFixture) dial(t *testing.T, passengerID, token string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url+"/ws/passengers/"+passengerID, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := conn.WriteJSON(map[string]string{"type": "auth", "message": "Bearer " + token}); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestHandler_AuthenticatesAndDelivers(t *testing.T) {
	f := newServer(t)
	token, _ := f.jwt.GenerateToken("p-1", auth.RolePassenger)
	client := f.dial(t, "p-1", token)

	var ack map[string]string
	if err := client.ReadJSON(&ack); err != nil {
		t.Fatal(err)
	}
	if ack["type"] != "auth_ok" || ack["user_id"] != "p-1" {
		t.Fatalf("unexpected ack: %v", ack)
	}

	select {
	case <-f.ready:
	case <-time.After(5 * time.Second):
		t.Fatal("connection never registered")
	}

	if err := f.manager.SendToUser("p-1", map[string]string{"type": "ride_status_update", "status": "ARRIVING"}); err != nil {
		t.Fatal(err)
	}
	var msg map[string]string
	if err := client.ReadJSON(&msg); err != nil {
		t.Fatal(err)
	}
	if msg["status"] != "ARRIVING" {
		t.Fatalf("unexpected message: %v", msg)
	}

	if err := f.manager.SendToUser("nobody", map[string]string{}); err != nil {
		t.Fatalf("sending to an absent user should be a no-op: %v", err)
	}
}

func TestHandler_Rejects(t *testing.T) {
	f := newServer(t)
	passenger, _ := f.jwt.GenerateToken("p-1", auth.RolePassenger)
	admin, _ := f.jwt.GenerateToken("p-1", auth.RoleAdmin)

	tests := []struct {
		name    string
		path    string
		token   string
		message string
	}{
		{"bad token", "p-1", "garbage", "Invalid or expired token"},
		{"wrong role", "p-1", admin, "Invalid or expired token"},
		{"other passenger", "p-2", passenger, "Token does not match the requested channel"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := f.dial(t, tt.path, tt.token)
			var resp wsErrorResponse
			if err := client.ReadJSON(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Type != "error" || resp.Message != tt.message {
				t.Fatalf("unexpected response: %+v", resp)
			}
		})
	}

	if f.manager.GetConnectionCount() != 0 {
		t.Fatal("rejected client was registered")
	}
}
