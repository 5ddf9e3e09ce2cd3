package heos

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

func TestParseResponse_Success(t *testing.T) {
	line := `{"heos": {"command": "browse/play_stream", "result": "success", "message": "pid=12345"}}` + "\r\n"

	resp, err := parseResponse(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Heos.Result != "success" {
		t.Errorf("expected result success, got %q", resp.Heos.Result)
	}
	if resp.Heos.Command != "browse/play_stream" {
		t.Errorf("unexpected command %q", resp.Heos.Command)
	}
}

func TestParseResponse_Payload(t *testing.T) {
	line := `{"heos": {"command": "player/get_players", "result": "success"}, "payload": [{"name": "Kitchen", "pid": 12345, "model": "HEOS 1"}]}`

	resp, err := parseResponse(line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Payload) == 0 {
		t.Fatal("expected payload")
	}
}

func TestParseResponse_Malformed(t *testing.T) {
	if _, err := parseResponse("not json"); err == nil {
		t.Error("expected error for malformed response")
	}
	if _, err := parseResponse("   "); err == nil {
		t.Error("expected error for empty response")
	}
}

// fakeHEOSServer answers one CLI command per connection with canned
// JSON lines.
func fakeHEOSServer(t *testing.T, responses map[string]string) (*Controller, func()) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				buf := make([]byte, 512)
				n, err := conn.Read(buf)
				if err != nil {
					return
				}
				cmd := strings.TrimSpace(string(buf[:n]))
				cmd = strings.TrimPrefix(cmd, "heos://")
				if resp, ok := responses[cmd]; ok {
					conn.Write([]byte(resp + "\r\n"))
				} else {
					conn.Write([]byte(`{"heos": {"result": "fail", "message": "unknown command"}}` + "\r\n"))
				}
			}(conn)
		}
	}()

	ctrl := NewController()
	addr := ln.Addr().String()
	ctrl.dial = func(ctx context.Context, network, _ string) (net.Conn, error) {
		var d net.Dialer
		return d.DialContext(ctx, network, addr)
	}

	return ctrl, func() { ln.Close() }
}

func TestController_Players(t *testing.T) {
	ctrl, stop := fakeHEOSServer(t, map[string]string{
		"player/get_players": `{"heos": {"command": "player/get_players", "result": "success"}, "payload": [{"name": "Living Room", "pid": 98765, "model": "HEOS 3"}]}`,
	})
	defer stop()

	players, err := ctrl.Players(context.Background(), "ignored")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(players) != 1 {
		t.Fatalf("expected 1 player, got %d", len(players))
	}
	if players[0].Name != "Living Room" || players[0].PID != 98765 {
		t.Errorf("unexpected player: %+v", players[0])
	}
}

func TestController_PlayURL(t *testing.T) {
	ctrl, stop := fakeHEOSServer(t, map[string]string{
		"browse/play_stream?pid=42&url=http://host/api/songs/7/audio": `{"heos": {"command": "browse/play_stream", "result": "success"}}`,
	})
	defer stop()

	err := ctrl.PlayURL(context.Background(), "ignored", "42", "http://host/api/songs/7/audio")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestController_CommandFailure(t *testing.T) {
	ctrl, stop := fakeHEOSServer(t, map[string]string{})
	defer stop()

	err := ctrl.Stop(context.Background(), "ignored", "42")
	if err == nil {
		t.Fatal("expected error for failed command")
	}
	if !errors.Is(err, ErrCommandFailed) {
		t.Errorf("expected ErrCommandFailed, got %v", err)
	}
}

func TestController_ConnectTimeout(t *testing.T) {
	ctrl := NewController()
	ctrl.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := ctrl.send(ctx, "10.0.0.1", "player/get_players"); err == nil {
		t.Error("expected error when connection times out")
	}
}
