// Package heos controls HEOS speakers over the local network. HEOS
// devices answer SSDP discovery on port 1900 and accept CLI commands
// over a plain TCP connection on port 1255 ("heos://..." lines with
// JSON responses).
package heos

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/kwhite/songvote/internal/cast"
)

const (
	heosPort = 1255
	ssdpAddr = "239.255.255.250:1900"

	commandTimeout = 5 * time.Second
)

var ErrCommandFailed = errors.New("heos command failed")

const ssdpSearch = "M-SEARCH * HTTP/1.1\r\n" +
	"HOST: 239.255.255.250:1900\r\n" +
	"MAN: \"ssdp:discover\"\r\n" +
	"MX: 3\r\n" +
	"ST: urn:schemas-denon-com:device:ACT-Denon:1\r\n" +
	"\r\n"

type heosResponse struct {
	Heos struct {
		Command string `json:"command"`
		Result  string `json:"result"`
		Message string `json:"message"`
	} `json:"heos"`
	Payload json.RawMessage `json:"payload"`
}

type Player struct {
	Name  string `json:"name"`
	PID   int64  `json:"pid"`
	Model string `json:"model"`
}

// Controller speaks the HEOS CLI protocol.
type Controller struct {
	dial func(ctx context.Context, network, addr string) (net.Conn, error)
}

func NewController() *Controller {
	var d net.Dialer
	return &Controller{dial: d.DialContext}
}

// Discover sends an SSDP M-SEARCH for HEOS devices and resolves each
// responding host into its first player.
func (c *Controller) Discover(ctx context.Context, timeout time.Duration) ([]cast.Device, error) {
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, fmt.Errorf("ssdp listen failed: %w", err)
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp4", ssdpAddr)
	if err != nil {
		return nil, err
	}

	if _, err := conn.WriteTo([]byte(ssdpSearch), dst); err != nil {
		return nil, fmt.Errorf("ssdp search failed: %w", err)
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	var devices []cast.Device
	seen := make(map[string]bool)
	buf := make([]byte, 1024)

	for {
		_, addr, err := conn.ReadFrom(buf)
		if err != nil {
			// Timeout ends collection; it is not a failure.
			break
		}

		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			host = addr.String()
		}
		if seen[host] {
			continue
		}
		seen[host] = true

		device, err := c.deviceInfo(ctx, host)
		if err != nil {
			continue
		}
		devices = append(devices, device)
	}

	return devices, nil
}

func (c *Controller) deviceInfo(ctx context.Context, host string) (cast.Device, error) {
	players, err := c.Players(ctx, host)
	if err != nil {
		return cast.Device{}, err
	}
	if len(players) == 0 {
		return cast.Device{}, cast.ErrNoDevices
	}

	p := players[0]
	return cast.Device{
		Name:     p.Name,
		Host:     host,
		PlayerID: fmt.Sprintf("%d", p.PID),
		Model:    p.Model,
	}, nil
}

// Players lists the players behind one HEOS host (groups expose more
// than one).
func (c *Controller) Players(ctx context.Context, host string) ([]Player, error) {
	resp, err := c.send(ctx, host, "player/get_players")
	if err != nil {
		return nil, err
	}

	var players []Player
	if len(resp.Payload) > 0 {
		if err := json.Unmarshal(resp.Payload, &players); err != nil {
			return nil, err
		}
	}
	return players, nil
}

// PlayURL tells a player to stream the given URL.
func (c *Controller) PlayURL(ctx context.Context, host, pid, url string) error {
	cmd := fmt.Sprintf("browse/play_stream?pid=%s&url=%s", pid, url)
	return c.expectSuccess(ctx, host, cmd)
}

// SetVolume sets the player volume, 0-100.
func (c *Controller) SetVolume(ctx context.Context, host, pid string, level int) error {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	cmd := fmt.Sprintf("player/set_volume?pid=%s&level=%d", pid, level)
	return c.expectSuccess(ctx, host, cmd)
}

// Stop halts playback on a player.
func (c *Controller) Stop(ctx context.Context, host, pid string) error {
	cmd := fmt.Sprintf("player/set_play_state?pid=%s&state=stop", pid)
	return c.expectSuccess(ctx, host, cmd)
}

func (c *Controller) expectSuccess(ctx context.Context, host, command string) error {
	resp, err := c.send(ctx, host, command)
	if err != nil {
		return err
	}
	if resp.Heos.Result != "success" {
		return fmt.Errorf("%w: %s (%s)", ErrCommandFailed, command, resp.Heos.Message)
	}
	return nil
}

func (c *Controller) send(ctx context.Context, host, command string) (*heosResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", heosPort))
	conn, err := c.dial(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("heos connect failed (%s): %w", host, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := fmt.Fprintf(conn, "heos://%s\r\n", command); err != nil {
		return nil, err
	}

	// Responses are JSON lines terminated by CRLF.
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return nil, err
	}

	return parseResponse(line)
}

func parseResponse(line string) (*heosResponse, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, fmt.Errorf("empty heos response")
	}

	var resp heosResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("malformed heos response: %w", err)
	}
	return &resp, nil
}
