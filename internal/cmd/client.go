package cmd

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/ahriroot/watchmen/internal/config"
	"github.com/ahriroot/watchmen/internal/dispatch"
)

// send delivers req to the daemon over the config's default transport
// and returns the parsed response, per the CLI's 1:1 opcode mapping.
func send(req dispatch.Request) (*dispatch.Response, error) {
	cfg, err := config.LoadDaemon(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", configPath, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	var raw []byte
	switch cfg.Watchmen.Engine {
	case "http":
		raw, err = sendHTTP(cfg, body)
	case "socket":
		raw, err = sendStream("tcp", fmt.Sprintf("%s:%d", cfg.Socket.Host, cfg.Socket.Port), body)
	default:
		raw, err = sendStream("unix", cfg.Sock.Path, body)
	}
	if err != nil {
		return nil, err
	}

	var resps []dispatch.Response
	if err := json.Unmarshal(raw, &resps); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(resps) == 0 {
		return nil, fmt.Errorf("empty response from daemon")
	}
	return &resps[0], nil
}

func sendStream(network, addr string, body []byte) ([]byte, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s %s: %w", network, addr, err)
	}
	defer conn.Close()
	if _, err := conn.Write(append(body, '\n')); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	return line, nil
}

func sendHTTP(cfg *config.Daemon, body []byte) ([]byte, error) {
	url := fmt.Sprintf("http://%s:%d/api", cfg.HTTP.Host, cfg.HTTP.Port)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", url, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
