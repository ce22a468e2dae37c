// Package config loads the daemon's TOML configuration file and the
// TOML/INI task files that declare the tasks it supervises.
//
// A sentinel ErrNotFound distinguishes "absent" from "malformed", with
// a Load/validate split per document type and $HOME/~ expansion applied
// to every path-valued field at load time.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/ahriroot/watchmen/internal/task"
)

// ErrNotFound indicates the requested config or task file does not exist.
var ErrNotFound = errors.New("config file not found")

// Daemon is the parsed daemon configuration file (watchmen.toml).
type Daemon struct {
	Watchmen WatchmenSection `toml:"watchmen"`
	Sock     SockSection     `toml:"sock"`
	Socket   SocketSection   `toml:"socket"`
	HTTP     HTTPSection     `toml:"http"`
	Redis    RedisSection    `toml:"redis"`
}

// WatchmenSection is the [watchmen] table.
type WatchmenSection struct {
	Engines  []string `toml:"engines"`
	Engine   string   `toml:"engine"`
	LogDir   string   `toml:"log_dir"`
	LogLevel string   `toml:"log_level"`
	Stdout   string   `toml:"stdout"`
	Stderr   string   `toml:"stderr"`
	Pid      string   `toml:"pid"`
	Mat      string   `toml:"mat"`
	Cache    string   `toml:"cache"`
}

// SockSection is the [sock] table: the Unix-domain socket adapter.
type SockSection struct {
	Path string `toml:"path"`
}

// SocketSection is the [socket] table: the TCP adapter.
type SocketSection struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// HTTPSection is the [http] table: the HTTP adapter.
type HTTPSection struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RedisSection is the [redis] table: the optional pub/sub adapter.
type RedisSection struct {
	Addr         string `toml:"addr"`
	Password     string `toml:"password"`
	DB           int    `toml:"db"`
	RequestChan  string `toml:"request_chan"`
	ResponseChan string `toml:"response_chan"`
}

// DefaultDaemon returns the configuration written by `watchmen --generate`.
func DefaultDaemon() *Daemon {
	return &Daemon{
		Watchmen: WatchmenSection{
			Engines:  []string{"sock", "socket", "http"},
			Engine:   "sock",
			LogDir:   "$HOME/.watchmen/logs",
			LogLevel: "info",
			Stdout:   "$HOME/.watchmen/logs/watchmen.out",
			Stderr:   "$HOME/.watchmen/logs/watchmen.err",
			Pid:      "$HOME/.watchmen/watchmen.pid",
			Cache:    "$HOME/.watchmen/cache.json",
		},
		Sock:   SockSection{Path: "$HOME/.watchmen/watchmen.sock"},
		Socket: SocketSection{Host: "127.0.0.1", Port: 9527},
		HTTP:   HTTPSection{Host: "127.0.0.1", Port: 9528},
	}
}

// LoadDaemon reads and parses the daemon config at path, expanding
// $HOME/~ in every path-valued field.
func LoadDaemon(path string) (*Daemon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var d Daemon
	if _, err := toml.Decode(string(data), &d); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	d.expandPaths()
	if err := d.validate(); err != nil {
		return nil, err
	}
	return &d, nil
}

// SaveDaemon writes d to path as TOML, creating parent directories.
func SaveDaemon(path string, d *Daemon) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(d); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

func (d *Daemon) expandPaths() {
	d.Watchmen.LogDir = task.ExpandHome(d.Watchmen.LogDir)
	d.Watchmen.Stdout = task.ExpandHome(d.Watchmen.Stdout)
	d.Watchmen.Stderr = task.ExpandHome(d.Watchmen.Stderr)
	d.Watchmen.Pid = task.ExpandHome(d.Watchmen.Pid)
	d.Watchmen.Cache = task.ExpandHome(d.Watchmen.Cache)
	d.Sock.Path = task.ExpandHome(d.Sock.Path)
}

func (d *Daemon) validate() error {
	for _, e := range d.Watchmen.Engines {
		switch e {
		case "sock", "socket", "http", "redis":
		default:
			return fmt.Errorf("unknown transport %q in watchmen.engines", e)
		}
	}
	return nil
}

// EnabledTransport reports whether name is present in the engines list.
func (d *Daemon) EnabledTransport(name string) bool {
	for _, e := range d.Watchmen.Engines {
		if e == name {
			return true
		}
	}
	return false
}
