// control/settings.go
// Author: momentics <momentics@gmail.com>
//
// Settings file loading and environment overrides.

package control

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/momentics/pingpong-ws/api"
	"github.com/momentics/pingpong-ws/protocol"
)

// Defaults.
const (
	DefaultPort      = 3300
	DefaultClientURL = "ws://localhost:3300"
	HerokuURL        = "wss://nodejs-ws-ping-pong.herokuapp.com"
	RemoteHeroku     = "heroku"
)

// Environment variables read by ApplyEnv.
const (
	EnvPort   = "PORT"
	EnvURL    = "PINGPONG_URL"
	EnvRemote = "PINGPONG_REMOTE"
	// EnvRemoteLegacy is the variable name the hosted test client used.
	EnvRemoteLegacy = "NJWSPP_REMOTE"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
)

// Settings is the full runtime configuration of the pingpong binary.
type Settings struct {
	Server ServerSettings `yaml:"server"`
	Client ClientSettings `yaml:"client"`
	Log    LogSettings    `yaml:"log"`
}

// ServerSettings configures the server endpoint.
type ServerSettings struct {
	Port             int           `yaml:"port"`
	Subprotocol      string        `yaml:"subprotocol"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// ClientSettings configures the reference client.
type ClientSettings struct {
	URL              string        `yaml:"url"`
	Subprotocol      string        `yaml:"subprotocol"`
	Count            int           `yaml:"count"`
	Interval         time.Duration `yaml:"interval"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// LogSettings configures internal/logging.
type LogSettings struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultSettings returns the settings used when nothing is configured.
func DefaultSettings() Settings {
	return Settings{
		Server: ServerSettings{
			Port:             DefaultPort,
			Subprotocol:      protocol.DefaultSubprotocol,
			HandshakeTimeout: 5 * time.Second,
		},
		Client: ClientSettings{
			URL:              DefaultClientURL,
			Subprotocol:      protocol.DefaultSubprotocol,
			Count:            5,
			Interval:         time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Log: LogSettings{Level: "info", Format: "text"},
	}
}

// ListenAddr returns the server listen address for Port.
func (s ServerSettings) ListenAddr() string {
	return ":" + strconv.Itoa(s.Port)
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return api.NewError(api.ErrCodeInvalidArgument, "server port out of range").
			WithContext("port", s.Server.Port)
	}
	if s.Client.Count < 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "client count must not be negative").
			WithContext("count", s.Client.Count)
	}
	if s.Client.Interval < 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "client interval must not be negative").
			WithContext("interval", s.Client.Interval.String())
	}
	return nil
}

// LoadSettings reads path over the defaults, applies environment overrides
// and validates the result. An empty path skips the file.
func LoadSettings(path string) (Settings, error) {
	s := DefaultSettings()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
		if err := decodeSettings(data, &s); err != nil {
			return Settings{}, fmt.Errorf("parse settings %s: %w", path, err)
		}
	}
	if err := s.ApplyEnv(os.LookupEnv); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

func decodeSettings(data []byte, s *Settings) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides fields from the environment. PINGPONG_REMOTE=heroku
// (or NJWSPP_REMOTE=heroku) selects the hosted server and wins over
// PINGPONG_URL.
func (s *Settings) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return api.Wrap(api.ErrCodeInvalidArgument, fmt.Errorf("%s: %w", EnvPort, err))
		}
		s.Server.Port = port
	}
	if v, ok := lookup(EnvURL); ok && v != "" {
		s.Client.URL = v
	}
	for _, k := range []string{EnvRemote, EnvRemoteLegacy} {
		if v, ok := lookup(k); ok && v == RemoteHeroku {
			s.Client.URL = HerokuURL
		}
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		s.Log.Level = v
	}
	if v, ok := lookup(EnvLogFormat); ok && v != "" {
		s.Log.Format = v
	}
	return nil
}
