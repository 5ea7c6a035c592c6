// Package config loads client settings from ~/.softlayer and the SL_*
// environment variables.
//
// The file is INI with a single [softlayer] section:
//
//	[softlayer]
//	username = SL12345
//	api_key = 0123abcd
//	endpoint_url = https://api.softlayer.com/xmlrpc/v3
//	timeout = 60
//	transport = xmlrpc
//
// Environment variables override the file.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
	"gopkg.in/ini.v1"
)

var logger = loggo.GetLogger("softlayer.config")

const (
	Section = "softlayer"

	DefaultXMLRPCEndpoint = "https://api.softlayer.com/xmlrpc/v3"
	DefaultSOAPEndpoint   = "https://api.softlayer.com/soap/v3"
	DefaultTimeout        = 60 * time.Second
)

// Config is the resolved client configuration. Zero fields mean "use the
// client default".
type Config struct {
	Username    string
	APIKey      string
	EndpointURL string
	Timeout     time.Duration
	UserAgent   string
	Transport   string // "xmlrpc" or "soap"
}

// env maps each environment variable onto the file key it overrides.
var env = map[string]string{
	"SL_USERNAME":     "username",
	"SL_API_KEY":      "api_key",
	"SL_ENDPOINT_URL": "endpoint_url",
	"SL_TIMEOUT":      "timeout",
	"SL_USER_AGENT":   "user_agent",
	"SL_TRANSPORT":    "transport",
}

// DefaultPath returns ~/.softlayer.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Annotate(err, "locating home directory")
	}
	return filepath.Join(home, ".softlayer"), nil
}

// Load reads the file at path, or DefaultPath when path is empty, then
// applies environment overrides. A missing default file is not an error; a
// missing explicit file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		var err error
		if path, err = DefaultPath(); err != nil {
			logger.Debugf("no default config: %v", err)
			path = ""
		}
	}

	values := map[string]string{}
	if path != "" {
		if err := readFile(path, values); err != nil {
			if !explicit && errors.Is(err, os.ErrNotExist) {
				logger.Tracef("config file %s not found", path)
			} else {
				return nil, errors.Annotatef(err, "reading config %s", path)
			}
		}
	}

	for name, key := range env {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			values[key] = v
		}
	}
	return fromValues(values)
}

// Parse reads configuration from INI data without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	f, err := ini.Load(data)
	if err != nil {
		return nil, errors.Annotate(err, "parsing config")
	}
	values := map[string]string{}
	collect(f, values)
	return fromValues(values)
}

func readFile(path string, values map[string]string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	f, err := ini.Load(path)
	if err != nil {
		return err
	}
	collect(f, values)
	return nil
}

func collect(f *ini.File, values map[string]string) {
	sec, err := f.GetSection(Section)
	if err != nil {
		return
	}
	for _, key := range sec.Keys() {
		values[strings.ToLower(key.Name())] = strings.TrimSpace(key.String())
	}
}

func fromValues(values map[string]string) (*Config, error) {
	cfg := &Config{
		Username:    values["username"],
		APIKey:      values["api_key"],
		EndpointURL: values["endpoint_url"],
		UserAgent:   values["user_agent"],
		Transport:   strings.ToLower(values["transport"]),
	}
	if raw := values["timeout"]; raw != "" {
		d, err := parseTimeout(raw)
		if err != nil {
			return nil, errors.NotValidf("timeout %q", raw)
		}
		cfg.Timeout = d
	}
	switch cfg.Transport {
	case "", "xmlrpc", "soap":
	default:
		return nil, errors.NotValidf("transport %q", cfg.Transport)
	}
	return cfg, nil
}

// parseTimeout accepts whole seconds ("60") or a Go duration ("1m30s").
func parseTimeout(raw string) (time.Duration, error) {
	if secs, err := strconv.Atoi(raw); err == nil {
		if secs < 0 {
			return 0, errors.New("negative timeout")
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, errors.New("bad timeout")
	}
	return d, nil
}

// Endpoint returns EndpointURL or the public endpoint matching Transport.
func (c *Config) Endpoint() string {
	if c.EndpointURL != "" {
		return c.EndpointURL
	}
	if c.Transport == "soap" {
		return DefaultSOAPEndpoint
	}
	return DefaultXMLRPCEndpoint
}
