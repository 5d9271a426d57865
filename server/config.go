package server

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/yoppeh/nvhttpd/cache"
)

const (
	defaultPort    = 80
	defaultTLSPort = 443
	// anyAddr binds every interface
	anyAddr = "any"
)

var (
	// ErrConfig represents an invalid configuration, fatal at startup
	ErrConfig = errors.New("invalid configuration")
)

// Config represents a server config
type Config struct {
	Server          ServerConfig      `toml:"server"`
	TLS             TLSConfig         `toml:"ssl"`
	Logging         LoggingConfig     `toml:"logging"`
	ResponseHeaders map[string]string `toml:"response-headers"`
	Admin           AdminConfig       `toml:"admin"`
}

// ServerConfig holds the listener and content settings
type ServerConfig struct {
	IP string `toml:"ip"`
	// Port 0 picks 80, or 443 with TLS enabled
	Port     int    `toml:"port"`
	HTMLPath string `toml:"html_path"`
	Name     string `toml:"name"`

	MaxCacheElements int `toml:"max_cache_elements"`
	// ReadTimeout and WriteTimeout are in seconds, 0 disables the deadline
	ReadTimeout  int  `toml:"read_timeout"`
	WriteTimeout int  `toml:"write_timeout"`
	Watch        bool `toml:"watch"`
}

// TLSConfig represents a TLS configuration
type TLSConfig struct {
	Enabled  bool   `toml:"enabled"`
	CertFile string `toml:"certificate"`
	KeyFile  string `toml:"key"`
}

// LoggingConfig selects log verbosity and destination
type LoggingConfig struct {
	Level string `toml:"level"`
	// File is stdout, stderr or a path opened for appending
	File string `toml:"file"`
	PID  string `toml:"pid"`
}

// AdminConfig configures the administrative HTTP listener
type AdminConfig struct {
	// Listen is empty when the admin listener is disabled
	Listen string `toml:"listen"`
}

// DefaultConfig returns the configuration used when no file is found
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:               anyAddr,
			HTMLPath:         "html",
			Name:             "nvhttpd",
			MaxCacheElements: cache.DefaultMaxEntries,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "stdout",
		},
		ResponseHeaders: map[string]string{},
	}
}

// Port returns the port to listen on, filling in the default
func (c *Config) Port() int {
	if c.Server.Port != 0 {
		return c.Server.Port
	}
	if c.TLS.Enabled {
		return defaultTLSPort
	}
	return defaultPort
}

// Addr returns the listen address in host:port form
func (c *Config) Addr() string {
	ip := c.Server.IP
	if strings.EqualFold(ip, anyAddr) {
		ip = ""
	}
	return fmt.Sprintf("%s:%d", ip, c.Port())
}

// ReadTimeout returns the per connection read deadline, 0 for none
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeout) * time.Second
}

// WriteTimeout returns the per connection write deadline, 0 for none
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeout) * time.Second
}

// ExtraHeaders joins the configured response headers into a block of
// "Name: value\r\n" lines, ordered by name
func (c *Config) ExtraHeaders() string {
	names := make([]string, 0, len(c.ResponseHeaders))
	for name := range c.ResponseHeaders {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(c.ResponseHeaders[name])
		b.WriteString("\r\n")
	}
	return b.String()
}

// Validate reports the first problem found, wrapped with ErrConfig
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Wrapf(ErrConfig, "port %d out of range", c.Server.Port)
	}
	if c.Server.HTMLPath == "" {
		return errors.Wrap(ErrConfig, "html_path not provided")
	}
	fi, err := os.Stat(c.Server.HTMLPath)
	if err != nil {
		return errors.Wrapf(ErrConfig, "content root: %s", err)
	}
	if !fi.IsDir() {
		return errors.Wrapf(ErrConfig, "content root %s is not a directory", c.Server.HTMLPath)
	}
	if c.Server.MaxCacheElements < 1 {
		return errors.Wrapf(ErrConfig, "max_cache_elements must be positive, got %d", c.Server.MaxCacheElements)
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return errors.Wrap(ErrConfig, "timeouts cannot be negative")
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return errors.Wrap(ErrConfig, "ssl enabled without certificate")
		}
		if c.TLS.KeyFile == "" {
			return errors.Wrap(ErrConfig, "ssl enabled without key")
		}
	}
	for name, value := range c.ResponseHeaders {
		if name == "" || strings.ContainsAny(name, ": \t\r\n") {
			return errors.Wrapf(ErrConfig, "invalid response header name %q", name)
		}
		if strings.ContainsAny(value, "\r\n") {
			return errors.Wrapf(ErrConfig, "response header %s value contains a line break", name)
		}
	}
	return nil
}
