package server

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ConfigFileName is the name looked for next to the executable
const ConfigFileName = "nvhttpd.conf"

// SystemConfigFile is checked before the file next to the executable
var SystemConfigFile = "/etc/nvhttpd/" + ConfigFileName

// FindConfig returns the configuration file to use. An explicit path must
// exist. Without one, the system file is tried, then the file next to the
// executable. An empty result means built-in defaults.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrapf(ErrConfig, "config file: %s", err)
		}
		return explicit, nil
	}

	candidates := []string{SystemConfigFile}
	if exe, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), ConfigFileName))
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		log.Debugf("no config file at %s", path)
	}
	return "", nil
}

// LoadConfig reads the TOML file at path over the defaults.
// An empty path returns the defaults. Unknown keys are an error.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	if path == "" {
		return c, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrConfig, "config file: %s", err)
	}
	defer f.Close()

	d := toml.NewDecoder(f)
	d.DisallowUnknownFields()
	if err := d.Decode(c); err != nil {
		var de *toml.DecodeError
		if errors.As(err, &de) {
			row, col := de.Position()
			return nil, errors.Wrapf(ErrConfig, "%s:%d:%d: %s", path, row, col, de.Error())
		}
		return nil, errors.Wrapf(ErrConfig, "%s: %s", path, err)
	}
	if c.ResponseHeaders == nil {
		c.ResponseHeaders = map[string]string{}
	}
	return c, nil
}
