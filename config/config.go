// Package config loads the ini configuration file and validates the
// resulting settings. Flags override anything loaded here.
package config

import (
	"os"
	"path/filepath"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/seancfoley/ipaddress-go/ipaddr"
	"gopkg.in/ini.v1"
)

const defaultConfigFile = ".config/soundstream.ini"

type Config struct {
	// Chromecast device.
	DeviceAddr string
	DevicePort int

	// Music server.
	LMSHost string
	LMSPort int

	// Custom receiver app. Empty values keep the built-in defaults.
	AppID     string
	Namespace string

	// Bridge behaviour.
	Player       string
	PollInterval time.Duration
	PauseTimeout time.Duration

	Debug bool
}

func Default() Config {
	return Config{
		DevicePort:   8009,
		LMSPort:      9000,
		PollInterval: time.Second * 2,
		PauseTimeout: time.Millisecond * 5500,
	}
}

// Load reads the config file at path. An empty path selects the
// default location; a missing default file just yields defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		home, err := homedir.Dir()
		if err != nil {
			return cfg, nil
		}
		path = filepath.Join(home, defaultConfigFile)
		if _, err := os.Stat(path); err != nil {
			return cfg, nil
		}
	}

	f, err := ini.Load(path)
	if err != nil {
		return cfg, errors.Wrapf(err, "unable to load config file %q", path)
	}

	device := f.Section("device")
	cfg.DeviceAddr = device.Key("addr").MustString(cfg.DeviceAddr)
	cfg.DevicePort = device.Key("port").MustInt(cfg.DevicePort)

	lms := f.Section("lms")
	cfg.LMSHost = lms.Key("host").MustString(cfg.LMSHost)
	cfg.LMSPort = lms.Key("port").MustInt(cfg.LMSPort)

	cast := f.Section("cast")
	cfg.AppID = cast.Key("app_id").MustString(cfg.AppID)
	cfg.Namespace = cast.Key("namespace").MustString(cfg.Namespace)

	bridge := f.Section("bridge")
	cfg.Player = bridge.Key("player").MustString(cfg.Player)
	cfg.PollInterval = bridge.Key("poll_interval").MustDuration(cfg.PollInterval)
	cfg.PauseTimeout = bridge.Key("pause_timeout").MustDuration(cfg.PauseTimeout)

	cfg.Debug = f.Section("log").Key("debug").MustBool(cfg.Debug)

	return cfg, nil
}

func (c Config) Validate() error {
	if c.DeviceAddr == "" {
		return errors.New("device address is required")
	}
	if ipaddr.NewIPAddressString(c.DeviceAddr).GetAddress() == nil {
		return errors.Errorf("invalid device address %q", c.DeviceAddr)
	}
	if c.DevicePort <= 0 || c.DevicePort > 65535 {
		return errors.Errorf("invalid device port %d", c.DevicePort)
	}
	if c.LMSHost == "" {
		return errors.New("lms host is required")
	}
	if c.LMSPort <= 0 || c.LMSPort > 65535 {
		return errors.Errorf("invalid lms port %d", c.LMSPort)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	if c.PauseTimeout <= 0 {
		return errors.New("pause timeout must be positive")
	}
	return nil
}
