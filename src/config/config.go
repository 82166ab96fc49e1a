// Package config loads the settings of the mixtape daemon.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"mixtape/src/library"
	"mixtape/src/player"
)

// EnvPrefix is the prefix of environment variables that override settings
// from the configuration file.
const EnvPrefix = "MIXTAPE_"

type StorageConfig struct {
	Driver     string   `yaml:"driver" toml:"driver"`
	Location   string   `yaml:"location" toml:"location"`
	Key        string   `yaml:"key" toml:"key"`
	LegacyKeys []string `yaml:"legacy_keys" toml:"legacy_keys"`
}

type MPDConfig struct {
	Network  string  `yaml:"network" toml:"network"`
	Address  string  `yaml:"address" toml:"address"`
	Password *string `yaml:"password" toml:"password"`
}

type MPVConfig struct {
	Binary       string        `yaml:"binary" toml:"binary"`
	Socket       string        `yaml:"socket" toml:"socket"`
	YTDLFormat   string        `yaml:"ytdl_format" toml:"ytdl_format"`
	Args         []string      `yaml:"args" toml:"args"`
	StartTimeout time.Duration `yaml:"start_timeout" toml:"start_timeout"`
}

type Config struct {
	Address string `yaml:"bind" toml:"bind"`
	URLRoot string `yaml:"url_root" toml:"url_root"`
	LogFile string `yaml:"log_file" toml:"log_file"`

	PollInterval time.Duration `yaml:"poll_interval" toml:"poll_interval"`

	Storage StorageConfig `yaml:"storage" toml:"storage"`
	MPD     MPDConfig     `yaml:"mpd" toml:"mpd"`
	MPV     MPVConfig     `yaml:"mpv" toml:"mpv"`
}

// Default returns the settings used for everything the configuration file
// leaves out.
func Default() Config {
	return Config{
		Address:      ":3000",
		PollInterval: player.DefaultPollInterval,
		Storage: StorageConfig{
			Driver:     "dir",
			Location:   "~/.local/share/mixtape",
			Key:        library.DefaultKey,
			LegacyKeys: append([]string(nil), library.DefaultLegacyKeys...),
		},
		MPD: MPDConfig{
			Network: "tcp",
			Address: "localhost:6600",
		},
		MPV: MPVConfig{
			Binary:       "mpv",
			YTDLFormat:   "bestaudio/best",
			StartTimeout: 10 * time.Second,
		},
	}
}

func (conf *Config) Validate() (errs []error) {
	if conf.Address == "" {
		errs = append(errs, fmt.Errorf("config: `bind` is required"))
	}
	switch conf.Storage.Driver {
	case "dir", "bolt", "sqlite", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("config: unknown storage driver %q", conf.Storage.Driver))
	}
	if conf.Storage.Driver != "memory" && conf.Storage.Location == "" {
		errs = append(errs, fmt.Errorf("config: `storage.location` is required"))
	}
	if conf.Storage.Key == "" {
		errs = append(errs, fmt.Errorf("config: `storage.key` is required"))
	}
	if conf.MPD.Address == "" {
		errs = append(errs, fmt.Errorf("config: `mpd.address` is required"))
	}
	if conf.MPV.Binary == "" {
		errs = append(errs, fmt.Errorf("config: `mpv.binary` is required"))
	}
	if conf.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("config: `poll_interval` must be positive"))
	}
	return
}

// StorageLocation returns the storage location with a leading ~ replaced by
// the home directory.
func (conf *Config) StorageLocation() string {
	if conf.Storage.Driver == "redis" {
		return conf.Storage.Location
	}
	return strings.Replace(conf.Storage.Location, "~", os.Getenv("HOME"), 1)
}

// Load reads the configuration file on top of the defaults. Files ending in
// .toml are decoded as TOML, anything else as YAML. A missing file is only
// an error if it was explicitly requested.
//
// A .env file in the working directory is loaded into the environment first,
// then MIXTAPE_* variables override the result.
func Load(filename string, required bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("Could not load .env: %v", err)
	}

	conf := Default()
	if err := decodeFile(filename, &conf); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || required {
			return nil, err
		}
		log.Infof("No config file at %q, using defaults", filename)
	}
	conf.applyEnv(os.LookupEnv)
	return &conf, nil
}

func decodeFile(filename string, conf *Config) error {
	if strings.EqualFold(filepath.Ext(filename), ".toml") {
		md, err := toml.DecodeFile(filename, conf)
		if err != nil {
			return err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("config: unknown field %q", undecoded[0].String())
		}
		return nil
	}

	fd, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer fd.Close()

	d := yaml.NewDecoder(fd)
	d.KnownFields(true)
	if err := d.Decode(conf); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (conf *Config) applyEnv(lookup func(string) (string, bool)) {
	for name, field := range map[string]*string{
		"BIND":             &conf.Address,
		"URL_ROOT":         &conf.URLRoot,
		"LOG_FILE":         &conf.LogFile,
		"STORAGE_DRIVER":   &conf.Storage.Driver,
		"STORAGE_LOCATION": &conf.Storage.Location,
		"MPD_NETWORK":      &conf.MPD.Network,
		"MPD_ADDRESS":      &conf.MPD.Address,
		"MPV_BINARY":       &conf.MPV.Binary,
		"MPV_SOCKET":       &conf.MPV.Socket,
	} {
		if value, ok := lookup(EnvPrefix + name); ok {
			*field = value
		}
	}
	if value, ok := lookup(EnvPrefix + "MPD_PASSWORD"); ok {
		conf.MPD.Password = &value
	}
	if value, ok := lookup(EnvPrefix + "POLL_INTERVAL"); ok {
		if d, err := time.ParseDuration(value); err == nil {
			conf.PollInterval = d
		} else {
			log.Warnf("Ignoring %sPOLL_INTERVAL: %v", EnvPrefix, err)
		}
	}
}
