package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"mixtape/src/library"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(filename, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestLoadYAML(t *testing.T) {
	filename := writeFile(t, "config.yaml", `
bind: ":8080"
poll_interval: 250ms
storage:
  driver: bolt
  location: /var/lib/mixtape/playlist.db
mpd:
  address: /run/mpd/socket
  network: unix
  password: hunter2
mpv:
  ytdl_format: "bestaudio"
`)
	conf, err := Load(filename, true)
	if err != nil {
		t.Fatal(err)
	}
	if errs := conf.Validate(); len(errs) > 0 {
		t.Fatalf("Unexpected validation errors: %v", errs)
	}
	if conf.Address != ":8080" || conf.PollInterval != 250*time.Millisecond {
		t.Fatalf("Unexpected config: %#v", conf)
	}
	if conf.Storage.Driver != "bolt" || conf.Storage.Key != library.DefaultKey {
		t.Fatalf("Unexpected storage config: %#v", conf.Storage)
	}
	if conf.MPD.Network != "unix" || conf.MPD.Password == nil || *conf.MPD.Password != "hunter2" {
		t.Fatalf("Unexpected mpd config: %#v", conf.MPD)
	}
	if conf.MPV.Binary != "mpv" || conf.MPV.YTDLFormat != "bestaudio" {
		t.Fatalf("Unexpected mpv config: %#v", conf.MPV)
	}
}

func TestLoadYAMLUnknownField(t *testing.T) {
	filename := writeFile(t, "config.yaml", "bind: \":8080\"\nautoqueue: true\n")
	if _, err := Load(filename, true); err == nil {
		t.Fatalf("Unknown fields should be rejected")
	}
}

func TestLoadTOML(t *testing.T) {
	filename := writeFile(t, "config.toml", `
bind = ":9090"
poll_interval = "1s"

[storage]
driver = "sqlite"
location = "/tmp/mixtape.sqlite"
legacy_keys = ["old_playlist"]
`)
	conf, err := Load(filename, true)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Address != ":9090" || conf.PollInterval != time.Second {
		t.Fatalf("Unexpected config: %#v", conf)
	}
	if conf.Storage.Driver != "sqlite" || len(conf.Storage.LegacyKeys) != 1 || conf.Storage.LegacyKeys[0] != "old_playlist" {
		t.Fatalf("Unexpected storage config: %#v", conf.Storage)
	}

	filename = writeFile(t, "config.toml", "colors = 1\n")
	if _, err := Load(filename, true); err == nil {
		t.Fatalf("Unknown fields should be rejected")
	}
}

func TestLoadMissingFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	if _, err := Load(filename, true); err == nil {
		t.Fatalf("A required config file should not be optional")
	}
	conf, err := Load(filename, false)
	if err != nil {
		t.Fatal(err)
	}
	if errs := conf.Validate(); len(errs) > 0 {
		t.Fatalf("The defaults should be valid: %v", errs)
	}
}

func TestEnvOverrides(t *testing.T) {
	conf := Default()
	env := map[string]string{
		"MIXTAPE_BIND":          ":1234",
		"MIXTAPE_MPD_ADDRESS":   "mpd:6600",
		"MIXTAPE_MPD_PASSWORD":  "secret",
		"MIXTAPE_POLL_INTERVAL": "2s",
		"MPD_ADDRESS":           "ignored",
	}
	conf.applyEnv(func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	})
	if conf.Address != ":1234" || conf.MPD.Address != "mpd:6600" || conf.PollInterval != 2*time.Second {
		t.Fatalf("Unexpected config: %#v", conf)
	}
	if conf.MPD.Password == nil || *conf.MPD.Password != "secret" {
		t.Fatalf("Password was not set")
	}
}

func TestValidate(t *testing.T) {
	conf := Default()
	conf.Address = ""
	conf.Storage.Driver = "floppy"
	conf.PollInterval = 0
	if errs := conf.Validate(); len(errs) != 3 {
		t.Fatalf("Expected 3 errors, got %v", errs)
	}
}

func TestStorageLocation(t *testing.T) {
	t.Setenv("HOME", "/home/test")
	conf := Default()
	if loc := conf.StorageLocation(); loc != "/home/test/.local/share/mixtape" {
		t.Fatalf("Unexpected location: %q", loc)
	}
}
