package config

import (
	"strings"

	"github.com/spf13/viper"
)

type (
	Config struct {
		HTTP
		Database
		Matching
		Backends
		Sync
		DeviceWatch
		Developer
		Global
	}

	HTTP struct {
		Port int32
		Host string
	}
	Database struct {
		Path string
	}
	Matching struct {
		TauHigh float64 // similarity at or above this auto-attaches
		TauLow  float64 // similarity below this is treated as no match
	}
	Backends struct {
		Enabled   []string // registration order, which is also import trial order
		KoboMount string
	}
	Sync struct {
		Enabled  bool
		Schedule string // Cron format: "0 * * * *" = hourly
		Source   string // backend id to sync from
	}
	DeviceWatch struct {
		Enabled    bool
		DeviceGlob string // udev DEVNAME pattern, e.g. "/dev/sd*"
		Source     string // backend id to fetch when the device appears
	}
	Developer struct {
		Mode bool // enables the destructive purge operation
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
)

// DefaultDatabasePath is used when MARGINALIA_DATABASE_PATH is not set.
const DefaultDatabasePath = "./marginalia.db"

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8177)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)

	// At or above tau_high a match attaches without confirmation; between
	// the two the user is asked; below tau_low the book is unmatched.
	v.SetDefault("match_tau_high", 0.85)
	v.SetDefault("match_tau_low", 0.50)

	v.SetDefault("backends_enabled", "kindle_clippings,tolino,moonreader,kobo")
	v.SetDefault("kobo_mount", "/media/kobo")

	v.SetDefault("sync_enabled", false)
	v.SetDefault("sync_schedule", "0 * * * *") // Hourly at :00
	v.SetDefault("sync_source", "kobo")

	v.SetDefault("device_watch_enabled", false)
	v.SetDefault("device_watch_glob", "/dev/sd*")
	v.SetDefault("device_watch_source", "kobo")

	v.SetDefault("developer_mode", false)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Database: Database{
			Path: v.GetString("DATABASE_PATH"),
		},
		Matching: Matching{
			TauHigh: v.GetFloat64("MATCH_TAU_HIGH"),
			TauLow:  v.GetFloat64("MATCH_TAU_LOW"),
		},
		Backends: Backends{
			Enabled:   splitList(v.GetString("BACKENDS_ENABLED")),
			KoboMount: v.GetString("KOBO_MOUNT"),
		},
		Sync: Sync{
			Enabled:  v.GetBool("SYNC_ENABLED"),
			Schedule: v.GetString("SYNC_SCHEDULE"),
			Source:   v.GetString("SYNC_SOURCE"),
		},
		DeviceWatch: DeviceWatch{
			Enabled:    v.GetBool("DEVICE_WATCH_ENABLED"),
			DeviceGlob: v.GetString("DEVICE_WATCH_GLOB"),
			Source:     v.GetString("DEVICE_WATCH_SOURCE"),
		},
		Developer: Developer{
			Mode: v.GetBool("DEVELOPER_MODE"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
