// Package config defines calnotes configuration and how it is loaded.
package config

import (
	"fmt"
	"strings"
	"time"

	"calnotes/internal/notes"
)

// Calendar source kinds.
const (
	SourceGoogle = "google"
	SourceCalDAV = "caldav"
	SourceICS    = "ics"
)

// Storage kinds.
const (
	StorageFS     = "fs"
	StorageWebDAV = "webdav"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Timezone is the IANA zone used for local dates and times. Empty keeps
	// the system zone.
	Timezone string `koanf:"timezone"`

	// Source selects where events come from: google, caldav or ics.
	Source string `koanf:"source"`

	// Calendars lists the calendar IDs (or CalDAV display names) to read.
	// Entries may themselves be comma separated.
	Calendars []string `koanf:"calendars"`

	// Folder is the target folder, relative to the storage root.
	Folder string `koanf:"folder"`

	// Template is the path of the note template, relative to the storage root.
	Template string `koanf:"template"`

	// Policy is the conflict policy: skip, overwrite or suffix.
	Policy string `koanf:"policy"`

	// MetricsFile, when set, receives a Prometheus textfile after each run.
	MetricsFile string `koanf:"metrics_file"`

	Google  GoogleConfig  `koanf:"google"`
	CalDAV  CalDAVConfig  `koanf:"caldav"`
	ICS     ICSConfig     `koanf:"ics"`
	Storage StorageConfig `koanf:"storage"`
}

// GoogleConfig holds the OAuth client and token location.
type GoogleConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	TokenDir     string `koanf:"token_dir"`
	// Account picks one token-<account>.json; empty means every account found.
	Account string `koanf:"account"`
}

// CalDAVConfig holds the CalDAV server and credentials. iCloud needs an
// app-specific password.
type CalDAVConfig struct {
	Endpoint          string  `koanf:"endpoint"`
	Username          string  `koanf:"username"`
	Password          string  `koanf:"password"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// ICSConfig points at a local .ics file or an http(s) feed.
type ICSConfig struct {
	Location string `koanf:"location"`
}

// StorageConfig describes where notes are written.
type StorageConfig struct {
	Kind              string  `koanf:"kind"`
	Root              string  `koanf:"root"`
	Endpoint          string  `koanf:"endpoint"`
	Username          string  `koanf:"username"`
	Password          string  `koanf:"password"`
	RequestsPerSecond float64 `koanf:"requests_per_second"`
	// CacheSize bounds the read cache in front of remote storage; 0 disables it.
	CacheSize int `koanf:"cache_size"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel: "info",
		Source:   SourceGoogle,
		Policy:   string(notes.PolicySkip),
		Google: GoogleConfig{
			TokenDir: ".",
		},
		CalDAV: CalDAVConfig{
			RequestsPerSecond: 5,
		},
		Storage: StorageConfig{
			Kind:              StorageFS,
			Root:              ".",
			RequestsPerSecond: 10,
			CacheSize:         256,
		},
	}
}

// Validate reports the first configuration problem found.
func (c *Config) Validate() error {
	if _, err := notes.ParsePolicy(c.Policy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	switch c.Source {
	case SourceGoogle:
	case SourceCalDAV:
		if c.CalDAV.Username == "" || c.CalDAV.Password == "" {
			return fmt.Errorf("%w: caldav source needs a username and password", ErrInvalidConfig)
		}
	case SourceICS:
		if c.ICS.Location == "" {
			return fmt.Errorf("%w: ics source needs a location", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source %q", ErrInvalidConfig, c.Source)
	}

	switch c.Storage.Kind {
	case StorageFS:
		if c.Storage.Root == "" {
			return fmt.Errorf("%w: fs storage needs a root", ErrInvalidConfig)
		}
	case StorageWebDAV:
		if c.Storage.Endpoint == "" {
			return fmt.Errorf("%w: webdav storage needs an endpoint", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown storage kind %q", ErrInvalidConfig, c.Storage.Kind)
	}
	return nil
}

// Location resolves Timezone. Empty means time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
	}
	return loc, nil
}

// CalendarIDs returns the configured calendars with comma separated entries
// split and blanks dropped.
func (c *Config) CalendarIDs() []string {
	var ids []string
	for _, entry := range c.Calendars {
		for _, id := range strings.Split(entry, ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
	}
	return ids
}
