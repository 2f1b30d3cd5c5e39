// Package config loads and validates uploadop's JSON configuration document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the top-level JSON document.
type Config struct {
	Core          Core                    `json:"core"`
	Uploader      map[string]Uploader     `json:"uploader"`
	Remotes       map[string]Remote       `json:"remotes"`
	Plex          Plex                    `json:"plex"`
	Hidden        json.RawMessage         `json:"hidden,omitempty"`
	Syncer        json.RawMessage         `json:"syncer,omitempty"`
	Notifications json.RawMessage         `json:"notifications,omitempty"`
	Nzbget        DownloadQueue           `json:"nzbget"`
	Sabnzbd       DownloadQueue           `json:"sabnzbd"`
	Dashboard     json.RawMessage         `json:"dashboard,omitempty"`
}

// Core holds process-wide settings.
type Core struct {
	RcloneBinaryPath string `json:"rclone_binary_path"`
	RcloneConfigPath string `json:"rclone_config_path"`
	ConfigDir        string `json:"config_dir"`
	DryRun           bool   `json:"dry_run"`
	TransferLogPath  string `json:"transfer_log_path,omitempty"`
	LsofBinaryPath   string `json:"lsof_binary_path,omitempty"`
}

// Schedule is the optional allowed-hours window for an uploader.
type Schedule struct {
	Enabled      bool   `json:"enabled"`
	AllowedFrom  string `json:"allowed_from"`
	AllowedUntil string `json:"allowed_until"`
}

// ChunkedUpload configures the chunked file-list upload mode.
type ChunkedUpload struct {
	Enabled               bool `json:"enabled"`
	ChunkSize             int  `json:"chunk_size"`
	GenerateListTimeoutS  int  `json:"generate_list_timeout"`
}

// Mover toggles rclone move-semantics (delete-after-transfer) in place of
// the default copy.
type Mover struct {
	Enabled bool `json:"enabled"`
}

// Uploader is one uploader's per-run configuration.
type Uploader struct {
	CheckIntervalMinutes int            `json:"check_interval"`
	MaxSizeGB            float64        `json:"max_size_gb"`
	SizeExcludes         []string       `json:"size_excludes"`
	ExcludeOpenFiles     bool           `json:"exclude_open_files"`
	OpenedExcludes       []string       `json:"opened_excludes"`
	ServiceAccountPath   string         `json:"service_account_path,omitempty"`
	Schedule             *Schedule      `json:"schedule,omitempty"`
	ThrottleAllowed      *bool          `json:"can_be_throttled,omitempty"`
	ChunkedUpload        *ChunkedUpload `json:"chunked_upload,omitempty"`
	Mover                *Mover         `json:"mover,omitempty"`
}

// Move reports whether this uploader should use rclone's move subcommand
// instead of copy. Absent configuration defaults to false (copy).
func (u Uploader) Move() bool {
	return u.Mover != nil && u.Mover.Enabled
}

// RcloneSleep is one trigger definition.
type RcloneSleep struct {
	Count   int `json:"count"`
	Timeout int `json:"timeout"`
	Sleep   int `json:"sleep"`
}

// Remote is the rclone-facing configuration for one uploader's destination.
type Remote struct {
	UploadFolder        string                 `json:"upload_folder"`
	UploadRemote        string                 `json:"upload_remote"`
	RcloneExcludes      []string               `json:"rclone_excludes"`
	RcloneExtras        map[string]string      `json:"rclone_extras"`
	RcloneSleeps        map[string]RcloneSleep `json:"rclone_sleeps"`
	RemoveEmptyDirDepth int                    `json:"remove_empty_dir_depth"`
}

// PlexRclone holds the RC endpoint and throttle ladder for the media server's
// transfer tool instance.
type PlexRclone struct {
	URL            string   `json:"url"`
	ThrottleSpeeds []string `json:"throttle_speeds"`
}

// Plex configures the throttle monitor.
type Plex struct {
	Enabled                 bool       `json:"enabled"`
	URL                     string     `json:"url"`
	Token                   string     `json:"token"`
	PollIntervalSeconds     int        `json:"poll_interval"`
	MaxStreamsBeforeThrottle int       `json:"max_streams_before_throttle"`
	IgnoreLocalStreams      bool       `json:"ignore_local_streams"`
	Rclone                  PlexRclone `json:"rclone"`
	Notifications           bool       `json:"notifications"`
}

// DownloadQueue is the fixed external contract for nzbget/sabnzbd (out of
// scope here -- only the enable flag, URL and API key are parsed).
type DownloadQueue struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	APIKey  string `json:"apikey,omitempty"`
}

// Load reads and parses the configuration document at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Validate checks the fields this core actually consumes.
func (c *Config) Validate() error {
	if c.Core.RcloneBinaryPath == "" {
		return fmt.Errorf("core.rclone_binary_path is required")
	}
	if c.Core.RcloneConfigPath == "" {
		return fmt.Errorf("core.rclone_config_path is required")
	}
	for name, u := range c.Uploader {
		remote, ok := c.Remotes[name]
		if !ok {
			return fmt.Errorf("uploader %q has no matching remotes entry", name)
		}
		if remote.UploadFolder == "" {
			return fmt.Errorf("remotes.%s.upload_folder is required", name)
		}
		if remote.UploadRemote == "" {
			return fmt.Errorf("remotes.%s.upload_remote is required", name)
		}
		if u.CheckIntervalMinutes <= 0 {
			return fmt.Errorf("uploader.%s.check_interval must be > 0", name)
		}
	}
	return nil
}

// CanBeThrottled reports whether the throttle monitor should run for this
// uploader. Absent configuration defaults to true.
func (u Uploader) CanBeThrottled() bool {
	if u.ThrottleAllowed == nil {
		return true
	}
	return *u.ThrottleAllowed
}
