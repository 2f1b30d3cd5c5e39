package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o600)
}

const sampleConfig = `{
  "core": {
    "rclone_binary_path": "/usr/bin/rclone",
    "rclone_config_path": "/etc/uploadop/rclone.conf",
    "config_dir": "/etc/uploadop"
  },
  "uploader": {
    "gdrive": {
      "check_interval": 30,
      "max_size_gb": 500,
      "size_excludes": [".partial~"],
      "exclude_open_files": true,
      "opened_excludes": [],
      "service_account_path": "/etc/uploadop/sa"
    }
  },
  "remotes": {
    "gdrive": {
      "upload_folder": "/mnt/local/media",
      "upload_remote": "gdrive:media",
      "rclone_excludes": [],
      "rclone_extras": {},
      "rclone_sleeps": {
        "userRateLimitExceeded": {"count": 3, "timeout": 60, "sleep": 25}
      },
      "remove_empty_dir_depth": 2
    }
  },
  "plex": {
    "enabled": true,
    "url": "http://plex.local:32400",
    "token": "abc",
    "poll_interval": 30,
    "max_streams_before_throttle": 1,
    "ignore_local_streams": false,
    "rclone": {"url": "http://localhost:5572", "throttle_speeds": ["10M", "5M", "1M"]},
    "notifications": true
  },
  "nzbget": {"enabled": false, "url": ""},
  "sabnzbd": {"enabled": false, "url": ""}
}`

func writeSample(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := writeFile(path, sampleConfig); err != nil {
		t.Fatalf("writeFile: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeSample(t)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Core.RcloneBinaryPath != "/usr/bin/rclone" {
		t.Errorf("RcloneBinaryPath = %q, want /usr/bin/rclone", cfg.Core.RcloneBinaryPath)
	}
	if got := cfg.Uploader["gdrive"].CheckIntervalMinutes; got != 30 {
		t.Errorf("CheckIntervalMinutes = %d, want 30", got)
	}
	if !cfg.Uploader["gdrive"].CanBeThrottled() {
		t.Errorf("CanBeThrottled() = false, want true")
	}
	if got := cfg.Remotes["gdrive"].RcloneSleeps["userRateLimitExceeded"].Count; got != 3 {
		t.Errorf("RcloneSleeps count = %d, want 3", got)
	}
}

func TestLoad_MissingRemote(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := writeFile(path, `{
		"core": {"rclone_binary_path": "/bin/rclone", "rclone_config_path": "/etc/rclone.conf"},
		"uploader": {"gdrive": {"check_interval": 10}},
		"remotes": {}
	}`); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("Load() error = nil, want error for missing remotes entry")
	}
}

func TestLoad_MissingBinaryPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := writeFile(path, `{"core": {}}`); err != nil {
		t.Fatalf("writeFile: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Errorf("Load() error = nil, want error for missing rclone_binary_path")
	}
}

func TestCanBeThrottled_ExplicitFalse(t *testing.T) {
	f := false
	u := Uploader{ThrottleAllowed: &f}
	if u.CanBeThrottled() {
		t.Errorf("CanBeThrottled() = true, want false")
	}
}
