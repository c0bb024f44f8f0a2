package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		wantErr bool
	}{
		{
			name:    "minimal valid",
			profile: Profile{Host: "192.168.1.1", Username: "admin"},
		},
		{
			name:    "hostname valid",
			profile: Profile{Host: "router.local", Username: "admin", Port: 8443, UseTLS: true},
		},
		{
			name:    "missing host",
			profile: Profile{Username: "admin"},
			wantErr: true,
		},
		{
			name:    "missing username",
			profile: Profile{Host: "192.168.1.1"},
			wantErr: true,
		},
		{
			name:    "port out of range",
			profile: Profile{Host: "192.168.1.1", Username: "admin", Port: 70000},
			wantErr: true,
		},
		{
			name:    "timeout out of range",
			profile: Profile{Host: "192.168.1.1", Username: "admin", TimeoutSeconds: 500},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryValidateNamesBadProfile(t *testing.T) {
	registry := NewRegistry()
	registry.Profiles["broken"] = &Profile{Username: "admin"}

	err := registry.Validate()
	if err == nil {
		t.Fatalf("Validate accepted a profile without a host")
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("error %q does not name the offending profile", err)
	}
}

func TestEnsureProfile(t *testing.T) {
	registry := NewRegistry()

	profile := registry.EnsureProfile("home")
	if profile.Username != "admin" {
		t.Errorf("new profile username = %q, want admin default", profile.Username)
	}

	profile.Host = "192.168.1.1"
	if again := registry.EnsureProfile("home"); again != profile {
		t.Errorf("EnsureProfile created a second instance for the same name")
	}
}

func TestTouchProfile(t *testing.T) {
	registry := NewRegistry()
	registry.EnsureProfile("home").Host = "192.168.1.1"

	registry.TouchProfile("home", "RT-AX88U", "3.0.0.4.388.24243")

	profile := registry.GetProfile("home")
	if profile.LastSeen.IsZero() {
		t.Errorf("LastSeen not updated")
	}
	if profile.LastKnownModel != "RT-AX88U" {
		t.Errorf("LastKnownModel = %q", profile.LastKnownModel)
	}

	// Empty values must not erase what a prior connection recorded.
	registry.TouchProfile("home", "", "")
	if profile.LastKnownModel != "RT-AX88U" || profile.LastKnownVersion != "3.0.0.4.388.24243" {
		t.Errorf("empty touch erased recorded model/version")
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	registry := NewRegistry()
	profile := registry.EnsureProfile("home")
	profile.Host = "192.168.1.1"
	profile.UseTLS = true
	profile.CacheSeconds = 5
	registry.Preferences.DefaultProfile = "home"

	if err := registry.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := loadRegistryFromDisk()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	got := loaded.GetProfile("home")
	if got == nil {
		t.Fatalf("profile missing after reload")
	}
	if got.Host != "192.168.1.1" || !got.UseTLS || got.CacheSeconds != 5 {
		t.Errorf("reloaded profile = %+v", got)
	}
	if loaded.Preferences.DefaultProfile != "home" {
		t.Errorf("DefaultProfile = %q", loaded.Preferences.DefaultProfile)
	}
}

func TestSavedFileNeverContainsPassword(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	registry := NewRegistry()
	registry.EnsureProfile("home").Host = "192.168.1.1"
	if err := registry.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if strings.Contains(strings.ToLower(string(data)), "password:") {
		t.Errorf("config file contains a password field:\n%s", data)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config file mode = %o, want 0600", perm)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	registry, err := loadRegistryFromDisk()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if registry.Version != 1 {
		t.Errorf("Version = %d", registry.Version)
	}
	if registry.Preferences == nil || !registry.Preferences.AutoDiscover {
		t.Errorf("Preferences = %+v, want discovery enabled by default", registry.Preferences)
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, appName, configFile)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("version: 99\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := loadRegistryFromDisk(); err == nil {
		t.Fatalf("load accepted an unsupported config version")
	}
}

func TestProfileDurations(t *testing.T) {
	profile := &Profile{TimeoutSeconds: 15, CacheSeconds: 5, TokenMinutes: 30}
	if profile.Timeout().Seconds() != 15 {
		t.Errorf("Timeout = %v", profile.Timeout())
	}
	if profile.CacheFreshness().Seconds() != 5 {
		t.Errorf("CacheFreshness = %v", profile.CacheFreshness())
	}
	if profile.TokenValidity().Minutes() != 30 {
		t.Errorf("TokenValidity = %v", profile.TokenValidity())
	}
}
