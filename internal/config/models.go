package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Registry represents the entire user configuration file: saved router
// profiles plus application preferences.
type Registry struct {
	Version     int                 `yaml:"version"`
	Profiles    map[string]*Profile `yaml:"profiles,omitempty"` // Keyed by profile name
	Preferences *Preferences        `yaml:"preferences,omitempty"`
}

// Profile describes how to reach one router. Passwords are NEVER stored
// here; they are prompted or taken from the environment.
type Profile struct {
	Host     string `yaml:"host" validate:"required,hostname|ip"`
	Port     int    `yaml:"port,omitempty" validate:"omitempty,min=1,max=65535"`
	Username string `yaml:"username" validate:"required"`

	UseTLS             bool `yaml:"use_tls,omitempty"`
	InsecureSkipVerify bool `yaml:"insecure_skip_verify,omitempty"`

	// Operational tuning; zero values select the library defaults.
	TimeoutSeconds   int `yaml:"timeout_seconds,omitempty" validate:"omitempty,min=1,max=300"`
	CacheSeconds     int `yaml:"cache_seconds,omitempty" validate:"omitempty,min=1,max=3600"`
	MaxConns         int `yaml:"max_conns,omitempty" validate:"omitempty,min=1,max=16"`
	LoginRetries     int `yaml:"login_retries,omitempty" validate:"omitempty,min=0,max=10"`
	TokenMinutes     int `yaml:"token_minutes,omitempty" validate:"omitempty,min=1,max=1440"`
	LastSeen         time.Time `yaml:"last_seen,omitempty"`
	LastKnownModel   string    `yaml:"last_known_model,omitempty"`
	LastKnownVersion string    `yaml:"last_known_version,omitempty"`
}

// Timeout returns the configured request timeout.
func (p *Profile) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// CacheFreshness returns the configured cache window.
func (p *Profile) CacheFreshness() time.Duration {
	return time.Duration(p.CacheSeconds) * time.Second
}

// TokenValidity returns the configured session token validity.
func (p *Profile) TokenValidity() time.Duration {
	return time.Duration(p.TokenMinutes) * time.Minute
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	AutoDiscover    bool   `yaml:"auto_discover"`
	DiscoverTimeout int    `yaml:"discover_timeout" validate:"omitempty,min=1,max=120"` // seconds
	DefaultProfile  string `yaml:"default_profile,omitempty"`
}

var validate = validator.New()

// Validate checks a profile for structural errors before it is used or
// saved.
func (p *Profile) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	return nil
}

// Validate checks the whole registry.
func (r *Registry) Validate() error {
	for name, profile := range r.Profiles {
		if err := profile.Validate(); err != nil {
			return fmt.Errorf("profile %q: %w", name, err)
		}
	}
	if r.Preferences != nil {
		if err := validate.Struct(r.Preferences); err != nil {
			return fmt.Errorf("invalid preferences: %w", err)
		}
	}
	return nil
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:  1,
		Profiles: make(map[string]*Profile),
		Preferences: &Preferences{
			AutoDiscover:    true,
			DiscoverTimeout: 10,
		},
	}
}

// GetProfile retrieves a profile by name. Returns nil if absent.
func (r *Registry) GetProfile(name string) *Profile {
	return r.Profiles[name]
}

// EnsureProfile returns the named profile, creating an empty entry when
// it does not exist yet.
func (r *Registry) EnsureProfile(name string) *Profile {
	if r.Profiles == nil {
		r.Profiles = make(map[string]*Profile)
	}
	if profile, exists := r.Profiles[name]; exists {
		return profile
	}
	profile := &Profile{Username: "admin"}
	r.Profiles[name] = profile
	return profile
}

// TouchProfile updates the bookkeeping fields after a successful
// connection.
func (r *Registry) TouchProfile(name, model, version string) {
	profile := r.EnsureProfile(name)
	profile.LastSeen = time.Now()
	if model != "" {
		profile.LastKnownModel = model
	}
	if version != "" {
		profile.LastKnownVersion = version
	}
}
