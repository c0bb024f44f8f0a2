package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/muurk/asuslink"
	"github.com/muurk/asuslink/internal/config"
)

// passwordEnvVar is checked before prompting interactively.
const passwordEnvVar = "ASUSLINK_PASSWORD"

// resolveConfig builds the client configuration from flags, falling back
// to the named (or default) profile for anything not given on the
// command line.
func resolveConfig() (asuslink.Config, string, error) {
	cfg := asuslink.Config{
		Host:               hostFlag,
		Port:               portFlag,
		Username:           usernameFlag,
		UseTLS:             useTLSFlag,
		InsecureSkipVerify: insecureFlag,
	}
	if timeoutFlag > 0 {
		cfg.Timeout = time.Duration(timeoutFlag) * time.Second
	}

	profileName := profileFlag

	registry, err := config.LoadRegistry()
	if err != nil {
		// A broken config file should not lock the tool out when the
		// connection is fully specified by flags.
		if cfg.Host == "" {
			return cfg, "", fmt.Errorf("failed to load configuration: %w", err)
		}
		registry = nil
	}

	if registry != nil {
		if profileName == "" && registry.Preferences != nil {
			profileName = registry.Preferences.DefaultProfile
		}
		if profileName != "" {
			profile := registry.GetProfile(profileName)
			if profile == nil {
				return cfg, "", fmt.Errorf("unknown profile %q", profileName)
			}
			if cfg.Host == "" {
				cfg.Host = profile.Host
			}
			if cfg.Port == 0 {
				cfg.Port = profile.Port
			}
			if cfg.Username == "" {
				cfg.Username = profile.Username
			}
			if !cfg.UseTLS {
				cfg.UseTLS = profile.UseTLS
			}
			if !cfg.InsecureSkipVerify {
				cfg.InsecureSkipVerify = profile.InsecureSkipVerify
			}
			if cfg.Timeout == 0 {
				cfg.Timeout = profile.Timeout()
			}
			if cfg.CacheFreshness == 0 {
				cfg.CacheFreshness = profile.CacheFreshness()
			}
			if cfg.TokenValidity == 0 {
				cfg.TokenValidity = profile.TokenValidity()
			}
			if profile.MaxConns > 0 {
				cfg.MaxConns = profile.MaxConns
			}
			if profile.LoginRetries > 0 {
				cfg.LoginRetries = profile.LoginRetries
			}
		}
	}

	if cfg.Host == "" {
		return cfg, "", fmt.Errorf("no router host: use --host, or --profile with a saved profile")
	}
	if cfg.Username == "" {
		cfg.Username = "admin"
	}
	return cfg, profileName, nil
}

// readPassword returns the router password from the environment or an
// interactive prompt.
func readPassword(username, host string) (string, error) {
	if password := os.Getenv(passwordEnvVar); password != "" {
		return password, nil
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("no password: set %s or run interactively", passwordEnvVar)
	}

	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", username, host)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimSpace(string(raw))
	if password == "" {
		return "", fmt.Errorf("empty password")
	}
	return password, nil
}

// connect resolves configuration, obtains the password and establishes
// an authenticated session. On success the profile's bookkeeping fields
// are refreshed.
func connect(ctx context.Context) (*asuslink.Client, error) {
	cfg, profileName, err := resolveConfig()
	if err != nil {
		return nil, err
	}

	cfg.Password, err = readPassword(cfg.Username, cfg.Host)
	if err != nil {
		return nil, err
	}

	client, err := asuslink.NewClient(cfg)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(ctx); err != nil {
		if asuslink.IsAuthenticationError(err) {
			return nil, fmt.Errorf("authentication failed for %s@%s: %w", cfg.Username, cfg.Host, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Host, err)
	}

	if profileName != "" {
		if registry, regErr := config.LoadRegistry(); regErr == nil {
			identity := client.Identity()
			registry.TouchProfile(profileName, identity.Model, identity.Firmware.String())
			_ = registry.Save()
		}
	}

	return client, nil
}
