// Package config manages the asuslink configuration file: saved router
// connection profiles and application preferences.
//
// The file lives in the platform config directory
// (~/.config/asuslink/config.yaml on Linux/macOS) and is written
// atomically. Profiles carry connection parameters and operational
// tuning (cache window, retries, timeouts); passwords are never stored.
// Structural validation runs on load and before every save.
package config
