// Package config provides configuration structures and utilities for streamscout.
// It defines the provider catalogue file format, probe and egress settings,
// server settings and report preferences, together with their validation.
package config
