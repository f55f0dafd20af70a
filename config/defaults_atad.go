//go:build atad

package config

const defaultLegacyATA = true
