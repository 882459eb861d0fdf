//go:build !release

package config

const debugBuild = true
