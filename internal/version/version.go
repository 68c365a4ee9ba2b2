// Package version provides SDK version information.
package version

import (
	"fmt"
	"runtime"
)

// SDK version constants
const (
	// Version is the current SDK version.
	Version = "0.4.0"

	// SDKName is the name of the SDK.
	SDKName = "personalia-go"
)

// UserAgent returns the default user agent string for the SDK.
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s; %s; %s)", SDKName, Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
}

// ShortUserAgent returns a shorter user agent string.
func ShortUserAgent() string {
	return fmt.Sprintf("%s/%s", SDKName, Version)
}

// CLIUserAgent returns the user agent sent by the personalia command.
func CLIUserAgent() string {
	return fmt.Sprintf("personalia-cli/%s %s", Version, ShortUserAgent())
}
