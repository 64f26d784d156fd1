// Package device renders User-Agent strings into short human-readable
// labels for the audit trail.
package device

import "github.com/mssola/useragent"

// maxRawDisplay caps the fallback for agents the parser cannot place.
const maxRawDisplay = 128

// Display parses a raw User-Agent into a "Browser on OS" label, e.g.
// "Chrome on Mac OS X". Agents without a recognizable browser or OS fall
// back to the raw string, truncated. An empty User-Agent stays empty.
func Display(raw string) string {
	if raw == "" {
		return ""
	}

	parsed := useragent.New(raw)
	name, _ := parsed.Browser()
	osName := parsed.OSInfo().Name

	switch {
	case name != "" && osName != "":
		return name + " on " + osName
	case name != "":
		return name
	case osName != "":
		return osName
	}
	if len(raw) > maxRawDisplay {
		return raw[:maxRawDisplay]
	}
	return raw
}
