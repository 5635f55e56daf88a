//go:build android
// +build android

package sdk

import "path/filepath"

// the host app sandbox. `home` is not meaningful on android
func defaultLogDir(home string) string {
	return filepath.Join("/data/data/ua.com.radiokot.osmanddisplay/files", "logs")
}
