//go:build !android && !darwin
// +build !android,!darwin

package sdk

import "path/filepath"

func defaultLogDir(home string) string {
	return filepath.Join(home, ".local", "state", "osmanddisplay", "logs")
}
