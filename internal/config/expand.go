package config

import (
	"os"
	"os/user"
	"path/filepath"
	"strings"
)

// envKeyReplacer maps nested keys to environment names: socket.path becomes
// SENSORD_SOCKET_PATH.
var envKeyReplacer = strings.NewReplacer(".", "_")

// ExpandTilde replaces ~ or ~/path with the user's home directory.
// Does not support ~username syntax - just ~ for the current user.
func ExpandTilde(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path // Return unchanged if we can't get home
		}
		return filepath.Join(home, path[2:])
	}

	if path == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return home
	}

	return path
}

// Expand replaces variables in a string with their values.
// Supported variables:
//   - ${USER}   - current username
//   - ${HOME}   - user's home directory
//   - ${TMPDIR} - the temp directory (os.TempDir)
//
// Note: Does NOT expand ~ - use ExpandTilde for that.
func Expand(s string) string {
	if s == "" || !strings.Contains(s, "${") {
		return s
	}

	result := s
	if strings.Contains(result, "${USER}") {
		result = strings.ReplaceAll(result, "${USER}", getUser())
	}
	if strings.Contains(result, "${HOME}") {
		result = strings.ReplaceAll(result, "${HOME}", getHome())
	}
	if strings.Contains(result, "${TMPDIR}") {
		result = strings.ReplaceAll(result, "${TMPDIR}", strings.TrimRight(os.TempDir(), "/"))
	}
	return result
}

// getUser returns the current username, trying $USER first.
func getUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func getHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "~"
	}
	return home
}
