// Package configuration implements ambient concerns shared by both
// binaries: a dotenv-style configuration overlay and a re-exec-based
// daemonization helper.
package configuration

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// DefaultDirectory returns "$HOME/.lognotify", the default location for a
// binary's env overlay, server/filter/file lists, and session history.
func DefaultDirectory() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "unable to determine home directory")
	}
	return filepath.Join(home, ".lognotify"), nil
}

// LoadEnvironment loads the dotenv-style overlay file at
// <configDir>/env (if present) and merges it with the current process'
// environment, the OS environment taking precedence over the file. If the
// file doesn't exist, the result is simply the current environment.
func LoadEnvironment(configDir string) (map[string]string, error) {
	path := filepath.Join(configDir, "env")

	environment, err := godotenv.Read(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "unable to load environment file (%s)", path)
	}
	if environment == nil {
		environment = make(map[string]string)
	}

	for _, specification := range os.Environ() {
		keyValue := strings.SplitN(specification, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		environment[keyValue[0]] = keyValue[1]
	}

	return environment, nil
}
