package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is the dotenv file read before the REIDENT_* variables are bound.
const DefaultEnvFile = "/etc/default/reident"

// LoadEnvFile exports the variables defined in the dotenv file at path. Variables already set
// in the environment keep their value. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	vars, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("read env file %s: %w", path, err)
	}

	for key, value := range vars {
		if _, ok := os.LookupEnv(key); ok {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("set %s from %s: %w", key, path, err)
		}
	}

	return nil
}
