package config

import (
	"errors"
	"io/fs"
)

// isNotExist covers viper returning the raw fs error for an explicit config
// path that does not exist.
func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
