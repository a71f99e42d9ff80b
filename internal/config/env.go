package config

import (
	"io/fs"
	"os"
)

// Environment is the process state the resolver reads from.
type Environment interface {
	LookupEnv(key string) (string, bool)
	FileExists(path string) bool
	ReadFile(path string) ([]byte, error)
}

// OSEnvironment reads the real process environment and filesystem.
type OSEnvironment struct{}

// LookupEnv returns the value of an environment variable
func (OSEnvironment) LookupEnv(key string) (string, bool) {
	return os.LookupEnv(key)
}

// FileExists reports whether path names an existing file
func (OSEnvironment) FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// ReadFile reads a whole file
func (OSEnvironment) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// MapEnvironment is an in-memory Environment used by tests and embedders that
// should not touch the real process state.
type MapEnvironment struct {
	Vars  map[string]string
	Files map[string]string
}

// LookupEnv returns the value stored under key
func (m MapEnvironment) LookupEnv(key string) (string, bool) {
	v, ok := m.Vars[key]
	return v, ok
}

// FileExists reports whether path was registered in Files
func (m MapEnvironment) FileExists(path string) bool {
	_, ok := m.Files[path]
	return ok
}

// ReadFile returns the registered contents of path
func (m MapEnvironment) ReadFile(path string) ([]byte, error) {
	content, ok := m.Files[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return []byte(content), nil
}

// lookup treats an empty value the same as an unset variable.
func lookup(env Environment, key string) (string, bool) {
	v, ok := env.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

var (
	_ Environment = OSEnvironment{}
	_ Environment = MapEnvironment{}
)
