package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// GetenvParser converts the raw value of an environment variable.
type GetenvParser[T any] func(string) (T, error)

func GetenvString(s string) (string, error) {
	return s, nil
}

func GetenvInt(s string) (int, error) {
	return strconv.Atoi(s)
}

func GetenvBool(s string) (bool, error) {
	return strconv.ParseBool(s)
}

func GetenvDuration(s string) (time.Duration, error) {
	return time.ParseDuration(s)
}

// Getenv reads key and parses it. An unset or empty variable yields def,
// unless required is true.
func Getenv[T any](parse GetenvParser[T], key string, required bool, def T) (T, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		if required {
			return def, fmt.Errorf("environment variable %s is required", key)
		}
		return def, nil
	}
	v, err := parse(raw)
	if err != nil {
		return def, fmt.Errorf("parsing environment variable %s: %w", key, err)
	}
	return v, nil
}

func MustGetenv[T any](parse GetenvParser[T], key string, required bool, def T) T {
	v, err := Getenv(parse, key, required, def)
	if err != nil {
		panic(err)
	}
	return v
}
