package env

import (
	"os"
	"strconv"
	"time"
	"unicode/utf8"
)

const NotExists = "~!-===X===-!~"

// GetString retrieves the value of the environment variable named by the key.
// It returns the value, or if the variable is not present, it returns the defaultValue.
func GetString(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	return value
}

// GetBool returns true if the env variable with the key set and is truthy and
// defaultValue otherwise.
func GetBool(key string, defaultValue bool) bool {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	if strValue == "1" || strValue == "true" {
		return true
	}

	return false
}

// GetInt returns an integer if the env variable with the key set and contains
// an integer and defaultValue otherwise.
func GetInt(key string, defaultValue int) int {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	intValue, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return defaultValue
	}

	return int(intValue)
}

// GetInt64 is GetInt for sizes that may not fit into an int on 32-bit builds.
func GetInt64(key string, defaultValue int64) int64 {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	intValue, err := strconv.ParseInt(strValue, 10, 64)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// GetDuration parses values like "3s" or "250ms". Malformed values fall back
// to defaultValue.
func GetDuration(key string, defaultValue time.Duration) time.Duration {
	strValue := GetString(key, NotExists)
	if strValue == NotExists {
		return defaultValue
	}

	d, err := time.ParseDuration(strValue)
	if err != nil {
		return defaultValue
	}

	return d
}

// GetRune returns the first character of the variable, e.g. a CSV delimiter.
func GetRune(key string, defaultValue rune) rune {
	strValue := GetString(key, "")
	if strValue == "" {
		return defaultValue
	}

	r, _ := utf8.DecodeRuneInString(strValue)
	if r == utf8.RuneError {
		return defaultValue
	}

	return r
}
