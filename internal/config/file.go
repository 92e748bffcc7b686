package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// errNoConfigFile is returned when an explicitly requested config file is missing.
var errNoConfigFile = errors.New("config file not found")

// fileValues holds a TOML config file flattened to "section.key" strings, so it can slot
// into the same string-based precedence chain as flags and environment variables.
type fileValues map[string]string

// loadTOMLFile reads and flattens a TOML file. Example:
//
//	[library]
//	path = "~/Calibre Library"
//
//	[browse]
//	page_size = 100
//	session_ttl = "720h"
func loadTOMLFile(path string) (fileValues, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errNoConfigFile, path)
		}
		return nil, err
	}

	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	values := fileValues{}
	values.flatten("", tree)
	return values, nil
}

func (f fileValues) flatten(prefix string, tree map[string]any) {
	for key, raw := range tree {
		if prefix != "" {
			key = prefix + "." + key
		}
		switch v := raw.(type) {
		case map[string]any:
			f.flatten(key, v)
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			f[key] = strings.Join(parts, ",")
		default:
			f[key] = fmt.Sprint(v)
		}
	}
}

func (f fileValues) get(key, fallback string) string {
	if v, ok := f[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (f fileValues) getInt(key string, fallback int) int {
	n, err := strconv.Atoi(f.get(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func (f fileValues) getBool(key string, fallback bool) bool {
	v := f.get(key, "")
	if v == "" {
		return fallback
	}
	return parseBool(v)
}
