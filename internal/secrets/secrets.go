// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets loads credentials for the source adapters, model backends
// and issue client. Each file in the secrets directory holds one secret: the
// file name is the key and the trimmed contents are the value. Known keys
// missing from the directory are taken from the environment, e.g.
// ANTHROPIC_API_KEY for anthropic-api-key.
package secrets

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Known key names.
const (
	GitHubToken     = "github-token"
	BraveAPIKey     = "brave-api-key"
	AnthropicAPIKey = "anthropic-api-key"
)

// Known lists the keys that fall back to environment variables.
var Known = []string{GitHubToken, BraveAPIKey, AnthropicAPIKey}

// EnvName returns the environment variable consulted for key.
func EnvName(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
}

// Load returns the secrets in dir merged with environment fallbacks for
// Known keys. A missing directory is not an error. Dotfiles, directories
// and empty files are skipped; unreadable files are logged and skipped.
func Load(dir string) (map[string]string, error) {
	s, err := readDir(dir)
	if err != nil {
		return nil, err
	}
	for _, key := range Known {
		if _, ok := s[key]; ok {
			continue
		}
		if v := strings.TrimSpace(os.Getenv(EnvName(key))); v != "" {
			s[key] = v
		}
	}
	return s, nil
}

func readDir(dir string) (map[string]string, error) {
	s := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "secrets: read directory %s", dir)
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			zap.L().Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}
		if v := strings.TrimSpace(string(data)); v != "" {
			s[name] = v
		}
	}
	return s, nil
}

// Names returns the loaded key names, sorted. Values are never logged.
func Names(s map[string]string) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Fill returns current if it is set, otherwise the named secret (or "").
func Fill(current string, s map[string]string, key string) string {
	if current != "" {
		return current
	}
	return s[key]
}
