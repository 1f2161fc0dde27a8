package config

import (
	"fmt"
	"io"
	"os"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Source is the merged file and environment configuration of one
// invocation.
type Source struct {
	k *koanf.Koanf
}

// Read merges the YAML file at path (if any) and the environment.
//
// An empty path skips the file. A non-empty path that cannot be read is an
// error: the caller asked for it explicitly. Values are not decoded until
// Unmarshal, so a malformed value only affects the section holding it.
func Read(path string) (*Source, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		// Use rawbytes provider to avoid re-opening the file
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	return &Source{k: k}, nil
}

// Unmarshal decodes the section at key ("" for the whole tree) on top of
// target, which must be a pointer to a koanf-tagged struct already holding
// its defaults. Fields absent from every source keep their default.
//
// # Example
//
//	src, err := config.Read(path)
//	if err != nil {
//	    return err
//	}
//	logCfg := logging.NewDefaultConfig()
//	if err := src.Unmarshal("log", logCfg); err != nil {
//	    return err
//	}
func (s *Source) Unmarshal(key string, target any) error {
	if err := s.k.Unmarshal(key, target); err != nil {
		if key == "" {
			return fmt.Errorf("failed to unmarshal config: %w", err)
		}
		return fmt.Errorf("failed to unmarshal %s config: %w", key, err)
	}
	return nil
}

// readConfigFile reads path after checking its size on the open descriptor.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: more than %d bytes", maxConfigFileSize)
	}
	return content, nil
}
