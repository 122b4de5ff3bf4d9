package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// FileConfig is the on-disk TOML layout. Keys missing from the file keep their defaults.
type FileConfig struct {
	Generation GenerationConfig `toml:"generation"`
}

func LoadFile(path string) (*FileConfig, error) {
	cfg := &FileConfig{Generation: DefaultGeneration()}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}

	return cfg, nil
}
