package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "semreq.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/semreq"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	// home and cwd override the process values in tests
	home string
	cwd  string
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// SetWorkingDir makes dir the starting point of the project config search
// instead of the current directory.
func (l *Loader) SetWorkingDir(dir string) {
	l.cwd = dir
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/semreq/config.yaml)
// 3. Project config (semreq.yaml in current or parent directories)
// 4. The explicit file, if path is not empty
//
// A relative source root is resolved against the directory of the project
// config, or the current directory when there is none.
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	base := l.workingDir()
	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		projectConfig, err := LoadFromFile(projectConfigPath)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
		config.Merge(projectConfig)
		base = filepath.Dir(projectConfigPath)
	} else {
		l.logger.Debug("No project config found")
	}

	if path != "" {
		explicit, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", path))
		config.Merge(explicit)
		base = filepath.Dir(path)
	}

	if config.Source.Root == "" {
		config.Source.Root = base
	} else if !filepath.IsAbs(config.Source.Root) {
		config.Source.Root = filepath.Join(base, config.Source.Root)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// WriteProjectConfig creates semreq.yaml with defaults in dir. It fails if
// the file exists.
func (l *Loader) WriteProjectConfig(dir string) (string, error) {
	path := filepath.Join(dir, ProjectConfigFile)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	config := DefaultConfig()
	if err := config.SaveToFile(path); err != nil {
		return "", err
	}

	l.logger.Info("Created project config", slog.String("path", path))
	return path, nil
}

func (l *Loader) workingDir() string {
	if l.cwd != "" {
		return l.cwd
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home := l.home
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return ""
		}
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for semreq.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	dir := l.workingDir()
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
