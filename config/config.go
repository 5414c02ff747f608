// Package config provides configuration loading and management for semreq.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/c360studio/semreq/requirement"
)

// Config represents the complete semreq configuration
type Config struct {
	Project    ProjectConfig     `yaml:"project"`
	Identifier IdentifierConfig  `yaml:"identifier"`
	Attributes []AttributeConfig `yaml:"attributes" validate:"dive"`
	Relations  []RelationConfig  `yaml:"relations" validate:"dive"`
	Listing    ListingConfig     `yaml:"listing"`
	Source     SourceConfig      `yaml:"source"`
	Output     OutputConfig      `yaml:"output"`
	Cache      CacheConfig       `yaml:"cache"`
	NATS       NATSConfig        `yaml:"nats"`
	Server     ServerConfig      `yaml:"server"`
	Watch      WatchConfig       `yaml:"watch"`
}

// ProjectConfig names the documentation project
type ProjectConfig struct {
	Name string `yaml:"name"`
}

// IdentifierConfig configures identity allocation
type IdentifierConfig struct {
	// Prefix is the default {prefix} of allocated identities (default: REQ)
	Prefix string `yaml:"prefix" validate:"required"`
	// Pattern formats allocated identities (default: {prefix}-{docid}-{n:03d})
	Pattern string `yaml:"pattern" validate:"required,idpattern"`
	// Scope partitions counters: document, prefix or global
	Scope string `yaml:"scope" validate:"oneof=document prefix global"`
	// Display renders display names, e.g. "{id} {title}"
	Display string `yaml:"display" validate:"required"`
}

// AttributeConfig declares a requirement attribute
type AttributeConfig struct {
	Name string `yaml:"name" validate:"required"`
	// Type is text or reference (default: text)
	Type string `yaml:"type,omitempty" validate:"omitempty,oneof=text reference"`
	// Validate is a validator tag checked against every value
	Validate string `yaml:"validate,omitempty"`
}

// RelationConfig declares a reverse relation
type RelationConfig struct {
	Name      string `yaml:"name" validate:"required"`
	Attribute string `yaml:"attribute" validate:"required"`
}

// ListingConfig configures default listing columns
type ListingConfig struct {
	Fields            []string `yaml:"fields" validate:"min=1"`
	Headers           []string `yaml:"headers"`
	Widths            []int    `yaml:"widths" validate:"dive,gt=0"`
	RequirementWidths []int    `yaml:"requirement_widths" validate:"dive,gt=0"`
}

// SourceConfig configures document discovery
type SourceConfig struct {
	// Root is the documentation source directory (default: current directory)
	Root string `yaml:"root"`
	// Include are doublestar globs relative to Root
	Include []string `yaml:"include" validate:"min=1"`
	// Exclude are doublestar globs relative to Root
	Exclude []string `yaml:"exclude"`
}

// OutputConfig configures rendering
type OutputConfig struct {
	Dir     string   `yaml:"dir" validate:"required"`
	Formats []string `yaml:"formats" validate:"min=1,dive,oneof=html latex markdown"`
}

// CacheConfig configures the parse cache
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	// Dir is the Badger directory (empty = in-memory)
	Dir string `yaml:"dir"`
}

// NATSConfig configures requirement publishing
type NATSConfig struct {
	// URL is the NATS server URL (empty = publishing disabled)
	URL string `yaml:"url" validate:"omitempty,url"`
	// Subject is the subject entities are published on
	Subject string `yaml:"subject" validate:"required_with=URL"`
	// Timeout bounds connecting and flushing
	Timeout time.Duration `yaml:"timeout"`
}

// ServerConfig configures the preview server
type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// WatchConfig configures incremental rebuilds
type WatchConfig struct {
	// Debounce is the delay before a changed file is rebuilt
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// DefaultSubject is the NATS subject requirement entities are published on.
const DefaultSubject = "graph.ingest.entity"

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	s := requirement.DefaultSettings()
	cfg := &Config{
		Identifier: IdentifierConfig{
			Prefix:  s.Prefix,
			Pattern: s.Pattern.String(),
			Scope:   string(s.Scope),
			Display: s.Display,
		},
		Listing: ListingConfig{
			Fields:            s.Listing.Fields,
			Headers:           s.Listing.Headers,
			Widths:            s.Listing.Widths,
			RequirementWidths: s.RequirementWidths,
		},
		Source: SourceConfig{
			Root:    "",
			Include: []string{"**/*.rst", "**/*.md"},
			Exclude: []string{"_build/**", "**/node_modules/**", "**/.*/**"},
		},
		Output: OutputConfig{
			Dir:     "_build",
			Formats: []string{"html"},
		},
		Cache: CacheConfig{
			Enabled: false,
		},
		NATS: NATSConfig{
			Subject: DefaultSubject,
			Timeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8000",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
	}
	for _, a := range s.Attributes {
		cfg.Attributes = append(cfg.Attributes, AttributeConfig{Name: a.Name, Type: string(a.Type), Validate: a.Validate})
	}
	for _, r := range s.Relations {
		cfg.Relations = append(cfg.Relations, RelationConfig{Name: r.Name, Attribute: r.Attribute})
	}
	return cfg
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("idpattern", func(fl validator.FieldLevel) bool {
		_, err := requirement.ParsePattern(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			errs := make([]error, 0, len(verrs))
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%s: failed %q validation", fe.Namespace(), fe.Tag()))
			}
			return errors.Join(errs...)
		}
		return err
	}
	settings, err := c.RequirementSettings()
	if err != nil {
		return err
	}
	return settings.Validate()
}

// RequirementSettings converts the configuration into environment settings.
func (c *Config) RequirementSettings() (requirement.Settings, error) {
	pattern, err := requirement.ParsePattern(c.Identifier.Pattern)
	if err != nil {
		return requirement.Settings{}, fmt.Errorf("identifier.pattern: %w", err)
	}
	s := requirement.Settings{
		Prefix:  c.Identifier.Prefix,
		Pattern: pattern,
		Scope:   requirement.Scope(c.Identifier.Scope),
		Display: c.Identifier.Display,
		Listing: requirement.ListingDefaults{
			Fields:  c.Listing.Fields,
			Headers: c.Listing.Headers,
			Widths:  c.Listing.Widths,
		},
		RequirementWidths: c.Listing.RequirementWidths,
	}
	if s.Scope == "" {
		s.Scope = requirement.ScopeDocument
	}
	for _, a := range c.Attributes {
		typ := requirement.AttributeType(a.Type)
		if typ == "" {
			typ = requirement.AttributeText
		}
		s.Attributes = append(s.Attributes, requirement.AttributeDef{Name: a.Name, Type: typ, Validate: a.Validate})
	}
	for _, r := range c.Relations {
		s.Relations = append(s.Relations, requirement.Relation{Name: r.Name, Attribute: r.Attribute})
	}
	return s, nil
}

// LoadFromFile loads one configuration layer from a YAML file. Fields the
// file does not set stay zero; Merge the result over DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Project.Name != "" {
		c.Project.Name = other.Project.Name
	}

	// Identifier
	if other.Identifier.Prefix != "" {
		c.Identifier.Prefix = other.Identifier.Prefix
	}
	if other.Identifier.Pattern != "" {
		c.Identifier.Pattern = other.Identifier.Pattern
	}
	if other.Identifier.Scope != "" {
		c.Identifier.Scope = other.Identifier.Scope
	}
	if other.Identifier.Display != "" {
		c.Identifier.Display = other.Identifier.Display
	}

	// Attributes and relations replace the whole set
	if len(other.Attributes) > 0 {
		c.Attributes = other.Attributes
	}
	if len(other.Relations) > 0 {
		c.Relations = other.Relations
	}

	// Listing
	if len(other.Listing.Fields) > 0 {
		c.Listing.Fields = other.Listing.Fields
		c.Listing.Headers = other.Listing.Headers
		c.Listing.Widths = other.Listing.Widths
	}
	if len(other.Listing.RequirementWidths) > 0 {
		c.Listing.RequirementWidths = other.Listing.RequirementWidths
	}

	// Source
	if other.Source.Root != "" {
		c.Source.Root = other.Source.Root
	}
	if len(other.Source.Include) > 0 {
		c.Source.Include = other.Source.Include
	}
	if len(other.Source.Exclude) > 0 {
		c.Source.Exclude = other.Source.Exclude
	}

	// Output
	if other.Output.Dir != "" {
		c.Output.Dir = other.Output.Dir
	}
	if len(other.Output.Formats) > 0 {
		c.Output.Formats = other.Output.Formats
	}

	// Cache
	if other.Cache.Enabled {
		c.Cache.Enabled = true
	}
	if other.Cache.Dir != "" {
		c.Cache.Dir = other.Cache.Dir
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}
	if other.NATS.Timeout != 0 {
		c.NATS.Timeout = other.NATS.Timeout
	}

	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
}
