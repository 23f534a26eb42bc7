package sources

import (
	"errors"
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// ErrNoSources indicates a sources file defines no sources.
var ErrNoSources = errors.New("no sources found in configuration")

// File is the configuration form of the source list, as found under the
// "sources" key of config.yaml or in a standalone sources file.
type File struct {
	Search []SearchSpec `json:"search_sources" mapstructure:"search" yaml:"search"`
	Direct []DirectSpec `json:"direct_sources" mapstructure:"direct" yaml:"direct"`
}

// SearchSpec configures a SearchSource. A missing enabled flag means enabled.
type SearchSpec struct {
	Name      string   `json:"name"             mapstructure:"name"      yaml:"name"`
	BaseURL   string   `json:"base_url"         mapstructure:"base_url"  yaml:"base_url"`
	Templates []string `json:"search_templates" mapstructure:"templates" yaml:"templates"`
	Enabled   *bool    `json:"enabled"          mapstructure:"enabled"   yaml:"enabled,omitempty"`
}

// DirectSpec configures a DirectSource. A missing enabled flag means enabled.
type DirectSpec struct {
	Name    string `json:"name"    mapstructure:"name"    yaml:"name"`
	URL     string `json:"url"     mapstructure:"url"     yaml:"url"`
	Enabled *bool  `json:"enabled" mapstructure:"enabled" yaml:"enabled,omitempty"`
}

// Registry validates the file and builds a Registry from it.
func (f File) Registry() (*Registry, error) {
	search := make([]SearchSource, 0, len(f.Search))
	for _, s := range f.Search {
		search = append(search, SearchSource{
			Name:      s.Name,
			BaseURL:   s.BaseURL,
			Templates: s.Templates,
			Enabled:   enabled(s.Enabled),
		})
	}

	direct := make([]DirectSource, 0, len(f.Direct))
	for _, d := range f.Direct {
		direct = append(direct, DirectSource{Name: d.Name, URL: d.URL, Enabled: enabled(d.Enabled)})
	}

	return NewRegistry(search, direct)
}

// Len returns the number of configured sources.
func (f File) Len() int {
	return len(f.Search) + len(f.Direct)
}

// Decode converts a raw settings map (as returned by viper) into a File.
func Decode(raw any) (File, error) {
	var f File
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &f,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToSliceHookFunc(","),
	})
	if err != nil {
		return File{}, fmt.Errorf("create decoder: %w", err)
	}
	if decodeErr := decoder.Decode(raw); decodeErr != nil {
		return File{}, fmt.Errorf("decode sources: %w", decodeErr)
	}
	return f, nil
}

// LoadFile reads a standalone YAML sources file with top-level "sources".
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read sources file: %w", err)
	}

	var doc struct {
		Sources map[string]any `yaml:"sources"`
	}
	if unmarshalErr := yaml.Unmarshal(data, &doc); unmarshalErr != nil {
		return File{}, fmt.Errorf("parse sources file: %w", unmarshalErr)
	}

	f, err := Decode(doc.Sources)
	if err != nil {
		return File{}, err
	}
	if f.Len() == 0 {
		return File{}, ErrNoSources
	}
	return f, nil
}

// WriteFile writes f as YAML under a top-level "sources" key.
func WriteFile(path string, f File) error {
	data, err := yaml.Marshal(struct {
		Sources File `yaml:"sources"`
	}{Sources: f})
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	if writeErr := os.WriteFile(path, data, 0o644); writeErr != nil {
		return fmt.Errorf("write sources file: %w", writeErr)
	}
	return nil
}

func enabled(b *bool) bool {
	return b == nil || *b
}

func boolPtr(b bool) *bool {
	return &b
}
