// Package sources defines the configured scrape targets: search sources queried
// once per keyword through URL templates, and direct sources crawled once.
package sources

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// KeywordPlaceholder is substituted with the query-escaped keyword in search templates.
const KeywordPlaceholder = "{keyword}"

// Kind identifies a source variant.
type Kind string

const (
	KindSearch Kind = "search"
	KindDirect Kind = "direct"
)

var (
	// ErrMissingRequiredField indicates a required source field is empty.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrInvalidURL indicates a source URL is not an absolute HTTP(S) URL.
	ErrInvalidURL = errors.New("must be a valid HTTP(S) URL")
	// ErrDuplicateName indicates two sources share a name.
	ErrDuplicateName = errors.New("duplicate source name")
	// ErrMissingPlaceholder indicates a search template has no keyword placeholder.
	ErrMissingPlaceholder = errors.New("template has no " + KeywordPlaceholder + " placeholder")
)

// Source is implemented by SearchSource and DirectSource.
type Source interface {
	SourceName() string
	Kind() Kind
	IsEnabled() bool
}

// SearchSource is a site queried once per keyword via URL templates.
type SearchSource struct {
	Name      string
	BaseURL   string
	Templates []string
	Enabled   bool
}

func (s SearchSource) SourceName() string { return s.Name }
func (s SearchSource) Kind() Kind         { return KindSearch }
func (s SearchSource) IsEnabled() bool    { return s.Enabled }

// SearchURL builds the page URL for one template and keyword. The keyword is
// query-escaped and the result is the plain concatenation of base URL and template.
func (s SearchSource) SearchURL(template, keyword string) string {
	return s.BaseURL + strings.ReplaceAll(template, KeywordPlaceholder, url.QueryEscape(keyword))
}

// DirectSource is a single fixed page crawled for embedded document links.
type DirectSource struct {
	Name    string
	URL     string
	Enabled bool
}

func (d DirectSource) SourceName() string { return d.Name }
func (d DirectSource) Kind() Kind         { return KindDirect }
func (d DirectSource) IsEnabled() bool    { return d.Enabled }

// Registry is the validated, immutable set of sources for a run.
type Registry struct {
	search []SearchSource
	direct []DirectSource
}

// NewRegistry validates the given sources and returns a registry.
// Every problem found is reported, joined into one error.
func NewRegistry(search []SearchSource, direct []DirectSource) (*Registry, error) {
	var errs []error
	seen := make(map[string]struct{}, len(search)+len(direct))

	checkName := func(kind Kind, i int, name string) {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, fmt.Errorf("%s source %d: %w: name", kind, i, ErrMissingRequiredField))
			return
		}
		if _, dup := seen[name]; dup {
			errs = append(errs, fmt.Errorf("%s source %q: %w", kind, name, ErrDuplicateName))
		}
		seen[name] = struct{}{}
	}

	for i, s := range search {
		checkName(KindSearch, i, s.Name)
		if err := validateURL(s.BaseURL); err != nil {
			errs = append(errs, fmt.Errorf("search source %q: base_url: %w", s.Name, err))
		}
		if len(s.Templates) == 0 {
			errs = append(errs, fmt.Errorf("search source %q: %w: templates", s.Name, ErrMissingRequiredField))
		}
		for _, tpl := range s.Templates {
			if !strings.Contains(tpl, KeywordPlaceholder) {
				errs = append(errs, fmt.Errorf("search source %q: template %q: %w", s.Name, tpl, ErrMissingPlaceholder))
			}
		}
	}

	for i, d := range direct {
		checkName(KindDirect, i, d.Name)
		if err := validateURL(d.URL); err != nil {
			errs = append(errs, fmt.Errorf("direct source %q: url: %w", d.Name, err))
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return &Registry{
		search: append([]SearchSource(nil), search...),
		direct: append([]DirectSource(nil), direct...),
	}, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return ErrMissingRequiredField
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrInvalidURL
	}
	return nil
}

// Search returns the enabled search sources in configured order.
func (r *Registry) Search() []SearchSource {
	out := make([]SearchSource, 0, len(r.search))
	for _, s := range r.search {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Direct returns the enabled direct sources in configured order.
func (r *Registry) Direct() []DirectSource {
	out := make([]DirectSource, 0, len(r.direct))
	for _, d := range r.direct {
		if d.Enabled {
			out = append(out, d)
		}
	}
	return out
}

// All returns every source, enabled or not, search sources first.
func (r *Registry) All() []Source {
	out := make([]Source, 0, len(r.search)+len(r.direct))
	for _, s := range r.search {
		out = append(out, s)
	}
	for _, d := range r.direct {
		out = append(out, d)
	}
	return out
}

// Spec returns the registry in its configuration form.
func (r *Registry) Spec() File {
	f := File{
		Search: make([]SearchSpec, 0, len(r.search)),
		Direct: make([]DirectSpec, 0, len(r.direct)),
	}
	for _, s := range r.search {
		f.Search = append(f.Search, SearchSpec{
			Name: s.Name, BaseURL: s.BaseURL, Templates: s.Templates, Enabled: boolPtr(s.Enabled),
		})
	}
	for _, d := range r.direct {
		f.Direct = append(f.Direct, DirectSpec{Name: d.Name, URL: d.URL, Enabled: boolPtr(d.Enabled)})
	}
	return f
}
