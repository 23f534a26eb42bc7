// Package filter decides whether an extracted link denotes a document of interest.
package filter

import (
	"errors"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"

	"github.com/jonesrussell/docscraper/internal/domain"
)

// Mode tells the filter which kind of source produced the candidate.
type Mode int

const (
	ModeSearch Mode = iota
	ModeDirect
)

func (m Mode) String() string {
	if m == ModeDirect {
		return "direct"
	}
	return "search"
}

// Reason explains a decision.
type Reason string

const (
	ReasonDocumentLink Reason = "document_link"
	ReasonRelaxedMatch Reason = "relaxed_match"
	ReasonEmptyHref    Reason = "empty_href"
	ReasonUnresolvable Reason = "unresolvable"
	ReasonScriptURL    Reason = "script_url"
	ReasonNoExtension  Reason = "no_extension"
	ReasonNoKeyword    Reason = "no_keyword"
	ReasonShortTitle   Reason = "short_title"
)

// Decision is the filter's verdict on one candidate.
type Decision struct {
	Accept bool
	Reason Reason
}

var (
	// scriptMarker is matched anywhere in the href; scriptSchemes only as a prefix.
	scriptMarker  = "javascript:"
	scriptSchemes = []string{"vbscript:", "data:"}
	skipPrefixes  = []string{"#", "mailto:", "tel:"}
)

var (
	// ErrNoKeywords is returned when the filter has no required keywords.
	ErrNoKeywords = errors.New("filter: at least one required keyword is needed")
	// ErrNoExtensions is returned when the filter has no document extension markers.
	ErrNoExtensions = errors.New("filter: at least one extension marker is needed")
)

// Config configures a Filter. All terms are matched case-insensitively.
type Config struct {
	Keywords       []string
	Extensions     []string
	MinTitleLength int
	// RelaxedDirect accepts direct-source links without an extension marker when
	// the title has a hint word and the title or href has a topic term. This
	// matches broadly and admits unrelated pages that mention a topic term.
	RelaxedDirect bool
	HintWords     []string
	TopicTerms    []string
}

// Filter evaluates candidates. Evaluate has no side effects and is safe for
// concurrent use.
type Filter struct {
	extensions     []string
	minTitleLength int
	relaxedDirect  bool

	keywords *matcher
	hints    *matcher
	topics   *matcher
}

// New builds a Filter from cfg.
func New(cfg Config) (*Filter, error) {
	keywords := normalize(cfg.Keywords)
	if len(keywords) == 0 {
		return nil, ErrNoKeywords
	}
	extensions := normalize(cfg.Extensions)
	if len(extensions) == 0 {
		return nil, ErrNoExtensions
	}

	f := &Filter{
		extensions:     extensions,
		minTitleLength: max(cfg.MinTitleLength, 1),
		relaxedDirect:  cfg.RelaxedDirect,
		keywords:       newMatcher(keywords),
	}
	if cfg.RelaxedDirect {
		f.hints = newMatcher(normalize(cfg.HintWords))
		f.topics = newMatcher(append(normalize(cfg.TopicTerms), keywords...))
	}
	return f, nil
}

// Evaluate decides whether c should be accepted.
func (f *Filter) Evaluate(c domain.Candidate, mode Mode) Decision {
	href := strings.ToLower(strings.TrimSpace(c.Href))
	if href == "" {
		return reject(ReasonEmptyHref)
	}
	if strings.Contains(href, scriptMarker) {
		return reject(ReasonScriptURL)
	}
	for _, scheme := range scriptSchemes {
		if strings.HasPrefix(href, scheme) {
			return reject(ReasonScriptURL)
		}
	}
	for _, prefix := range skipPrefixes {
		if strings.HasPrefix(href, prefix) {
			return reject(ReasonUnresolvable)
		}
	}
	if c.URL == "" {
		return reject(ReasonUnresolvable)
	}

	title := strings.ToLower(strings.TrimSpace(c.Title))
	longEnough := utf8.RuneCountInString(title) >= f.minTitleLength

	if !f.hasExtension(href) {
		if mode == ModeDirect && f.relaxedDirect && longEnough &&
			f.hints.contains(title) && f.topics.contains(title, href) {
			return Decision{Accept: true, Reason: ReasonRelaxedMatch}
		}
		return reject(ReasonNoExtension)
	}
	if !f.keywords.contains(title, href) {
		return reject(ReasonNoKeyword)
	}
	if !longEnough {
		return reject(ReasonShortTitle)
	}
	return Decision{Accept: true, Reason: ReasonDocumentLink}
}

func (f *Filter) hasExtension(href string) bool {
	for _, ext := range f.extensions {
		if strings.Contains(href, ext) {
			return true
		}
	}
	return false
}

func reject(r Reason) Decision {
	return Decision{Reason: r}
}

// matcher wraps an Aho-Corasick automaton. The automaton keeps per-search
// state, so searches are serialized.
type matcher struct {
	mu sync.Mutex
	m  *ahocorasick.Matcher
}

func newMatcher(terms []string) *matcher {
	if len(terms) == 0 {
		return nil
	}
	return &matcher{m: ahocorasick.NewStringMatcher(terms)}
}

// contains reports whether any term occurs in any of texts. Texts must already be lowercase.
func (m *matcher) contains(texts ...string) bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, text := range texts {
		if len(m.m.Match([]byte(text))) > 0 {
			return true
		}
	}
	return false
}

func normalize(terms []string) []string {
	out := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
