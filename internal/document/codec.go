// Package document converts articles to and from markdown files with a
// front matter header.
package document

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bilgisen/redflag-cms/internal/models"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAuthor   = "Red Flag Security Team"
	DefaultCategory = models.CategoryCompanyNews
)

// ErrNoFrontMatter is returned when a document does not open with a
// `---` or `+++` delimited header.
var ErrNoFrontMatter = errors.New("document: missing front matter")

// Defaults are applied to keys a stored document omits.
type Defaults struct {
	Author   string
	Category string
	Now      func() time.Time
}

type Codec struct {
	defaults Defaults
}

func NewCodec(defaults Defaults) *Codec {
	if defaults.Author == "" {
		defaults.Author = DefaultAuthor
	}
	if defaults.Category == "" {
		defaults.Category = DefaultCategory
	}
	if defaults.Now == nil {
		defaults.Now = time.Now
	}
	return &Codec{defaults: defaults}
}

// header is the persisted key order. Changing names or order breaks
// byte-compatibility with documents already in the tree.
type header struct {
	Title       string   `yaml:"title"`
	Excerpt     string   `yaml:"excerpt"`
	Category    string   `yaml:"category"`
	PublishedAt string   `yaml:"publishedAt"`
	CoverImage  string   `yaml:"coverImage"`
	Tags        []string `yaml:"tags"`
	SEOKeywords []string `yaml:"seoKeywords"`
	Author      string   `yaml:"author"`
	Featured    bool     `yaml:"featured"`
	Draft       bool     `yaml:"draft"`
}

// rawHeader mirrors header with every key optional. Keys not listed here
// are ignored.
type rawHeader struct {
	Title       *string     `yaml:"title"`
	Excerpt     *string     `yaml:"excerpt"`
	Category    *string     `yaml:"category"`
	PublishedAt *string     `yaml:"publishedAt"`
	CoverImage  *string     `yaml:"coverImage"`
	Tags        *stringList `yaml:"tags"`
	SEOKeywords *stringList `yaml:"seoKeywords"`
	Author      *string     `yaml:"author"`
	Featured    *looseBool  `yaml:"featured"`
	Draft       *looseBool  `yaml:"draft"`
	Status      *string     `yaml:"status"`
}

// stringList accepts either a sequence or a comma separated scalar.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var out []string
		for _, part := range strings.Split(value.Value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*l = out
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := value.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a list of strings", value.Line)
	}
}

// looseBool accepts YAML booleans and quoted forms such as "true".
type looseBool bool

func (b *looseBool) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a boolean", value.Line)
	}
	var v bool
	if err := value.Decode(&v); err == nil {
		*b = looseBool(v)
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(value.Value))
	if err != nil {
		return fmt.Errorf("line %d: expected a boolean, got %q", value.Line, value.Value)
	}
	*b = looseBool(v)
	return nil
}

// Encode renders the article as a YAML front matter block followed by the
// markdown body.
func (c *Codec) Encode(a *models.Article) ([]byte, error) {
	h := header{
		Title:       a.Title,
		Excerpt:     a.Excerpt,
		Category:    a.Category,
		PublishedAt: a.PublishedAt.Format(time.RFC3339Nano),
		CoverImage:  a.CoverImage,
		Tags:        nonNil(a.Tags),
		SEOKeywords: nonNil(a.SEOKeywords),
		Author:      a.Author,
		Featured:    a.Featured,
		Draft:       a.Draft,
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}
	buf.WriteString("---\n")

	if a.Content != "" {
		buf.WriteString("\n")
		buf.WriteString(a.Content)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}

// Decode parses a stored document and fills defaults for missing keys.
// Filename and Slug are left for the caller, which knows the storage key.
func (c *Codec) Decode(data []byte) (*models.Article, error) {
	format, rawFM, body, err := split(data)
	if err != nil {
		return nil, err
	}

	var raw rawHeader
	switch format {
	case "yaml":
		if err := yaml.Unmarshal([]byte(rawFM), &raw); err != nil {
			return nil, fmt.Errorf("parse yaml front matter: %w", err)
		}
	case "toml":
		if err := decodeTOML(rawFM, &raw); err != nil {
			return nil, err
		}
	}

	a := &models.Article{
		Title:       deref(raw.Title, ""),
		Excerpt:     deref(raw.Excerpt, ""),
		Category:    deref(raw.Category, c.defaults.Category),
		CoverImage:  deref(raw.CoverImage, ""),
		Tags:        []string{},
		SEOKeywords: []string{},
		Author:      deref(raw.Author, c.defaults.Author),
		Content:     body,
	}
	if a.Category == "" {
		a.Category = c.defaults.Category
	}
	if a.Author == "" {
		a.Author = c.defaults.Author
	}
	if raw.Tags != nil {
		a.Tags = nonNil(*raw.Tags)
	}
	if raw.SEOKeywords != nil {
		a.SEOKeywords = nonNil(*raw.SEOKeywords)
	}
	if raw.Featured != nil {
		a.Featured = bool(*raw.Featured)
	}
	switch {
	case raw.Draft != nil:
		a.Draft = bool(*raw.Draft)
	case raw.Status != nil:
		a.Draft = strings.EqualFold(strings.TrimSpace(*raw.Status), models.StatusDraft)
	}

	a.PublishedAt = c.defaults.Now()
	if raw.PublishedAt != nil {
		if t, ok := ParseTime(*raw.PublishedAt); ok {
			a.PublishedAt = t
		}
	}
	return a, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts RFC 3339 timestamps, zone-less date-times and plain
// dates. Zone-less values are read as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// split separates the front matter from the body. Delimiter lines may end
// in CRLF and a leading byte order mark is tolerated. The body is sliced
// from the original text, so its line endings are kept; only surrounding
// whitespace is trimmed.
func split(data []byte) (format, fm, body string, err error) {
	text := strings.TrimPrefix(string(data), "\ufeff")

	first, rest, ok := strings.Cut(text, "\n")
	if !ok {
		return "", "", "", ErrNoFrontMatter
	}
	var delim string
	switch strings.TrimSuffix(first, "\r") {
	case "---":
		delim, format = "---", "yaml"
	case "+++":
		delim, format = "+++", "toml"
	default:
		return "", "", "", ErrNoFrontMatter
	}

	for offset := 0; offset < len(rest); {
		line, _, more := strings.Cut(rest[offset:], "\n")
		if strings.TrimSuffix(line, "\r") == delim {
			fm = strings.ReplaceAll(rest[:offset], "\r\n", "\n")
			if more {
				body = rest[offset+len(line)+1:]
			}
			return format, fm, strings.TrimSpace(body), nil
		}
		if !more {
			break
		}
		offset += len(line) + 1
	}
	return "", "", "", fmt.Errorf("%w: unterminated %s block", ErrNoFrontMatter, delim)
}

// decodeTOML routes TOML front matter through YAML so both formats share
// rawHeader and its defaults.
func decodeTOML(fm string, raw *rawHeader) error {
	var m map[string]interface{}
	if err := toml.Unmarshal([]byte(fm), &m); err != nil {
		return fmt.Errorf("parse toml front matter: %w", err)
	}
	converted, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("convert toml front matter: %w", err)
	}
	if err := yaml.Unmarshal(converted, raw); err != nil {
		return fmt.Errorf("convert toml front matter: %w", err)
	}
	return nil
}

func deref(p *string, fallback string) string {
	if p == nil {
		return fallback
	}
	return *p
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
