// Package i18n loads the embedded message catalogs and renders consent
// level names and colours.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
)

const BaseLocale = "en-US"

//go:embed locales/*.yaml
var embeddedLocales embed.FS

type localeFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle holds every loaded locale registered in one x/text catalog.
type Bundle struct {
	builder *catalog.Builder
	locales map[string]map[string]string
	tags    []language.Tag
	matcher language.Matcher
}

func LoadEmbedded() (*Bundle, error) {
	return LoadFromFS(embeddedLocales)
}

func LoadFromFS(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locales: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no locale files found")
	}
	sort.Strings(paths)

	b := &Bundle{
		builder: catalog.NewBuilder(catalog.Fallback(language.MustParse(BaseLocale))),
		locales: map[string]map[string]string{},
	}
	for _, p := range paths {
		raw, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		var f localeFile
		if err := yaml.Unmarshal(raw, &f); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		if err := b.add(p, f); err != nil {
			return nil, err
		}
	}
	if _, ok := b.locales[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s is not defined", BaseLocale)
	}
	// The matcher falls back to its first tag.
	for i, tag := range b.tags {
		if tag.String() == BaseLocale {
			b.tags[0], b.tags[i] = b.tags[i], b.tags[0]
			break
		}
	}
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

func (b *Bundle) add(path string, f localeFile) error {
	locale := strings.TrimSpace(f.Locale)
	if locale == "" {
		return fmt.Errorf("%s: locale is required", path)
	}
	if _, dup := b.locales[locale]; dup {
		return fmt.Errorf("%s: locale %q defined twice", path, locale)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	msgs := make(map[string]string, len(f.Messages))
	for k, v := range f.Messages {
		k = strings.TrimSpace(k)
		if k == "" {
			return fmt.Errorf("%s: blank message key", path)
		}
		if err := b.builder.SetString(tag, k, v); err != nil {
			return fmt.Errorf("%s: %s: %w", path, k, err)
		}
		msgs[k] = v
	}
	b.locales[locale] = msgs
	b.tags = append(b.tags, tag)
	return nil
}

func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.locales))
	for l := range b.locales {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// Printer returns a translator for the best match of locale.
func (b *Bundle) Printer(locale string) *Printer {
	tag := language.MustParse(BaseLocale)
	if t, err := language.Parse(locale); err == nil {
		_, idx, _ := b.matcher.Match(t)
		tag = b.tags[idx]
	}
	return &Printer{p: message.NewPrinter(tag, message.Catalog(b.builder)), tag: tag}
}

type Printer struct {
	p   *message.Printer
	tag language.Tag
}

func (p *Printer) Locale() string { return p.tag.String() }

// Text renders key; unknown keys come back unchanged.
func (p *Printer) Text(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

// LevelKey is the message key naming a consent level.
func LevelKey(l consent.Level) string {
	switch l {
	case consent.Ask:
		return "consent-level-ask"
	case consent.HardDeny:
		return "consent-level-hard-deny"
	case consent.Deny:
		return "consent-level-deny"
	case consent.SoftDeny:
		return "consent-level-soft-deny"
	case consent.Neutral:
		return "consent-level-neutral"
	case consent.SoftAllow:
		return "consent-level-soft-allow"
	case consent.Allow:
		return "consent-level-allow"
	case consent.EnthusiasticAllow:
		return "consent-level-enthusiastic-allow"
	}
	return ""
}

func (p *Printer) LevelText(l consent.Level) string {
	key := LevelKey(l)
	if key == "" {
		return l.String()
	}
	return p.Text(key)
}

// LevelColor is the hex colour a level is drawn with.
func LevelColor(l consent.Level) string {
	switch l {
	case consent.HardDeny:
		return "#6B0000"
	case consent.Deny:
		return "#A00000"
	case consent.SoftDeny:
		return "#D06060"
	case consent.Neutral:
		return "#505058"
	case consent.SoftAllow:
		return "#60B060"
	case consent.Allow:
		return "#008000"
	case consent.EnthusiasticAllow:
		return "#00A000"
	default:
		return "#303038"
	}
}
