package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Scylla-Station/Scylla-Station/internal/consent"
)

// PrototypeConsent is the prototype type tag consent definitions carry.
const PrototypeConsent = "consent"

type Catalogs struct {
	Consents ConsentCatalog
}

// ConsentCatalog is the read-only set of consent topics loaded at startup.
type ConsentCatalog struct {
	ByID   map[consent.TopicID]ConsentDef
	Order  []consent.TopicID
	Digest string
}

type ConsentDef struct {
	Type        string `yaml:"type" json:"-"`
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description,omitempty"`
	Category    string `yaml:"category" json:"category"`
	Icon        string `yaml:"icon" json:"icon,omitempty"`
}

func (d ConsentDef) Topic() consent.Topic {
	return consent.Topic{
		ID:          consent.TopicID(d.ID),
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Icon:        d.Icon,
	}
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs
	if err := loadConsents(filepath.Join(configDir, "consent"), &c.Consents); err != nil {
		return nil, err
	}
	return &c, nil
}

// EnumerateTopics returns topics in id order.
func (c *ConsentCatalog) EnumerateTopics() []consent.Topic {
	if c == nil {
		return nil
	}
	out := make([]consent.Topic, 0, len(c.Order))
	for _, id := range c.Order {
		out = append(out, c.ByID[id].Topic())
	}
	return out
}

func (c *ConsentCatalog) Has(id consent.TopicID) bool {
	if c == nil {
		return false
	}
	_, ok := c.ByID[id]
	return ok
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadConsents(dir string, out *ConsentCatalog) error {
	out.ByID = map[consent.TopicID]ConsentDef{}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ".yml") || strings.HasSuffix(d.Name(), ".yaml") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("consent catalog: %s: %w", dir, err)
		}
		return err
	}
	sort.Strings(files)

	for _, p := range files {
		raw, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		defs, err := ParseConsentPrototypes(raw)
		if err != nil {
			return fmt.Errorf("consent %s: %w", filepath.Base(p), err)
		}
		for _, d := range defs {
			id := consent.TopicID(d.ID)
			if _, dup := out.ByID[id]; dup {
				return fmt.Errorf("consent %s: duplicate id %q", filepath.Base(p), d.ID)
			}
			out.ByID[id] = d
		}
	}
	out.finish()
	return nil
}

// ParseConsentPrototypes decodes a prototype file: a YAML sequence of
// documents, possibly spread over several YAML streams. Entries whose type
// is not "consent" are ignored.
func ParseConsentPrototypes(raw []byte) ([]ConsentDef, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	var out []ConsentDef
	for {
		var entries []ConsentDef
		err := dec.Decode(&entries)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		for _, d := range entries {
			if d.Type != "" && d.Type != PrototypeConsent {
				continue
			}
			d.ID = strings.TrimSpace(d.ID)
			if err := d.validate(); err != nil {
				return nil, err
			}
			if strings.TrimSpace(d.Category) == "" {
				d.Category = consent.DefaultCategory
			}
			d.Type = PrototypeConsent
			out = append(out, d)
		}
	}
	return out, nil
}

func (d ConsentDef) validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("missing id")
	}
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%s: missing name", d.ID)
	}
	return nil
}

// NewConsentCatalog builds a catalog from in-memory definitions.
func NewConsentCatalog(defs []ConsentDef) (*ConsentCatalog, error) {
	c := &ConsentCatalog{ByID: map[consent.TopicID]ConsentDef{}}
	for _, d := range defs {
		if err := d.validate(); err != nil {
			return nil, fmt.Errorf("consent: %w", err)
		}
		if d.Category == "" {
			d.Category = consent.DefaultCategory
		}
		id := consent.TopicID(d.ID)
		if _, dup := c.ByID[id]; dup {
			return nil, fmt.Errorf("consent: duplicate id %q", d.ID)
		}
		c.ByID[id] = d
	}
	c.finish()
	return c, nil
}

func (c *ConsentCatalog) finish() {
	c.Order = make([]consent.TopicID, 0, len(c.ByID))
	for id := range c.ByID {
		c.Order = append(c.Order, id)
	}
	sort.Slice(c.Order, func(i, j int) bool { return c.Order[i] < c.Order[j] })

	// Digest the canonical form so formatting-only edits keep the digest.
	defs := make([]ConsentDef, 0, len(c.Order))
	for _, id := range c.Order {
		defs = append(defs, c.ByID[id])
	}
	b, _ := json.Marshal(defs)
	c.Digest = sha256Hex(b)
}
