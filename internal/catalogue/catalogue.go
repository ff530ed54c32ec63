package catalogue

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
)

// Entry describes one catalogued rhyme. Pages is the page cost of the
// rhyme inside a binder: 0.5 (half page) or 1.0 (full page).
type Entry struct {
	Code         string  `json:"code"`
	Name         string  `json:"name"`
	Pages        float64 `json:"pages"`
	Personalized bool    `json:"personalized"`
}

// Catalogue is the read-only rhyme catalogue. It is loaded once at startup
// and injected into every component that needs it.
type Catalogue struct {
	byCode map[string]Entry
	order  []string
}

//go:embed data/rhymes.json
var embeddedData []byte

// Load builds the catalogue from the JSON file at path. An empty path loads
// the embedded default data set. A missing or malformed explicit file is a
// startup failure: callers are expected to abort.
func Load(path string) (*Catalogue, error) {
	data := embeddedData
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalogue %s: %w", path, err)
		}
		data = b
	}
	return parse(data)
}

func parse(data []byte) (*Catalogue, error) {
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse catalogue: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalogue is empty")
	}
	c := &Catalogue{byCode: make(map[string]Entry, len(entries))}
	for _, e := range entries {
		if e.Code == "" {
			return nil, fmt.Errorf("catalogue entry with empty code (name %q)", e.Name)
		}
		if e.Pages != 0.5 && e.Pages != 1.0 {
			return nil, fmt.Errorf("catalogue entry %s: invalid page cost %v", e.Code, e.Pages)
		}
		if _, dup := c.byCode[e.Code]; dup {
			return nil, fmt.Errorf("catalogue entry %s: duplicate code", e.Code)
		}
		c.byCode[e.Code] = e
		c.order = append(c.order, e.Code)
	}
	sort.Strings(c.order)
	log.Info().Int("entries", len(entries)).Msg("catalogue loaded")
	return c, nil
}

// Lookup resolves a rhyme code.
func (c *Catalogue) Lookup(code string) (Entry, bool) {
	e, ok := c.byCode[code]
	return e, ok
}

// All returns every entry ordered by code.
func (c *Catalogue) All() []Entry {
	out := make([]Entry, 0, len(c.order))
	for _, code := range c.order {
		out = append(out, c.byCode[code])
	}
	return out
}

// Len returns the number of catalogued rhymes.
func (c *Catalogue) Len() int { return len(c.byCode) }
