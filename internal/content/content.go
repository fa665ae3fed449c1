// Package content holds the static reply texts and the garment catalog
// used by the laundry bot. A default pack is embedded; operators may
// override any field with a TOML file.
package content

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

//go:embed default.toml
var defaultPack []byte

// Garment is one entry of the shuffle catalog.
type Garment struct {
	Name  string `toml:"name"`
	Grams int    `toml:"grams"`
}

// Pack is the full set of static replies.
type Pack struct {
	Menu         string    `toml:"menu"`
	Tip          string    `toml:"tip"`
	MachineInfo  string    `toml:"machine_info"`
	Hours        string    `toml:"hours"`
	TrashDays    string    `toml:"trash_days"`
	LoadCapGrams int       `toml:"load_cap_grams"`
	Catalog      []Garment `toml:"catalog"`
}

var ErrEmptyCatalog = errors.New("garment catalog is empty")

// Default returns the embedded pack.
func Default() Pack {
	p, err := decode(defaultPack)
	if err != nil {
		panic(fmt.Sprintf("content: embedded pack is invalid: %v", err))
	}
	if err := p.Validate(); err != nil {
		panic(fmt.Sprintf("content: embedded pack is invalid: %v", err))
	}
	return p
}

// Load returns the embedded pack, overlaid with the TOML file at path when
// path is non-empty.
func Load(path string) (Pack, error) {
	base := Default()
	path = strings.TrimSpace(path)
	if path == "" {
		return base, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Pack{}, fmt.Errorf("read content pack: %w", err)
	}
	override, err := decode(raw)
	if err != nil {
		return Pack{}, fmt.Errorf("content pack %s: %w", path, err)
	}
	merged := base.overlay(override)
	if err := merged.Validate(); err != nil {
		return Pack{}, fmt.Errorf("content pack %s: %w", path, err)
	}
	return merged, nil
}

func decode(raw []byte) (Pack, error) {
	var p Pack
	if err := toml.Unmarshal(raw, &p); err != nil {
		return Pack{}, fmt.Errorf("decode toml: %w", err)
	}
	p.Menu = strings.TrimSpace(p.Menu)
	p.Tip = strings.TrimSpace(p.Tip)
	p.MachineInfo = strings.TrimSpace(p.MachineInfo)
	p.Hours = strings.TrimSpace(p.Hours)
	p.TrashDays = strings.TrimSpace(p.TrashDays)
	return p, nil
}

// overlay replaces every field that o sets.
func (p Pack) overlay(o Pack) Pack {
	for _, f := range []struct {
		dst *string
		src string
	}{
		{&p.Menu, o.Menu},
		{&p.Tip, o.Tip},
		{&p.MachineInfo, o.MachineInfo},
		{&p.Hours, o.Hours},
		{&p.TrashDays, o.TrashDays},
	} {
		if f.src != "" {
			*f.dst = f.src
		}
	}
	if o.LoadCapGrams != 0 {
		p.LoadCapGrams = o.LoadCapGrams
	}
	if o.Catalog != nil {
		p.Catalog = append([]Garment(nil), o.Catalog...)
	}
	return p
}

// Validate checks the catalog can drive a shuffle.
func (p Pack) Validate() error {
	if len(p.Catalog) == 0 {
		return ErrEmptyCatalog
	}
	if p.LoadCapGrams <= 0 {
		return fmt.Errorf("load_cap_grams must be positive, got %d", p.LoadCapGrams)
	}
	for _, g := range p.Catalog {
		if strings.TrimSpace(g.Name) == "" {
			return errors.New("catalog entry without name")
		}
		if g.Grams <= 0 {
			return fmt.Errorf("catalog entry %q must weigh more than zero", g.Name)
		}
	}
	return nil
}
