// Package geography resolves administrative taxonomy from free-text addresses
// using static lookup tables. It performs no I/O.
package geography

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/samirrijal/placekeeper/internal/core/domain"
)

type cityEntry struct {
	city  City
	terms []string
}

type sectorEntry struct {
	name string
	term string
}

// Dictionary is an immutable set of lookup tables. It is safe for concurrent use.
type Dictionary struct {
	cities      []cityEntry
	sectors     []sectorEntry
	departments map[string]string
}

// New builds a dictionary from explicit tables. Table order decides which match wins.
func New(cities []City, sectors []string, departments map[string]string) *Dictionary {
	d := &Dictionary{departments: make(map[string]string, len(departments))}
	for _, c := range cities {
		e := cityEntry{city: c, terms: []string{Fold(c.Name)}}
		for _, a := range c.Aliases {
			e.terms = append(e.terms, Fold(a))
		}
		d.cities = append(d.cities, e)
	}
	for _, s := range sectors {
		d.sectors = append(d.sectors, sectorEntry{name: s, term: Fold(s)})
	}
	for k, v := range departments {
		d.departments[Fold(k)] = v
	}
	return d
}

// Default returns the built-in Colombian dictionary.
func Default() *Dictionary {
	return New(defaultCities, defaultSectors, defaultDepartments)
}

// Match classifies an address. City and department come from the first city entry
// found in the address; sector from the first sector keyword found. Fields without
// a match are left empty.
func (d *Dictionary) Match(address string) domain.Geography {
	folded := " " + Fold(address) + " "
	var g domain.Geography
	if c, ok := d.matchCity(folded); ok {
		g.City = c.Name
		g.Department = c.Department
	}
	g.Sector = d.matchSector(folded)
	return g
}

// MatchSector returns the first sector keyword contained in text, or "".
func (d *Dictionary) MatchSector(text string) string {
	return d.matchSector(" " + Fold(text) + " ")
}

// DepartmentOf returns the department of a known city.
func (d *Dictionary) DepartmentOf(city string) (string, bool) {
	folded := Fold(city)
	for _, e := range d.cities {
		for _, t := range e.terms {
			if t == folded {
				return e.city.Department, true
			}
		}
	}
	return "", false
}

// NormalizeDepartment maps a provider state or region name to the canonical
// department. Unknown names are returned trimmed.
func (d *Dictionary) NormalizeDepartment(state string) string {
	folded := Fold(state)
	for _, prefix := range []string{"departamento del ", "departamento de ", "departamento "} {
		folded = strings.TrimPrefix(folded, prefix)
	}
	if dep, ok := d.departments[folded]; ok {
		return dep
	}
	return strings.TrimSpace(state)
}

func (d *Dictionary) matchCity(padded string) (City, bool) {
	for _, e := range d.cities {
		for _, t := range e.terms {
			if containsWord(padded, t) {
				return e.city, true
			}
		}
	}
	return City{}, false
}

func (d *Dictionary) matchSector(padded string) string {
	for _, s := range d.sectors {
		if containsWord(padded, s.term) {
			return s.name
		}
	}
	return ""
}

// containsWord reports whether term occurs in padded on word boundaries.
// padded must be a folded string with a leading and trailing space.
func containsWord(padded, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(padded, " "+term+" ")
}

// Fold lowercases s, strips diacritics and collapses every run of non letters or
// digits into a single space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}
