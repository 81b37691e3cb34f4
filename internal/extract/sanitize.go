package extract

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sonic "github.com/bytedance/sonic"
)

//go:embed tables/*.json
var defaultTables embed.FS

// Replacement is a single substring rewrite applied to raw team names.
// Order matters, so replacements are stored as a slice rather than a map.
type Replacement struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// AssociationRule maps a keyword found in a team name to the club the
// team belongs to. Rules are checked in order; the first keyword that
// matches wins.
type AssociationRule struct {
	Keyword     string `json:"keyword"`
	Association string `json:"association"`
}

// Sanitizer normalizes the names scraped from report pages. The source
// pages carry typos, stray whitespace and renamed players, so every name
// passes through these lookup tables before it reaches storage.
type Sanitizer struct {
	playerNames      map[string]string
	teamNames        map[string]string
	teamReplacements []Replacement
	divisionRegions  map[string]string
	associations     []AssociationRule
	byePlayers       map[string]struct{}
}

// NewSanitizer loads the embedded lookup tables. If overrideDir is not
// empty, a table file of the same name found there takes precedence over
// the embedded copy, which lets operators patch names without a rebuild.
func NewSanitizer(overrideDir string) (*Sanitizer, error) {
	s := &Sanitizer{
		playerNames:     map[string]string{},
		teamNames:       map[string]string{},
		divisionRegions: map[string]string{},
		byePlayers:      map[string]struct{}{},
	}

	if err := loadTable(overrideDir, "player_names.json", &s.playerNames); err != nil {
		return nil, err
	}
	if err := loadTable(overrideDir, "team_names.json", &s.teamNames); err != nil {
		return nil, err
	}
	if err := loadTable(overrideDir, "team_replacements.json", &s.teamReplacements); err != nil {
		return nil, err
	}
	if err := loadTable(overrideDir, "division_regions.json", &s.divisionRegions); err != nil {
		return nil, err
	}
	if err := loadTable(overrideDir, "associations.json", &s.associations); err != nil {
		return nil, err
	}

	var bye []string
	if err := loadTable(overrideDir, "bye_players.json", &bye); err != nil {
		return nil, err
	}
	for _, name := range bye {
		s.byePlayers[name] = struct{}{}
	}
	return s, nil
}

func loadTable(overrideDir, name string, target any) error {
	raw, err := readTable(overrideDir, name)
	if err != nil {
		return err
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode sanitizer table %s: %w", name, err)
	}
	return nil
}

func readTable(overrideDir, name string) ([]byte, error) {
	if overrideDir != "" {
		path := filepath.Join(overrideDir, name)
		raw, err := os.ReadFile(path)
		if err == nil {
			return raw, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read sanitizer table %s: %w", path, err)
		}
	}
	raw, err := defaultTables.ReadFile("tables/" + name)
	if err != nil {
		return nil, fmt.Errorf("read embedded sanitizer table %s: %w", name, err)
	}
	return raw, nil
}

// PlayerName rewrites a known-bad player name to its canonical form and
// returns other names unchanged.
func (s *Sanitizer) PlayerName(name string) string {
	if fixed, ok := s.playerNames[name]; ok {
		return fixed
	}
	return name
}

// TeamName applies the ordered substring replacements first and then the
// exact-match table, so "TSG Maisach e. V. 2" becomes "TSG Maisach 2".
func (s *Sanitizer) TeamName(name string) string {
	for _, r := range s.teamReplacements {
		name = strings.ReplaceAll(name, r.Old, r.New)
	}
	if fixed, ok := s.teamNames[name]; ok {
		return fixed
	}
	return name
}

// DivisionRegion normalizes region spellings such as "Süd-Ost" to "Südost".
func (s *Sanitizer) DivisionRegion(region string) string {
	if fixed, ok := s.divisionRegions[region]; ok {
		return fixed
	}
	return region
}

// Association infers the club a team belongs to from keywords in its
// name. Teams with no matching keyword are their own association.
func (s *Sanitizer) Association(teamName string) string {
	lower := strings.ToLower(teamName)
	for _, rule := range s.associations {
		if strings.Contains(lower, strings.ToLower(rule.Keyword)) {
			return rule.Association
		}
	}
	return teamName
}

// IsBye reports whether the name is one of the "Freilos" placeholder
// entries the federation uses when a fixture has no opponent.
func (s *Sanitizer) IsBye(name string) bool {
	_, ok := s.byePlayers[name]
	return ok
}
