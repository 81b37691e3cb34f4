package player

import (
	"fmt"

	"github.com/google/uuid"
)

// Category is the registry's player classification.
type Category string

const (
	CategoryHerren    Category = "Herren"
	CategoryDamen     Category = "Damen"
	CategoryJunioren  Category = "Junioren"
	CategorySenioren  Category = "Senioren"
	CategoryUnbekannt Category = "unknown"
)

var allCategories = map[Category]struct{}{
	CategoryHerren:    {},
	CategoryDamen:     {},
	CategoryJunioren:  {},
	CategorySenioren:  {},
	CategoryUnbekannt: {},
}

// ParseCategory maps a registry label onto a Category. Unknown labels map to
// CategoryUnbekannt: registry data is best effort and must never block
// match processing.
func ParseCategory(raw string) Category {
	c := Category(raw)
	if _, ok := allCategories[c]; ok {
		return c
	}
	return CategoryUnbekannt
}

// AvatarFileName returns the placeholder avatar used when no portrait exists.
func (c Category) AvatarFileName() string {
	switch c {
	case CategoryHerren:
		return "dummy_avatar_mann.png"
	case CategoryDamen:
		return "dummy_avatar_frau.png"
	default:
		return "dummy_avatar_binary.jpg"
	}
}

// Track is one independently evolving rating distribution.
type Track struct {
	Mu    float64
	Sigma float64
}

// ConfidentMu is the display ranking value: mean minus three uncertainties.
// Not part of any rating update.
func (t Track) ConfidentMu() float64 {
	return t.Mu - 3*t.Sigma
}

// Player is uniquely identified by sanitized display name and carries three
// rating tracks updated selectively by match type.
type Player struct {
	ID              uuid.UUID
	Name            string
	Category        Category
	Combined        Track
	Singles         Track
	Doubles         Track
	NationalID      string
	InternationalID string
	RegistryID      int64
	AvatarFileName  string
}

const (
	DefaultMu    = 25.0
	DefaultSigma = 8.0
)

// New seeds all three tracks at the league default distribution.
func New(name string, category Category) Player {
	track := Track{Mu: DefaultMu, Sigma: DefaultSigma}
	return Player{
		Name:           name,
		Category:       category,
		Combined:       track,
		Singles:        track,
		Doubles:        track,
		AvatarFileName: category.AvatarFileName(),
	}
}

func (p Player) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("player name is required")
	}
	if _, ok := allCategories[p.Category]; !ok {
		return fmt.Errorf("invalid player category: %s", p.Category)
	}
	return nil
}
