package division

import (
	"fmt"

	"github.com/google/uuid"
)

// Name is the closed set of division labels the league has ever used.
type Name string

const (
	Landesliga   Name = "Landesliga"
	Verbandsliga Name = "Verbandsliga"
	Bezirksliga  Name = "Bezirksliga"
	Kreisliga    Name = "Kreisliga"
)

// hierarchyByName ranks divisions top (1) to bottom (4).
var hierarchyByName = map[Name]int{
	Landesliga:   1,
	Verbandsliga: 2,
	Bezirksliga:  3,
	Kreisliga:    4,
}

// ParseName converts a heading label into a Name. Unknown labels fail loudly
// instead of defaulting: an unrecognized division means the page format
// changed and silent ingestion would corrupt the ledger.
func ParseName(raw string) (Name, error) {
	name := Name(raw)
	if _, ok := hierarchyByName[name]; !ok {
		return "", fmt.Errorf("unknown division name %q", raw)
	}
	return name, nil
}

func (n Name) Hierarchy() int {
	return hierarchyByName[n]
}

// Division is one (name, hierarchy, region, season) group of teams.
// Natural key: all four fields.
type Division struct {
	ID        uuid.UUID
	Name      Name
	Hierarchy int
	Region    string
	SeasonID  uuid.UUID
}

func (d Division) Validate() error {
	if _, ok := hierarchyByName[d.Name]; !ok {
		return fmt.Errorf("invalid division name: %s", d.Name)
	}
	if d.Hierarchy != d.Name.Hierarchy() {
		return fmt.Errorf("division %s hierarchy must be %d, got %d", d.Name, d.Name.Hierarchy(), d.Hierarchy)
	}
	if d.SeasonID == uuid.Nil {
		return fmt.Errorf("division season id is required")
	}
	return nil
}
