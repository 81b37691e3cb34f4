package extract

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"

	"github.com/riskibarqy/foosball-ledger/internal/domain/division"
	"github.com/riskibarqy/foosball-ledger/internal/domain/match"
	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
)

// ErrElementNotFound marks a report page that is missing a required
// markup element. The affected document is skipped; sibling documents
// are unaffected.
var ErrElementNotFound = crerr.New("element not found")

var (
	dateRe     = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)
	headingRe  = regexp.MustCompile(`^(.*?)\s*Spieltag`)
	divisionRe = regexp.MustCompile(
		`\b(?P<division>Landesliga|Verbandsliga|Bezirksliga|Kreisliga)` +
			`\b(?:\s+(?P<region>Gruppe\s[A-D]|(?:Bayern|Nord|Süd|West|Ost)` +
			`(?:[-]?(?:[A-Za-z]+))?(?:\s+[12])?))?`)
	matchDayRe = regexp.MustCompile(`Spieltag\s*(\d+)`)
)

const dateLayout = "02.01.2006"

// Extractor turns a fetched report page into a typed Document. It is
// stateless between pages; the sanitizer tables are shared.
type Extractor struct {
	logger    *logging.Logger
	sanitizer *Sanitizer
}

func NewExtractor(logger *logging.Logger, sanitizer *Sanitizer) *Extractor {
	return &Extractor{logger: logger, sanitizer: sanitizer}
}

// Date reads the publication date from the page's <small> tag. Every
// page category carries one.
func (e *Extractor) Date(doc *goquery.Document) (time.Time, error) {
	small := doc.Find("small").First()
	if small.Length() > 0 {
		if raw := dateRe.FindString(strings.TrimSpace(small.Text())); raw != "" {
			return time.Parse(dateLayout, raw)
		}
	}
	return time.Time{}, fmt.Errorf("%w: no date in <small> tag", ErrElementNotFound)
}

// SeasonYear reads the season year from the page's <small> date.
func (e *Extractor) SeasonYear(doc *goquery.Document) (int, error) {
	date, err := e.Date(doc)
	if err != nil {
		return 0, err
	}
	return date.Year(), nil
}

// Links collects all hyperlinks of the given page category, deduplicated
// and sorted so discovery order is deterministic.
func (e *Extractor) Links(baseURL, category string, doc *goquery.Document) []string {
	prefix := fmt.Sprintf("%s/%s/anzeigen/", baseURL, category)
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if strings.Contains(href, prefix) {
			seen[href] = struct{}{}
		}
	})
	urls := make([]string, 0, len(seen))
	for u := range seen {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}

// Parse extracts the match-day metadata and every fixture row from one
// leaf report page.
func (e *Extractor) Parse(ctx context.Context, pageID int, doc *goquery.Document) (*Document, error) {
	season, err := e.SeasonYear(doc)
	if err != nil {
		return nil, err
	}
	meta, err := e.extractMetadata(doc)
	if err != nil {
		return nil, err
	}

	home, err := e.rosterNames(doc, true)
	if err != nil {
		return nil, err
	}
	away, err := e.rosterNames(doc, false)
	if err != nil {
		return nil, err
	}
	playerMap := e.playerMap(ctx, pageID, append(home, away...))
	for abbr, name := range playerMap {
		e.logger.DebugContext(ctx, "roster entry", "abbr", abbr, "player", name)
	}

	matches, err := e.extractMatches(doc, playerMap)
	if err != nil {
		return nil, err
	}
	e.logger.InfoContext(ctx, "matches extracted", "page_id", pageID, "count", len(matches))

	d := &Document{
		PageID:  pageID,
		Season:  season,
		Meta:    *meta,
		Matches: matches,
	}
	if err := d.Validate(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (e *Extractor) extractMetadata(doc *goquery.Document) (*Metadata, error) {
	heading := doc.Find("h1").First()
	if heading.Length() == 0 {
		return nil, fmt.Errorf("%w: no <h1> tag", ErrElementNotFound)
	}
	text := strings.TrimSpace(heading.Text())

	name, region, err := parseDivision(text)
	if err != nil {
		return nil, err
	}
	region = e.sanitizer.DivisionRegion(region)

	divName, err := division.ParseName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrElementNotFound, err)
	}

	dayMatch := matchDayRe.FindStringSubmatch(text)
	if dayMatch == nil {
		return nil, fmt.Errorf("%w: no matchday in <h1> tag", ErrElementNotFound)
	}
	matchDay, err := strconv.Atoi(dayMatch[1])
	if err != nil {
		return nil, fmt.Errorf("%w: matchday %q", ErrElementNotFound, dayMatch[1])
	}

	rawDate := dateRe.FindString(text)
	if rawDate == "" {
		return nil, fmt.Errorf("%w: no matchdate in <h1> tag", ErrElementNotFound)
	}
	matchDate, err := time.Parse(dateLayout, rawDate)
	if err != nil {
		return nil, fmt.Errorf("%w: matchdate %q", ErrElementNotFound, rawDate)
	}

	h2 := doc.Find("h2")
	if h2.Length() < 3 {
		return nil, fmt.Errorf("%w: no team names in <h2> tags", ErrElementNotFound)
	}
	homeTeam := e.sanitizer.TeamName(strings.TrimSpace(h2.Eq(0).Text()))
	awayTeam := e.sanitizer.TeamName(strings.TrimSpace(h2.Eq(2).Text()))

	return &Metadata{
		DivisionName:      string(divName),
		DivisionRegion:    region,
		DivisionHierarchy: divName.Hierarchy(),
		MatchDayNr:        matchDay,
		MatchDate:         matchDate,
		HomeTeam:          homeTeam,
		AwayTeam:          awayTeam,
		HomeAssociation:   e.sanitizer.Association(homeTeam),
		AwayAssociation:   e.sanitizer.Association(awayTeam),
	}, nil
}

// parseDivision reads the division name and region out of the heading
// prefix before "Spieltag". The 2016 Bezirksliga season published no
// region at all; its only region is "Bayern".
func parseDivision(heading string) (name, region string, err error) {
	prefix := headingRe.FindStringSubmatch(heading)
	if prefix == nil {
		return "", "", fmt.Errorf("%w: no division name in <h1> tag", ErrElementNotFound)
	}
	m := divisionRe.FindStringSubmatch(strings.TrimSpace(prefix[1]))
	if m == nil {
		return "", "", fmt.Errorf("%w: no division name in <h1> tag", ErrElementNotFound)
	}
	name = m[divisionRe.SubexpIndex("division")]
	region = m[divisionRe.SubexpIndex("region")]
	if name == "Bezirksliga" && region == "" {
		return name, "Bayern", nil
	}
	return name, region, nil
}

// rosterNames reads the player names from the home or away roster
// table. Older pages carry two extra layout tables in front, in which
// case the roster cells hold a lone ":" and the real rosters are the
// last two tables on the page.
func (e *Extractor) rosterNames(doc *goquery.Document, home bool) ([]string, error) {
	tables := doc.Find("table")
	if tables.Length() < 2 {
		return nil, fmt.Errorf("%w: no roster tables", ErrElementNotFound)
	}
	idx := 0
	if !home {
		idx = 1
	}
	names := rosterColumn(tables.Eq(idx))

	misaligned := false
	for _, name := range names {
		if name == ":" {
			misaligned = true
			break
		}
	}
	if misaligned {
		idx = tables.Length() - 2
		if !home {
			idx = tables.Length() - 1
		}
		names = rosterColumn(tables.Eq(idx))
	}

	for i, name := range names {
		names[i] = e.sanitizer.PlayerName(name)
	}
	return names, nil
}

func rosterColumn(table *goquery.Selection) []string {
	var names []string
	table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() > 1 {
			names = append(names, strings.TrimSpace(cells.Eq(1).Text()))
		}
	})
	return names
}

// playerMap builds the abbreviation to full-name map used to resolve
// the shortened names in the match tables. An abbreviation is the name
// up to "comma space initial" plus a period. On collision the later
// entry wins.
func (e *Extractor) playerMap(ctx context.Context, pageID int, players []string) map[string]string {
	playerMap := make(map[string]string, len(players))
	for _, player := range players {
		runes := []rune(player)
		comma := -1
		for i, r := range runes {
			if r == ',' {
				comma = i
				break
			}
		}
		if comma < 0 {
			continue
		}
		cut := comma + 3
		if cut > len(runes) {
			cut = len(runes)
		}
		abbr := string(runes[:cut]) + "."
		if existing, ok := playerMap[abbr]; ok && existing != player {
			e.logger.WarnContext(ctx, "ambiguous roster abbreviation",
				"abbr", abbr, "player", player, "existing", existing, "page_id", pageID)
		}
		playerMap[abbr] = player
	}
	return playerMap
}

const (
	doublesRowWidth = 6
	singlesRowWidth = 4
)

// extractMatches walks the singles and doubles result tables in page
// order. Rows referencing a player missing from the roster map or a
// bye placeholder are dropped whole; their slot in the match numbering
// is still consumed.
func (e *Extractor) extractMatches(doc *goquery.Document, playerMap map[string]string) ([]MatchRecord, error) {
	var (
		records []MatchRecord
		matchNr int
		tblErr  error
	)
	doc.Find("table[id]").EachWithBreak(func(_ int, tbl *goquery.Selection) bool {
		id, _ := tbl.Attr("id")
		var (
			doubles bool
			width   int
		)
		switch {
		case strings.Contains(id, "doppel"):
			doubles, width = true, doublesRowWidth
		case strings.Contains(id, "einzel"):
			doubles, width = false, singlesRowWidth
		default:
			return true
		}

		cells := tbl.Find("tbody td")
		for step := 0; step+width <= cells.Length(); step += width {
			matchNr++
			record, ok, err := e.matchRow(cells, step, matchNr, doubles, playerMap)
			if err != nil {
				tblErr = err
				return false
			}
			if ok {
				records = append(records, record)
			}
		}
		return true
	})
	if tblErr != nil {
		return nil, tblErr
	}
	return records, nil
}

func (e *Extractor) matchRow(cells *goquery.Selection, step, nr int, doubles bool, playerMap map[string]string) (MatchRecord, bool, error) {
	resolve := func(offset int) (string, bool) {
		abbr := e.sanitizer.PlayerName(strings.TrimSpace(cells.Eq(step + offset).Text()))
		name, ok := playerMap[abbr]
		if !ok || e.sanitizer.IsBye(name) {
			return "", false
		}
		return e.sanitizer.PlayerName(name), true
	}

	var record MatchRecord
	record.Nr = nr

	if doubles {
		home1, ok1 := resolve(0)
		away1, ok2 := resolve(2)
		home2, ok3 := resolve(4)
		away2, ok4 := resolve(5)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return MatchRecord{}, false, nil
		}
		record.Type = match.TypeDouble
		record.HomePlayer1, record.HomePlayer2 = home1, home2
		record.AwayPlayer1, record.AwayPlayer2 = away1, away2
	} else {
		home1, ok1 := resolve(0)
		away1, ok2 := resolve(2)
		if !ok1 || !ok2 {
			return MatchRecord{}, false, nil
		}
		record.Type = match.TypeSingle
		record.HomePlayer1 = home1
		record.AwayPlayer1 = away1
	}

	result := strings.TrimSpace(cells.Eq(step + 3).Text())
	setsHome, setsAway, whoWon, err := parseResult(result)
	if err != nil {
		return MatchRecord{}, false, err
	}
	record.Result = result
	record.SetsHome = setsHome
	record.SetsAway = setsAway
	record.WhoWon = whoWon
	return record, true, nil
}

func parseResult(result string) (setsHome, setsAway int, whoWon match.Outcome, err error) {
	parts := strings.SplitN(result, ":", 2)
	if len(parts) != 2 {
		return 0, 0, "", fmt.Errorf("%w: malformed result %q", ErrElementNotFound, result)
	}
	setsHome, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: malformed result %q", ErrElementNotFound, result)
	}
	setsAway, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, "", fmt.Errorf("%w: malformed result %q", ErrElementNotFound, result)
	}
	switch {
	case setsHome > setsAway:
		whoWon = match.OutcomeHome
	case setsHome < setsAway:
		whoWon = match.OutcomeAway
	default:
		whoWon = match.OutcomeDraw
	}
	return setsHome, setsAway, whoWon, nil
}
