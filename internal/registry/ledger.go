package registry

import (
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/riskibarqy/foosball-ledger/internal/platform/logging"
)

// ledger columns: player_hash, registry_id, player_name. A row with an
// empty registry_id records that the national registry was searched and
// holds no entry for that player, so the search is not repeated.
var ledgerHeader = []string{"player_hash", "registry_id", "player_name"}

// Ledger is the CSV file linking league player names to their national
// registry ids.
type Ledger struct {
	path   string
	logger *logging.Logger
	rows   map[string]ledgerRow
}

type ledgerRow struct {
	hash string
	id   int
	name string
}

// PlayerHash is the stable file-system-safe key derived from a
// sanitized player name.
func PlayerHash(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}

// OpenLedger reads the ledger file, creating an empty one with a
// header row if it does not exist yet.
func OpenLedger(path string, logger *logging.Logger) (*Ledger, error) {
	l := &Ledger{
		path:   path,
		logger: logger,
		rows:   map[string]ledgerRow{},
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, l.flush()
	}
	if err != nil {
		return nil, fmt.Errorf("open player ledger %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read player ledger %s: %w", path, err)
	}
	for i, record := range records {
		if i == 0 || len(record) < 3 {
			continue
		}
		row := ledgerRow{hash: record[0], name: record[2]}
		if record[1] != "" {
			id, err := strconv.Atoi(record[1])
			if err != nil {
				return nil, fmt.Errorf("player ledger %s row %d: bad registry id %q", path, i+1, record[1])
			}
			row.id = id
		}
		l.rows[row.name] = row
	}
	return l, nil
}

// LookupID returns the registry id recorded for a player name. The
// second result is false both for players never searched and for
// players recorded as absent from the registry.
func (l *Ledger) LookupID(playerName string) (int, bool) {
	row, ok := l.rows[playerName]
	if !ok || row.id == 0 {
		return 0, false
	}
	return row.id, true
}

// Known reports whether the player has a ledger row at all, including a
// negative one.
func (l *Ledger) Known(playerName string) bool {
	_, ok := l.rows[playerName]
	return ok
}

// Record stores a search result. Pass id 0 to record a player the
// registry does not know, so the next run skips the search.
func (l *Ledger) Record(playerName string, id int) error {
	l.rows[playerName] = ledgerRow{
		hash: PlayerHash(playerName),
		id:   id,
		name: playerName,
	}
	l.logger.Debug("player ledger updated", "player", playerName, "registry_id", id)
	return l.flush()
}

func (l *Ledger) flush() error {
	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".player-ledger-*")
	if err != nil {
		return fmt.Errorf("write player ledger %s: %w", l.path, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(ledgerHeader); err != nil {
		tmp.Close()
		return fmt.Errorf("write player ledger %s: %w", l.path, err)
	}
	for _, row := range l.rows {
		id := ""
		if row.id != 0 {
			id = strconv.Itoa(row.id)
		}
		if err := w.Write([]string{row.hash, id, row.name}); err != nil {
			tmp.Close()
			return fmt.Errorf("write player ledger %s: %w", l.path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write player ledger %s: %w", l.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write player ledger %s: %w", l.path, err)
	}
	if err := os.Rename(tmp.Name(), l.path); err != nil {
		return fmt.Errorf("publish player ledger %s: %w", l.path, err)
	}
	return nil
}
