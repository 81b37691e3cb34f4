package reconcile

import (
	"encoding/csv"
	"fmt"
	"os"
)

// LoadLogos reads the association logo table, a CSV of
// association_name,logo_file_name rows. A missing file is fine; every
// association then falls back to the placeholder logo.
func LoadLogos(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open logo table %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read logo table %s: %w", path, err)
	}
	logos := make(map[string]string, len(records))
	for i, record := range records {
		if i == 0 || len(record) < 2 {
			continue
		}
		logos[record[0]] = record[1]
	}
	return logos, nil
}
