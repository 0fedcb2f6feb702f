package frontier

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Columns is the persisted column order, one per Record attribute.
var Columns = []string{
	"doc_id",
	"url",
	"domain",
	"main_domain",
	"depth",
	"priority",
	"status",
	"created",
	"updated",
	"root",
	"random_sort_key",
	"features_tubingen",
	"features_english",
}

// Row renders rec in Columns order.
func Row(rec Record) []string {
	return []string{
		rec.DocID,
		rec.URL,
		rec.Domain,
		rec.MainDomain,
		strconv.Itoa(rec.Depth),
		strconv.Itoa(int(rec.Priority)),
		string(rec.Status),
		rec.Created.UTC().Format(time.RFC3339Nano),
		rec.Updated.UTC().Format(time.RFC3339Nano),
		rec.Root,
		strconv.FormatFloat(rec.RandomSortKey, 'g', -1, 64),
		strconv.FormatBool(rec.FeaturesTubingen),
		strconv.FormatBool(rec.FeaturesEnglish),
	}
}

// WriteCSV writes a header and one row per record.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := cw.Write(Row(rec)); err != nil {
			return fmt.Errorf("write row %s: %w", rec.DocID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// ReadCSV parses a snapshot written by WriteCSV. Columns are matched by
// header name, so extra columns are ignored and order may vary.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, name := range Columns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("snapshot missing column %q", name)
		}
	}

	var records []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read line %d: %w", line, err)
		}
		rec, err := decodeRow(func(col string) string { return row[index[col]] })
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
}

func decodeRow(field func(string) string) (Record, error) {
	rec := Record{
		DocID:      field("doc_id"),
		URL:        field("url"),
		Domain:     field("domain"),
		MainDomain: field("main_domain"),
		Root:       field("root"),
	}
	var err error
	if rec.Depth, err = strconv.Atoi(field("depth")); err != nil {
		return Record{}, fmt.Errorf("depth: %w", err)
	}
	if rec.Priority, err = ParsePriority(field("priority")); err != nil {
		return Record{}, err
	}
	if rec.Status, err = ParseStatus(field("status")); err != nil {
		return Record{}, err
	}
	if rec.Created, err = parseTimestamp(field("created")); err != nil {
		return Record{}, fmt.Errorf("created: %w", err)
	}
	if rec.Updated, err = parseTimestamp(field("updated")); err != nil {
		return Record{}, fmt.Errorf("updated: %w", err)
	}
	if rec.RandomSortKey, err = strconv.ParseFloat(field("random_sort_key"), 64); err != nil {
		return Record{}, fmt.Errorf("random_sort_key: %w", err)
	}
	if rec.FeaturesTubingen, err = parseFlag(field("features_tubingen")); err != nil {
		return Record{}, fmt.Errorf("features_tubingen: %w", err)
	}
	if rec.FeaturesEnglish, err = parseFlag(field("features_english")); err != nil {
		return Record{}, fmt.Errorf("features_english: %w", err)
	}
	return rec, nil
}

// naiveLayout is the zone-less form earlier snapshots used, e.g.
// "2023-07-01 12:00:00.123456". Fractional seconds are optional when parsing.
const naiveLayout = "2006-01-02 15:04:05"

// parseTimestamp reads RFC 3339 or the naive layout, taken as local time.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err == nil {
		return t, nil
	}
	if naive, naiveErr := time.ParseInLocation(naiveLayout, s, time.Local); naiveErr == nil {
		return naive.UTC(), nil
	}
	return time.Time{}, err
}

// parseFlag accepts an empty cell as false.
func parseFlag(s string) (bool, error) {
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("parse bool %q: %w", s, err)
	}
	return v, nil
}
