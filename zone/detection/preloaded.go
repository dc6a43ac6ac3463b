package detection

import (
	"encoding/csv"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/kogriv/bquant-sub003/pkg/zerr"
	"github.com/kogriv/bquant-sub003/series"
	"github.com/kogriv/bquant-sub003/zone"
)

// PreloadedRow is one externally supplied zone definition. Either
// (StartTime, EndTime) or (StartIdx, EndIdx) must be set; the other pair is
// left as nil/zero.
type PreloadedRow struct {
	ZoneID    string
	Type      string
	StartTime *time.Time
	EndTime   *time.Time
	StartIdx  *int
	EndIdx    *int
	Indicator string
}

// Preloaded snaps externally supplied zone rows onto the nearest bars of
// data. Rules: either "rows" ([]PreloadedRow, in-memory) or "path" (string,
// a CSV file with header zone_id,type,start_time,end_time[,indicator] or
// zone_id,type,start_idx,end_idx[,indicator]).
type Preloaded struct{}

func (Preloaded) Name() string { return "preloaded" }

func (s Preloaded) Detect(data *series.Frame, cfg Config) ([]*zone.Zone, error) {
	if err := data.Validate(); err != nil {
		return nil, err
	}

	rows, err := loadPreloadedRows(cfg.Rules)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, zerr.New(zerr.DataError, "preloaded source contains no rows")
	}

	zones := make([]*zone.Zone, 0, len(rows))
	prevEnd := -1
	for _, row := range rows {
		startIdx, endIdx, err := resolveRowIndices(data, row)
		if err != nil {
			return nil, err
		}
		if startIdx <= prevEnd {
			return nil, zerr.Newf(zerr.DataError, "preloaded zones must be non-overlapping and chronologically ordered").WithField(row.ZoneID)
		}
		if endIdx < startIdx {
			return nil, zerr.Newf(zerr.DataError, "preloaded zone end before start").WithField(row.ZoneID)
		}
		prevEnd = endIdx

		indicator := row.Indicator
		if indicator == "" {
			indicator = "external"
		}
		ctx := zone.Context{
			"detection_strategy":  s.Name(),
			"detection_indicator": indicator,
			"signal_line":         nil,
			"source":              "external",
		}
		id := row.ZoneID
		if id == "" {
			id = strconv.Itoa(len(zones))
		}
		z := zone.New(id, row.Type, startIdx, endIdx, data.Time[startIdx], data.Time[endIdx], data.Slice(startIdx, endIdx), ctx)
		zones = append(zones, z)
	}

	minDur := minDurationOrDefault(cfg)
	filtered := zones[:0]
	for _, z := range zones {
		if z.Duration() >= minDur {
			filtered = append(filtered, z)
		}
	}
	return filterZoneTypes(filtered, cfg.ZoneTypes), nil
}

func loadPreloadedRows(rules Rules) ([]PreloadedRow, error) {
	if rows, ok := rules["rows"].([]PreloadedRow); ok {
		return rows, nil
	}
	path, ok := rules["path"].(string)
	if !ok || path == "" {
		return nil, zerr.New(zerr.ConfigError, "preloaded strategy requires a \"rows\" or \"path\" rule")
	}
	return loadPreloadedCSV(path)
}

func loadPreloadedCSV(path string) ([]PreloadedRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, zerr.Wrap(err, zerr.DataError, "failed to open preloaded zones file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, zerr.Wrap(err, zerr.DataError, "failed to parse preloaded zones CSV")
	}
	if len(records) < 1 {
		return nil, zerr.New(zerr.DataError, "preloaded zones CSV has no header")
	}
	header := records[0]
	col := map[string]int{}
	for i, h := range header {
		col[h] = i
	}

	var rows []PreloadedRow
	for _, rec := range records[1:] {
		row := PreloadedRow{}
		if i, ok := col["zone_id"]; ok && i < len(rec) {
			row.ZoneID = rec[i]
		}
		if i, ok := col["type"]; ok && i < len(rec) {
			row.Type = rec[i]
		}
		if i, ok := col["indicator"]; ok && i < len(rec) {
			row.Indicator = rec[i]
		}
		if i, ok := col["start_time"]; ok && i < len(rec) && rec[i] != "" {
			tm, err := time.Parse(time.RFC3339, rec[i])
			if err != nil {
				return nil, zerr.Wrap(err, zerr.DataError, "invalid start_time in preloaded CSV")
			}
			row.StartTime = &tm
		}
		if i, ok := col["end_time"]; ok && i < len(rec) && rec[i] != "" {
			tm, err := time.Parse(time.RFC3339, rec[i])
			if err != nil {
				return nil, zerr.Wrap(err, zerr.DataError, "invalid end_time in preloaded CSV")
			}
			row.EndTime = &tm
		}
		if i, ok := col["start_idx"]; ok && i < len(rec) && rec[i] != "" {
			v, err := strconv.Atoi(rec[i])
			if err != nil {
				return nil, zerr.Wrap(err, zerr.DataError, "invalid start_idx in preloaded CSV")
			}
			row.StartIdx = &v
		}
		if i, ok := col["end_idx"]; ok && i < len(rec) && rec[i] != "" {
			v, err := strconv.Atoi(rec[i])
			if err != nil {
				return nil, zerr.Wrap(err, zerr.DataError, "invalid end_idx in preloaded CSV")
			}
			row.EndIdx = &v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func resolveRowIndices(data *series.Frame, row PreloadedRow) (int, int, error) {
	if row.StartIdx != nil && row.EndIdx != nil {
		return *row.StartIdx, *row.EndIdx, nil
	}
	if row.StartTime != nil && row.EndTime != nil {
		return nearestIndex(data.Time, *row.StartTime), nearestIndex(data.Time, *row.EndTime), nil
	}
	return 0, 0, zerr.New(zerr.DataError, "preloaded row must supply start/end as times or indices").WithField(row.ZoneID)
}

// nearestIndex returns the index of the bar closest to t, assuming Time is
// sorted ascending.
func nearestIndex(times []time.Time, t time.Time) int {
	i := sort.Search(len(times), func(i int) bool { return !times[i].Before(t) })
	if i == 0 {
		return 0
	}
	if i >= len(times) {
		return len(times) - 1
	}
	before := times[i-1]
	after := times[i]
	if t.Sub(before) <= after.Sub(t) {
		return i - 1
	}
	return i
}
