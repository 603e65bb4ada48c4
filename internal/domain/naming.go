package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// landSuffix marks artifacts that hold land cells only.
const landSuffix = "_land"

// tableNameRe matches "<prefix>_<MM>_<YYYY>" with an optional "_land" suffix.
var tableNameRe = regexp.MustCompile(`^(.+)_(\d{2})_(\d{4})(_land)?$`)

// TableName is the base name of a monthly table, e.g. "humidity_06_2024".
func TableName(prefix string, k MonthKey) string {
	return fmt.Sprintf("%s_%02d_%04d", prefix, int(k.Month), k.Year)
}

// LayerName is the served layer and archive base name, e.g. "humidity_06_2024_land".
func LayerName(prefix string, k MonthKey) string {
	return TableName(prefix, k) + landSuffix
}

// FullTableName is the base name of the full-range table,
// e.g. "RH2M_monthly_2022_2025".
func FullTableName(variable string, r MonthRange) string {
	return fmt.Sprintf("%s_monthly_%04d_%04d", variable, r.Start.Year, r.End.Year)
}

// ParseName extracts the prefix and month from a table or layer base name.
func ParseName(name string) (string, MonthKey, error) {
	m := tableNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", MonthKey{}, fmt.Errorf("name %q is not <prefix>_<MM>_<YYYY>", name)
	}
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	if month < 1 || month > 12 {
		return "", MonthKey{}, fmt.Errorf("name %q has month %02d", name, month)
	}
	return m[1], MonthKey{Year: year, Month: time.Month(month)}, nil
}

// TileArchive is a built tile archive for one month.
type TileArchive struct {
	Key     MonthKey
	Layer   string
	Path    string
	BuiltAt time.Time
}

// GeometryDoc is a written GeoJSON document for one month.
type GeometryDoc struct {
	Key   MonthKey
	Path  string
	Cells int
}
