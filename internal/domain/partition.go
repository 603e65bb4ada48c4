package domain

import "sort"

// MonthlyTable is the set of samples sharing one calendar month.
type MonthlyTable struct {
	Key     MonthKey
	Samples []Sample
}

// TableRef points at a persisted monthly table.
type TableRef struct {
	Key  MonthKey
	Path string
}

// Partition groups samples by calendar month. Tables come back in ascending
// month order and keep the input order of their rows. Missing samples are
// dropped. An empty input yields no tables.
func Partition(samples []Sample) []MonthlyTable {
	groups := make(map[MonthKey][]Sample)
	for _, s := range samples {
		if s.Missing() {
			continue
		}
		k := s.Month()
		groups[k] = append(groups[k], s)
	}

	keys := make([]MonthKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	tables := make([]MonthlyTable, 0, len(keys))
	for _, k := range keys {
		tables = append(tables, MonthlyTable{Key: k, Samples: groups[k]})
	}
	return tables
}
