package metering

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortPlots orders plots by plot number with digit runs compared as numbers,
// so "2" comes before "12" and "12a" follows "12".
func SortPlots(plots []Plot) {
	// Collators keep internal buffers, so each call builds its own.
	c := collate.New(language.Und, collate.Numeric)
	sort.SliceStable(plots, func(i, j int) bool {
		return c.CompareString(plots[i].PlotNumber, plots[j].PlotNumber) < 0
	})
}
