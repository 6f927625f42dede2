package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"coffeetea/internal/core"
)

// Column layout of the records sheet.
var header = []any{"ID", "Consumed at", "Beverage", "Name", "Quantity"}

const lastColumn = "E"

func recordToRow(r core.Record, loc *time.Location) []any {
	ts := r.Timestamp
	if loc != nil {
		ts = ts.In(loc)
	}
	return []any{r.ID, ts.Format("2006-01-02 15:04:05"), r.Type.String(), r.Type.DisplayName(), r.Quantity}
}

// rowNumberFromRange extracts the first row number from an A1 range such as
// "Records!A5:E5" or "'My sheet'!A12:E14".
func rowNumberFromRange(a1 string) (int, error) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	if i := strings.Index(a1, ":"); i >= 0 {
		a1 = a1[:i]
	}
	digits := strings.TrimLeftFunc(a1, func(r rune) bool { return r < '0' || r > '9' })
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("no row number in range %q", a1)
	}
	return n, nil
}

// quoteSheet quotes a sheet name for use in A1 notation when needed.
func quoteSheet(name string) string {
	if strings.ContainsAny(name, " '!") {
		return "'" + strings.ReplaceAll(name, "'", "''") + "'"
	}
	return name
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
