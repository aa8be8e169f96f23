package gateway

import (
	"fmt"
	"math"
	"strconv"
)

// formatDecimal renders a minor-unit amount as the "units.cents" string some
// providers expect (e.g. 1990 -> "19.90")
func formatDecimal(amount int64) string {
	return fmt.Sprintf("%d.%02d", amount/100, amount%100)
}

// parseDecimal converts a "units.cents" string back to minor units.
// Malformed or missing values degrade to zero.
func parseDecimal(s string) int64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int64(math.Round(f * 100))
}

// formatMinor renders a minor-unit amount as a plain integer string
func formatMinor(amount int64) string {
	return strconv.FormatInt(amount, 10)
}

// parseMinor converts an integer minor-unit string. Malformed or missing
// values degrade to zero.
func parseMinor(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
