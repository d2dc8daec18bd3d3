// Package utils provides shared formatting helpers.
package utils

import (
	"fmt"
	"strings"
)

// FormatQuantity formats an unsigned quantity with thousands separators.
func FormatQuantity(qty int64) string {
	negative := qty < 0
	if negative {
		qty = -qty
	}
	s := fmt.Sprintf("%d", qty)

	n := len(s)
	if n > 3 {
		var parts []string
		for n > 3 {
			parts = append([]string{s[n-3:]}, parts...)
			s = s[:n-3]
			n = len(s)
		}
		s = s + "," + strings.Join(parts, ",")
	}
	if negative {
		s = "-" + s
	}
	return s
}

// FormatSignedQuantity formats a signed quantity with an explicit sign
// for positive values.
func FormatSignedQuantity(qty int64) string {
	if qty > 0 {
		return "+" + FormatQuantity(qty)
	}
	return FormatQuantity(qty)
}

// FormatPercent formats a percentage with sign.
func FormatPercent(value float64) string {
	sign := ""
	if value > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.2f%%", sign, value)
}

// FormatPrice formats a price to four decimal places, the venue's
// reporting precision.
func FormatPrice(px float64) string {
	return fmt.Sprintf("%.4f", px)
}
