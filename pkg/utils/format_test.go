package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "0", FormatQuantity(0))
	assert.Equal(t, "999", FormatQuantity(999))
	assert.Equal(t, "1,000", FormatQuantity(1000))
	assert.Equal(t, "1,234,567", FormatQuantity(1234567))
	assert.Equal(t, "-12,500", FormatQuantity(-12500))
}

func TestFormatSignedQuantity(t *testing.T) {
	assert.Equal(t, "+100", FormatSignedQuantity(100))
	assert.Equal(t, "-100", FormatSignedQuantity(-100))
	assert.Equal(t, "0", FormatSignedQuantity(0))
}

func TestFormatPercent(t *testing.T) {
	assert.Equal(t, "+1.50%", FormatPercent(1.5))
	assert.Equal(t, "-2.25%", FormatPercent(-2.25))
	assert.Equal(t, "0.00%", FormatPercent(0))
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "150.2500", FormatPrice(150.25))
}
