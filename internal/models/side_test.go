package models

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestSideFromString(t *testing.T) {
	assert.Equal(t, SideBuy, SideFromString("BUY"))
	assert.Equal(t, SideSell, SideFromString("SELL"))
	assert.Equal(t, SideSell, SideFromString("SELL_SHORT"))
	assert.Equal(t, SideNone, SideFromString("HOLD"))
	assert.Equal(t, SideNone, SideFromString(""))
}

func TestSideOpposite(t *testing.T) {
	assert.Equal(t, SideSell, SideBuy.Opposite())
	assert.Equal(t, SideBuy, SideSell.Opposite())
	assert.Equal(t, SideNone, SideNone.Opposite())
}

func TestSidePolarize(t *testing.T) {
	assert.Equal(t, int64(100), SideBuy.Polarize(100))
	assert.Equal(t, int64(-100), SideSell.Polarize(100))
	assert.Equal(t, int64(0), SideNone.Polarize(100))
}

func TestSidePolarity(t *testing.T) {
	assert.Equal(t, int64(1), SideBuy.Polarity(SideBuy))
	assert.Equal(t, int64(1), SideSell.Polarity(SideSell))
	assert.Equal(t, int64(-1), SideBuy.Polarity(SideSell))
	assert.Equal(t, int64(-1), SideSell.Polarity(SideBuy))
	assert.Equal(t, int64(0), SideNone.Polarity(SideBuy))
	assert.Equal(t, int64(0), SideBuy.Polarity(SideNone))
}

// Property: signing a quantity with a side and then with its opposite
// always yields negatives of each other, and string round-trips.
func TestProperty_SideSignAlgebra(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	sideGen := gen.OneConstOf(SideBuy, SideSell)

	properties.Property("opposite side negates polarized quantity", prop.ForAll(
		func(side Side, qty int64) bool {
			return side.Polarize(qty) == -side.Opposite().Polarize(qty)
		},
		sideGen,
		gen.Int64Range(0, 1_000_000),
	))

	properties.Property("string form round-trips for directed sides", prop.ForAll(
		func(side Side) bool {
			return SideFromString(side.String()) == side
		},
		sideGen,
	))

	properties.TestingRun(t)
}
