package models

// Side represents the direction of a position or order.
// Buys carry a value of +1 and sells -1, so sides can be used
// directly as signs when combining unsigned quantities.
type Side int8

const (
	SideBuy  Side = 1
	SideSell Side = -1
	SideNone Side = 0
)

// SideFromString parses a venue side string ("BUY"/"SELL").
func SideFromString(s string) Side {
	switch s {
	case "BUY":
		return SideBuy
	case "SELL", "SELL_SHORT":
		return SideSell
	}
	return SideNone
}

// Value returns the integer sign of the side.
func (s Side) Value() int64 {
	return int64(s)
}

// Opposite returns the opposite side. SideNone has no opposite.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	}
	return SideNone
}

// Polarize signs an unsigned quantity by this side: q for buys,
// -q for sells, and 0 when there is no side.
func (s Side) Polarize(q int64) int64 {
	return int64(s) * q
}

// Polarity returns +1 when both sides agree, -1 when they are
// opposite, and 0 when either side is undirected.
func (s Side) Polarity(o Side) int64 {
	return int64(s) * int64(o)
}

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	}
	return "NONE"
}
