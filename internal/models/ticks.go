package models

import "time"

// TradeTick is a last-trade market data event.
type TradeTick struct {
	Symbol    string
	Price     float64
	Size      int64
	Timestamp time.Time
}

// BidTick is a best-bid market data event.
type BidTick struct {
	Symbol    string
	Price     float64
	Size      int64
	Timestamp time.Time
}

// AskTick is a best-ask market data event.
type AskTick struct {
	Symbol    string
	Price     float64
	Size      int64
	Timestamp time.Time
}
