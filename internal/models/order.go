// Package models provides domain models for the trading core.
package models

import "time"

// OrderType represents the type of an order.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus represents the venue-reported status of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPendingNew      OrderStatus = "PENDING_NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusPendingCancel   OrderStatus = "PENDING_CANCEL"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusUnknown         OrderStatus = ""
)

// Terminal reports end the lifecycle of the order they refer to.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected:
		return true
	}
	return false
}

// Order represents an outbound order submitted to a venue.
type Order struct {
	Symbol   string
	BrokerID string
	Account  string
	Side     Side
	Type     OrderType
	Quantity int64
	Tag      string
	PlacedAt time.Time
}

// ExecutionReport is a venue message describing the current status of
// a previously submitted order.
type ExecutionReport struct {
	OrderID            string
	OriginalOrderID    string
	Symbol             string
	Account            string
	Status             OrderStatus
	Side               Side
	CumulativeQuantity int64
	LeavesQuantity     int64
	AveragePrice       float64
	Text               string
	TransactTime       time.Time
}

// CancelReject is a venue message refusing a cancel request. It
// carries no symbol information, so it is routed by order id alone.
type CancelReject struct {
	OrderID         string
	OriginalOrderID string
	Text            string
}
