package services

import "fmt"

// ValidationError reports malformed or missing input. Handlers map it to 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports an order or item id that did not resolve. Handlers
// map it to 404.
type NotFoundError struct {
	Resource string
	ID       uint
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %d not found", e.Resource, e.ID)
}

// StockError carries the stock oracle's reason for refusing an item.
// Handlers map it to 400 with the message passed through.
type StockError struct {
	Msg string
}

func (e *StockError) Error() string { return e.Msg }
