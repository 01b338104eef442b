package catalog

import "time"

// StockReleasedEvent is emitted when reserved units are returned to stock.
type StockReleasedEvent struct {
	OrderID    string
	ProductID  string
	Quantity   int
	Reason     string
	OccurredAt time.Time
}

func (StockReleasedEvent) EventName() string { return "catalog.stock_released" }

func (e StockReleasedEvent) AggregateID() string { return e.ProductID }

func NewStockReleasedEvent(orderID, productID string, quantity int, reason string) StockReleasedEvent {
	return StockReleasedEvent{
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   quantity,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
}
