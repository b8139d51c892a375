// Package checkout implements the checkout engine: an in-memory order book
// and a fixed workflow (reserve, price and tax in parallel, pay, confirm)
// with compensating actions on failure.
package checkout

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dealcart/backend/pb"
)

// ErrInsufficientInventory is returned by Reserve when any line cannot be
// satisfied. The whole reservation is rolled back before it is returned.
var ErrInsufficientInventory = errors.New("insufficient inventory")

// defaultStock is assigned to a SKU on first touch. The ledger exists to
// exercise reservation and compensation, not to model a real warehouse, so
// unknown products are simply well stocked.
const defaultStock = 100000

// InventoryLedger is a process-local stock ledger keyed by product id.
type InventoryLedger struct {
	mu    sync.Mutex
	stock map[string]int32
}

// NewInventoryLedger seeds the on-hand counts used for load testing.
func NewInventoryLedger() *InventoryLedger {
	return &InventoryLedger{stock: map[string]int32{
		// High-demand electronics
		"sku-laptop":     5000,
		"sku-macbook":    3000,
		"sku-iphone":     10000,
		"sku-ipad":       7000,
		"sku-airpods":    15000,
		"sku-watch":      8000,
		"sku-monitor":    4000,
		"sku-keyboard":   12000,
		"sku-mouse":      18000,
		"sku-headphones": 6000,
		"sku-camera":     2000,
		"sku-drone":      1500,
		"sku-tablet":     5000,

		// Home & kitchen
		"sku-blender":   8000,
		"sku-toaster":   10000,
		"sku-microwave": 5000,
		"sku-vacuum":    4000,
		"sku-coffee":    7000,
		"sku-airfryer":  6000,

		// Sports & outdoors
		"sku-bike":     3000,
		"sku-yoga-mat": 15000,
		"sku-dumbbell": 10000,
		"sku-tent":     4000,
		"sku-backpack": 8000,

		// Books & media
		"sku-book":     20000,
		"sku-textbook": 5000,

		// Clothing
		"sku-jacket": 7000,
		"sku-shoes":  12000,
		"sku-jeans":  15000,
		"sku-shirt":  20000,

		// Legacy test SKUs
		"sku-123": 50000,
		"sku-456": 50000,
		"sku-789": 50000,
	}}
}

// SetStock overrides the quantity for one SKU.
func (l *InventoryLedger) SetStock(productID string, quantity int32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[productID] = quantity
}

// Available returns the current quantity for a SKU, materializing the
// default for unseen products.
func (l *InventoryLedger) Available(productID string) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.availableLocked(productID)
}

func (l *InventoryLedger) availableLocked(productID string) int32 {
	if qty, ok := l.stock[productID]; ok {
		return qty
	}
	l.stock[productID] = defaultStock
	return defaultStock
}

// Reserve decrements stock for every line, all or nothing: if any line
// cannot be satisfied, decrements already applied in this call are rolled
// back and ErrInsufficientInventory is returned.
func (l *InventoryLedger) Reserve(items []*pb.CheckoutItem) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, item := range items {
		have := l.availableLocked(item.GetProductId())
		if have < item.GetQuantity() {
			for _, done := range items[:i] {
				l.stock[done.GetProductId()] += done.GetQuantity()
			}
			return fmt.Errorf("%w: %s has %d, need %d",
				ErrInsufficientInventory, item.GetProductId(), have, item.GetQuantity())
		}
		l.stock[item.GetProductId()] = have - item.GetQuantity()
	}
	return nil
}

// Release returns reserved stock to the ledger.
func (l *InventoryLedger) Release(items []*pb.CheckoutItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range items {
		l.stock[item.GetProductId()] = l.availableLocked(item.GetProductId()) + item.GetQuantity()
	}
}
