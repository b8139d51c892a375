package checkout

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dealcart/backend/pb"
)

// Workflow node ids, in execution order. price and tax run concurrently;
// void and release are compensations.
const (
	nodeReserve = "reserve"
	nodePrice   = "price"
	nodeTax     = "tax"
	nodePay     = "pay"
	nodeConfirm = "confirm"
	nodeVoid    = "void"
	nodeRelease = "release"
)

// Error codes carried on FAILED NodeStatus events.
const (
	codeInsufficientInventory = "INSUFFICIENT_INVENTORY"
	codePricingTimeout        = "PRICING_TIMEOUT"
	codePaymentFailed         = "PAYMENT_FAILED"
	codeConfirmationFailed    = "CONFIRMATION_FAILED"
	codeVoidFailed            = "VOID_FAILED"
)

const taxRate = 0.08

// EngineConfig tunes the simulated workflow. Construct via
// DefaultEngineConfig for production rates; tests zero the failure rates and
// shrink SleepScale for determinism and speed.
type EngineConfig struct {
	PayAttempts        int           // total attempts, initial included
	PayAttemptTimeout  time.Duration // soft per-attempt deadline
	PayBackoff         time.Duration // pause between attempts
	JoinTimeout        time.Duration // price+tax aggregate deadline
	PayFailureRate     float64       // synthetic failure, non-final attempts only
	ConfirmFailureRate float64
	VoidFailureRate    float64
	SleepScale         float64 // multiplier on simulated work durations
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PayAttempts:        3,
		PayAttemptTimeout:  1500 * time.Millisecond,
		PayBackoff:         200 * time.Millisecond,
		JoinTimeout:        3 * time.Second,
		PayFailureRate:     0.20,
		ConfirmFailureRate: 0.05,
		SleepScale:         1.0,
	}
}

// Engine executes checkout workflows against a shared inventory ledger.
type Engine struct {
	cfg       EngineConfig
	inventory *InventoryLedger
	logger    zerolog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

func NewEngine(cfg EngineConfig, inventory *InventoryLedger, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:       cfg,
		inventory: inventory,
		logger:    logger.With().Str("component", "workflow").Logger(),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the workflow for one order to a terminal state. It is called
// on its own goroutine per checkout; all status visibility goes through the
// order's append/broadcast path.
func (e *Engine) Run(o *Order) {
	log := e.logger.With().Str("checkout_id", o.ID).Logger()
	o.setRunning()

	if !e.reserve(o) {
		// Nothing was reserved, nothing to compensate.
		o.terminate(pb.CheckoutStatus_CHECKOUT_STATUS_FAILED)
		log.Info().Str("node", nodeReserve).Msg("checkout failed")
		return
	}

	subtotal, taxCents, ok := e.priceAndTax(o)
	if !ok {
		e.compensate(o)
		o.terminate(pb.CheckoutStatus_CHECKOUT_STATUS_FAILED)
		log.Info().Msg("checkout failed in pricing")
		return
	}

	if !e.pay(o, subtotal+taxCents) {
		e.compensate(o)
		o.terminate(pb.CheckoutStatus_CHECKOUT_STATUS_FAILED)
		log.Info().Str("node", nodePay).Msg("checkout failed")
		return
	}

	if !e.confirm(o) {
		e.compensate(o)
		o.terminate(pb.CheckoutStatus_CHECKOUT_STATUS_FAILED)
		log.Info().Str("node", nodeConfirm).Msg("checkout failed")
		return
	}

	o.setTotal(subtotal + taxCents)
	o.terminate(pb.CheckoutStatus_CHECKOUT_STATUS_COMPLETED)
	log.Info().Int64("total_cents", subtotal+taxCents).Msg("checkout completed")
}

func (e *Engine) emit(o *Order, node string, state pb.NodeState, msg, errCode, errMsg string) {
	o.Append(&pb.NodeStatus{
		NodeId:       node,
		State:        state,
		Message:      msg,
		TimestampMs:  time.Now().UnixMilli(),
		ErrorCode:    errCode,
		ErrorMessage: errMsg,
	})
}

func (e *Engine) reserve(o *Order) bool {
	e.emit(o, nodeReserve, pb.NodeState_NODE_STATE_PENDING, "", "", "")
	e.emit(o, nodeReserve, pb.NodeState_NODE_STATE_RUNNING, "reserving inventory", "", "")

	if err := e.inventory.Reserve(o.Request.GetItems()); err != nil {
		e.emit(o, nodeReserve, pb.NodeState_NODE_STATE_FAILED, "",
			codeInsufficientInventory, err.Error())
		return false
	}
	e.emit(o, nodeReserve, pb.NodeState_NODE_STATE_COMPLETED,
		fmt.Sprintf("%d line(s) reserved", len(o.Request.GetItems())), "", "")
	return true
}

// priceAndTax runs the two independent pricing nodes concurrently and joins
// them under an aggregate deadline. Both compute from the request items, so
// neither waits on the other.
func (e *Engine) priceAndTax(o *Order) (subtotal, taxCents int64, ok bool) {
	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.JoinTimeout)
	defer cancel()

	priceCh := make(chan int64, 1)
	taxCh := make(chan int64, 1)

	go func() {
		e.emit(o, nodePrice, pb.NodeState_NODE_STATE_PENDING, "", "", "")
		e.emit(o, nodePrice, pb.NodeState_NODE_STATE_RUNNING, "pricing items", "", "")
		e.sleepRange(50, 150)
		sum := itemSubtotal(o.Request.GetItems())
		if ctx.Err() != nil {
			return
		}
		e.emit(o, nodePrice, pb.NodeState_NODE_STATE_COMPLETED,
			fmt.Sprintf("subtotal %d cents", sum), "", "")
		priceCh <- sum
	}()

	go func() {
		e.emit(o, nodeTax, pb.NodeState_NODE_STATE_PENDING, "", "", "")
		e.emit(o, nodeTax, pb.NodeState_NODE_STATE_RUNNING, "computing tax", "", "")
		e.sleepRange(30, 100)
		tax := int64(float64(itemSubtotal(o.Request.GetItems())) * taxRate)
		if ctx.Err() != nil {
			return
		}
		e.emit(o, nodeTax, pb.NodeState_NODE_STATE_COMPLETED,
			fmt.Sprintf("tax %d cents", tax), "", "")
		taxCh <- tax
	}()

	havePrice, haveTax := false, false
	for !havePrice || !haveTax {
		select {
		case subtotal = <-priceCh:
			havePrice = true
		case taxCents = <-taxCh:
			haveTax = true
		case <-ctx.Done():
			if !havePrice {
				e.emit(o, nodePrice, pb.NodeState_NODE_STATE_FAILED, "",
					codePricingTimeout, "pricing did not finish in time")
			}
			if !haveTax {
				e.emit(o, nodeTax, pb.NodeState_NODE_STATE_FAILED, "",
					codePricingTimeout, "tax did not finish in time")
			}
			return 0, 0, false
		}
	}
	return subtotal, taxCents, true
}

func itemSubtotal(items []*pb.CheckoutItem) int64 {
	var sum int64
	for _, item := range items {
		sum += item.GetUnitPrice().GetAmountCents() * int64(item.GetQuantity())
	}
	return sum
}

// pay attempts the charge up to PayAttempts times. Synthetic failures only
// strike non-final attempts, so with rates below 1.0 the last attempt always
// settles the outcome on its own merits (the soft deadline).
func (e *Engine) pay(o *Order, amountCents int64) bool {
	e.emit(o, nodePay, pb.NodeState_NODE_STATE_PENDING, "", "", "")
	e.emit(o, nodePay, pb.NodeState_NODE_STATE_RUNNING,
		fmt.Sprintf("charging %d cents", amountCents), "", "")

	for attempt := 1; attempt <= e.cfg.PayAttempts; attempt++ {
		elapsed := e.sleepRange(100, 300)
		final := attempt == e.cfg.PayAttempts

		switch {
		case elapsed > e.cfg.PayAttemptTimeout:
			e.logger.Warn().Str("checkout_id", o.ID).Int("attempt", attempt).
				Dur("elapsed", elapsed).Msg("payment attempt exceeded deadline")
		case !final && e.roll(e.cfg.PayFailureRate):
			e.logger.Warn().Str("checkout_id", o.ID).Int("attempt", attempt).
				Msg("payment attempt declined, retrying")
		default:
			txn := "txn-" + uuid.NewString()
			o.setTransaction(txn)
			e.emit(o, nodePay, pb.NodeState_NODE_STATE_COMPLETED,
				fmt.Sprintf("authorized on attempt %d, transaction %s", attempt, txn), "", "")
			return true
		}

		if !final {
			time.Sleep(e.scaled(e.cfg.PayBackoff))
		}
	}

	e.emit(o, nodePay, pb.NodeState_NODE_STATE_FAILED, "",
		codePaymentFailed, fmt.Sprintf("payment declined after %d attempts", e.cfg.PayAttempts))
	return false
}

func (e *Engine) confirm(o *Order) bool {
	e.emit(o, nodeConfirm, pb.NodeState_NODE_STATE_PENDING, "", "", "")
	e.emit(o, nodeConfirm, pb.NodeState_NODE_STATE_RUNNING, "confirming order", "", "")
	e.sleepRange(50, 150)

	if e.roll(e.cfg.ConfirmFailureRate) {
		e.emit(o, nodeConfirm, pb.NodeState_NODE_STATE_FAILED, "",
			codeConfirmationFailed, "order confirmation rejected")
		return false
	}
	e.emit(o, nodeConfirm, pb.NodeState_NODE_STATE_COMPLETED, "order confirmed", "", "")
	return true
}

// compensate unwinds whatever the workflow committed: void the payment when
// a transaction exists, then return reserved stock. Compensation failures
// are logged but never resurrect the checkout.
func (e *Engine) compensate(o *Order) {
	if txn := o.Transaction(); txn != "" {
		e.emit(o, nodeVoid, pb.NodeState_NODE_STATE_PENDING, "", "", "")
		e.emit(o, nodeVoid, pb.NodeState_NODE_STATE_RUNNING, "voiding "+txn, "", "")
		e.sleepRange(40, 60)
		if e.roll(e.cfg.VoidFailureRate) {
			e.emit(o, nodeVoid, pb.NodeState_NODE_STATE_FAILED, "",
				codeVoidFailed, "void rejected for "+txn)
			e.logger.Error().Str("checkout_id", o.ID).Str("transaction", txn).Msg("void failed")
		} else {
			e.emit(o, nodeVoid, pb.NodeState_NODE_STATE_COMPLETED, "voided "+txn, "", "")
		}
	}

	e.emit(o, nodeRelease, pb.NodeState_NODE_STATE_PENDING, "", "", "")
	e.emit(o, nodeRelease, pb.NodeState_NODE_STATE_RUNNING, "releasing inventory", "", "")
	e.inventory.Release(o.Request.GetItems())
	e.emit(o, nodeRelease, pb.NodeState_NODE_STATE_COMPLETED,
		fmt.Sprintf("%d line(s) released", len(o.Request.GetItems())), "", "")
}

// sleepRange sleeps a uniform duration in [minMs, maxMs] scaled by
// SleepScale, and returns the nominal (unscaled) duration for deadline
// accounting.
func (e *Engine) sleepRange(minMs, maxMs int) time.Duration {
	e.mu.Lock()
	d := time.Duration(minMs+e.rng.Intn(maxMs-minMs+1)) * time.Millisecond
	e.mu.Unlock()
	time.Sleep(e.scaled(d))
	return d
}

func (e *Engine) scaled(d time.Duration) time.Duration {
	return time.Duration(float64(d) * e.cfg.SleepScale)
}

func (e *Engine) roll(rate float64) bool {
	if rate <= 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rng.Float64() < rate
}
