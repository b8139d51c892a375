package checkout

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealcart/backend/pb"
)

// fastConfig is deterministic: no synthetic failures, near-instant sleeps.
func fastConfig() EngineConfig {
	cfg := DefaultEngineConfig()
	cfg.PayFailureRate = 0
	cfg.ConfirmFailureRate = 0
	cfg.PayBackoff = time.Millisecond
	cfg.SleepScale = 0.01
	return cfg
}

func runWorkflow(t *testing.T, cfg EngineConfig, ledger *InventoryLedger, req *pb.CheckoutRequest) *Order {
	t.Helper()
	engine := NewEngine(cfg, ledger, zerolog.Nop())
	order := newOrder("checkout-1-1", req)
	engine.Run(order)
	return order
}

func nodeTerminals(history []*pb.NodeStatus) map[string]pb.NodeState {
	out := map[string]pb.NodeState{}
	for _, ev := range history {
		switch ev.GetState() {
		case pb.NodeState_NODE_STATE_COMPLETED, pb.NodeState_NODE_STATE_FAILED:
			out[ev.GetNodeId()] = ev.GetState()
		}
	}
	return out
}

func indexOf(history []*pb.NodeStatus, node string, state pb.NodeState) int {
	for i, ev := range history {
		if ev.GetNodeId() == node && ev.GetState() == state {
			return i
		}
	}
	return -1
}

func checkoutReq() *pb.CheckoutRequest {
	return &pb.CheckoutRequest{
		CustomerId: "c1",
		Items: []*pb.CheckoutItem{{
			ProductId: "sku-laptop",
			Quantity:  1,
			UnitPrice: &pb.Money{CurrencyCode: "USD", AmountCents: 89900},
			VendorId:  "acme",
		}},
		PaymentMethodId: "pm-card-123",
	}
}

func TestWorkflowHappyPath(t *testing.T) {
	ledger := NewInventoryLedger()
	order := runWorkflow(t, fastConfig(), ledger, checkoutReq())

	state, total := order.State()
	require.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_COMPLETED, state)
	// subtotal 89900, tax floor(89900 * 0.08) = 7192
	assert.Equal(t, int64(89900+7192), total)
	assert.NotEmpty(t, order.Transaction())

	history, tail, _ := order.Subscribe()
	assert.Nil(t, tail)

	terminals := nodeTerminals(history)
	for _, node := range []string{nodeReserve, nodePrice, nodeTax, nodePay, nodeConfirm} {
		assert.Equal(t, pb.NodeState_NODE_STATE_COMPLETED, terminals[node], node)
	}
	assert.NotContains(t, terminals, nodeVoid)
	assert.NotContains(t, terminals, nodeRelease)

	// reserve completes before pay starts; pay completes before confirm starts.
	reserveDone := indexOf(history, nodeReserve, pb.NodeState_NODE_STATE_COMPLETED)
	payStart := indexOf(history, nodePay, pb.NodeState_NODE_STATE_PENDING)
	payDone := indexOf(history, nodePay, pb.NodeState_NODE_STATE_COMPLETED)
	confirmStart := indexOf(history, nodeConfirm, pb.NodeState_NODE_STATE_PENDING)
	assert.Less(t, reserveDone, payStart)
	assert.Less(t, payDone, confirmStart)
}

func TestWorkflowInsufficientInventory(t *testing.T) {
	ledger := NewInventoryLedger()
	ledger.SetStock("sku-laptop", 0)
	order := runWorkflow(t, fastConfig(), ledger, checkoutReq())

	state, _ := order.State()
	require.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_FAILED, state)

	history, _, _ := order.Subscribe()
	terminals := nodeTerminals(history)
	assert.Equal(t, pb.NodeState_NODE_STATE_FAILED, terminals[nodeReserve])

	// Nothing downstream ran, and nothing was compensated.
	for _, ev := range history {
		assert.Equal(t, nodeReserve, ev.GetNodeId())
	}
	failed := history[indexOf(history, nodeReserve, pb.NodeState_NODE_STATE_FAILED)]
	assert.Equal(t, codeInsufficientInventory, failed.GetErrorCode())
	assert.Equal(t, int32(0), ledger.Available("sku-laptop"))
}

func TestWorkflowPaymentFailureReleasesWithoutVoid(t *testing.T) {
	cfg := fastConfig()
	// Every attempt overruns the soft deadline, so payment cannot succeed.
	cfg.PayAttemptTimeout = time.Nanosecond

	ledger := NewInventoryLedger()
	ledger.SetStock("sku-laptop", 10)
	order := runWorkflow(t, cfg, ledger, checkoutReq())

	state, _ := order.State()
	require.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_FAILED, state)
	assert.Empty(t, order.Transaction())

	history, _, _ := order.Subscribe()
	terminals := nodeTerminals(history)
	assert.Equal(t, pb.NodeState_NODE_STATE_FAILED, terminals[nodePay])
	assert.NotContains(t, terminals, nodeVoid, "no transaction, nothing to void")
	assert.Equal(t, pb.NodeState_NODE_STATE_COMPLETED, terminals[nodeRelease])

	failed := history[indexOf(history, nodePay, pb.NodeState_NODE_STATE_FAILED)]
	assert.Equal(t, codePaymentFailed, failed.GetErrorCode())
	assert.Equal(t, int32(10), ledger.Available("sku-laptop"), "reserved stock returned")
}

func TestWorkflowConfirmFailureVoidsThenReleases(t *testing.T) {
	cfg := fastConfig()
	cfg.ConfirmFailureRate = 1.0

	ledger := NewInventoryLedger()
	ledger.SetStock("sku-laptop", 10)
	order := runWorkflow(t, cfg, ledger, checkoutReq())

	state, _ := order.State()
	require.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_FAILED, state)
	assert.NotEmpty(t, order.Transaction(), "payment went through before confirm failed")

	history, _, _ := order.Subscribe()
	terminals := nodeTerminals(history)
	assert.Equal(t, pb.NodeState_NODE_STATE_FAILED, terminals[nodeConfirm])
	assert.Equal(t, pb.NodeState_NODE_STATE_COMPLETED, terminals[nodeVoid])
	assert.Equal(t, pb.NodeState_NODE_STATE_COMPLETED, terminals[nodeRelease])

	// void precedes release.
	voidDone := indexOf(history, nodeVoid, pb.NodeState_NODE_STATE_COMPLETED)
	releaseStart := indexOf(history, nodeRelease, pb.NodeState_NODE_STATE_PENDING)
	assert.Less(t, voidDone, releaseStart)
	assert.Equal(t, int32(10), ledger.Available("sku-laptop"))
}

func TestWorkflowPaymentRetriesThenSucceeds(t *testing.T) {
	cfg := fastConfig()
	// Non-final attempts always decline; the final attempt has no synthetic
	// failure, so the retry loop must reach it.
	cfg.PayFailureRate = 1.0

	order := runWorkflow(t, cfg, NewInventoryLedger(), checkoutReq())

	state, _ := order.State()
	require.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_COMPLETED, state)

	history, _, _ := order.Subscribe()
	done := history[indexOf(history, nodePay, pb.NodeState_NODE_STATE_COMPLETED)]
	assert.Contains(t, done.GetMessage(), "attempt 3")
}

func TestWorkflowMultiItemSubtotal(t *testing.T) {
	req := &pb.CheckoutRequest{
		CustomerId: "c1",
		Items: []*pb.CheckoutItem{
			{ProductId: "sku-a", Quantity: 2, UnitPrice: &pb.Money{AmountCents: 1000}},
			{ProductId: "sku-b", Quantity: 3, UnitPrice: &pb.Money{AmountCents: 250}},
		},
	}
	order := runWorkflow(t, fastConfig(), NewInventoryLedger(), req)

	state, total := order.State()
	require.Equal(t, pb.CheckoutStatus_CHECKOUT_STATUS_COMPLETED, state)
	// subtotal 2750, tax floor(220.0) = 220
	assert.Equal(t, int64(2970), total)
}
