package pb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/protoadapt"
)

// One end-to-end encode/decode through the protobuf codec the gRPC stack
// uses, covering nested messages, repeated fields, and enums.
func TestCheckoutRequestWireRoundTrip(t *testing.T) {
	in := &CheckoutRequest{
		CustomerId: "c1",
		Items: []*CheckoutItem{{
			ProductId: "sku-laptop",
			Quantity:  2,
			UnitPrice: &Money{CurrencyCode: "USD", AmountCents: 89900},
			VendorId:  "acme",
		}},
		ShippingAddress: "1 Main St",
		PaymentMethodId: "pm-card-123",
		IdempotencyKey:  "key-1",
	}

	data, err := proto.Marshal(protoadapt.MessageV2Of(in))
	require.NoError(t, err)

	out := &CheckoutRequest{}
	require.NoError(t, proto.Unmarshal(data, protoadapt.MessageV2Of(out)))

	assert.Equal(t, "c1", out.GetCustomerId())
	require.Len(t, out.GetItems(), 1)
	assert.Equal(t, int32(2), out.GetItems()[0].GetQuantity())
	assert.Equal(t, int64(89900), out.GetItems()[0].GetUnitPrice().GetAmountCents())
	assert.Equal(t, "key-1", out.GetIdempotencyKey())
}

func TestNodeStatusEnumOnTheWire(t *testing.T) {
	in := &NodeStatus{
		NodeId:    "pay",
		State:     NodeState_NODE_STATE_FAILED,
		ErrorCode: "PAYMENT_FAILED",
	}
	data, err := proto.Marshal(protoadapt.MessageV2Of(in))
	require.NoError(t, err)

	out := &NodeStatus{}
	require.NoError(t, proto.Unmarshal(data, protoadapt.MessageV2Of(out)))
	assert.Equal(t, NodeState_NODE_STATE_FAILED, out.GetState())
	assert.Equal(t, "NODE_STATE_FAILED", out.GetState().String())
}

func TestServiceMethodPaths(t *testing.T) {
	assert.Equal(t, "dealcart.v1.VendorBackend", VendorBackend_ServiceDesc.ServiceName)
	assert.Equal(t, "dealcart.v1.VendorPricing", VendorPricing_ServiceDesc.ServiceName)
	assert.Equal(t, "dealcart.v1.Checkout", Checkout_ServiceDesc.ServiceName)
	assert.True(t, VendorPricing_ServiceDesc.Streams[0].ServerStreams)
	assert.True(t, Checkout_ServiceDesc.Streams[0].ServerStreams)
}
