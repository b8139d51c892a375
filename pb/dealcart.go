// Package pb carries the DealCart wire types and gRPC service bindings.
//
// The message structs are maintained by hand in the pre-apiv2 generated
// style: struct tags carry the field numbers and the grpc proto codec
// marshals them through the protobuf legacy adapter. dealcart.proto is the
// schema of record; tags there and here must stay in lockstep.
package pb

import "fmt"

type NodeState int32

const (
	NodeState_NODE_STATE_UNSPECIFIED NodeState = 0
	NodeState_NODE_STATE_PENDING     NodeState = 1
	NodeState_NODE_STATE_RUNNING     NodeState = 2
	NodeState_NODE_STATE_COMPLETED   NodeState = 3
	NodeState_NODE_STATE_FAILED      NodeState = 4
	NodeState_NODE_STATE_SKIPPED     NodeState = 5
)

var NodeState_name = map[int32]string{
	0: "NODE_STATE_UNSPECIFIED",
	1: "NODE_STATE_PENDING",
	2: "NODE_STATE_RUNNING",
	3: "NODE_STATE_COMPLETED",
	4: "NODE_STATE_FAILED",
	5: "NODE_STATE_SKIPPED",
}

var NodeState_value = map[string]int32{
	"NODE_STATE_UNSPECIFIED": 0,
	"NODE_STATE_PENDING":     1,
	"NODE_STATE_RUNNING":     2,
	"NODE_STATE_COMPLETED":   3,
	"NODE_STATE_FAILED":      4,
	"NODE_STATE_SKIPPED":     5,
}

func (s NodeState) String() string {
	if n, ok := NodeState_name[int32(s)]; ok {
		return n
	}
	return fmt.Sprintf("NodeState(%d)", int32(s))
}

type CheckoutStatus int32

const (
	CheckoutStatus_CHECKOUT_STATUS_UNSPECIFIED CheckoutStatus = 0
	CheckoutStatus_CHECKOUT_STATUS_PENDING     CheckoutStatus = 1
	CheckoutStatus_CHECKOUT_STATUS_IN_PROGRESS CheckoutStatus = 2
	CheckoutStatus_CHECKOUT_STATUS_COMPLETED   CheckoutStatus = 3
	CheckoutStatus_CHECKOUT_STATUS_FAILED      CheckoutStatus = 4
)

var CheckoutStatus_name = map[int32]string{
	0: "CHECKOUT_STATUS_UNSPECIFIED",
	1: "CHECKOUT_STATUS_PENDING",
	2: "CHECKOUT_STATUS_IN_PROGRESS",
	3: "CHECKOUT_STATUS_COMPLETED",
	4: "CHECKOUT_STATUS_FAILED",
}

var CheckoutStatus_value = map[string]int32{
	"CHECKOUT_STATUS_UNSPECIFIED": 0,
	"CHECKOUT_STATUS_PENDING":     1,
	"CHECKOUT_STATUS_IN_PROGRESS": 2,
	"CHECKOUT_STATUS_COMPLETED":   3,
	"CHECKOUT_STATUS_FAILED":      4,
}

func (s CheckoutStatus) String() string {
	if n, ok := CheckoutStatus_name[int32(s)]; ok {
		return n
	}
	return fmt.Sprintf("CheckoutStatus(%d)", int32(s))
}

type Money struct {
	CurrencyCode string `protobuf:"bytes,1,opt,name=currency_code,json=currencyCode,proto3" json:"currency_code,omitempty"`
	AmountCents  int64  `protobuf:"varint,2,opt,name=amount_cents,json=amountCents,proto3" json:"amount_cents,omitempty"`
}

func (m *Money) Reset()         { *m = Money{} }
func (m *Money) String() string { return fmt.Sprintf("%+v", *m) }
func (*Money) ProtoMessage()    {}

func (m *Money) GetCurrencyCode() string {
	if m != nil {
		return m.CurrencyCode
	}
	return ""
}

func (m *Money) GetAmountCents() int64 {
	if m != nil {
		return m.AmountCents
	}
	return 0
}

type QuoteRequest struct {
	ProductId    string `protobuf:"bytes,1,opt,name=product_id,json=productId,proto3" json:"product_id,omitempty"`
	Quantity     int32  `protobuf:"varint,2,opt,name=quantity,proto3" json:"quantity,omitempty"`
	CurrencyCode string `protobuf:"bytes,3,opt,name=currency_code,json=currencyCode,proto3" json:"currency_code,omitempty"`
}

func (m *QuoteRequest) Reset()         { *m = QuoteRequest{} }
func (m *QuoteRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*QuoteRequest) ProtoMessage()    {}

func (m *QuoteRequest) GetProductId() string {
	if m != nil {
		return m.ProductId
	}
	return ""
}

func (m *QuoteRequest) GetQuantity() int32 {
	if m != nil {
		return m.Quantity
	}
	return 0
}

func (m *QuoteRequest) GetCurrencyCode() string {
	if m != nil {
		return m.CurrencyCode
	}
	return ""
}

type PriceQuote struct {
	VendorId      string `protobuf:"bytes,1,opt,name=vendor_id,json=vendorId,proto3" json:"vendor_id,omitempty"`
	ProductId     string `protobuf:"bytes,2,opt,name=product_id,json=productId,proto3" json:"product_id,omitempty"`
	Price         *Money `protobuf:"bytes,3,opt,name=price,proto3" json:"price,omitempty"`
	EstimatedDays int32  `protobuf:"varint,4,opt,name=estimated_days,json=estimatedDays,proto3" json:"estimated_days,omitempty"`
	VendorName    string `protobuf:"bytes,5,opt,name=vendor_name,json=vendorName,proto3" json:"vendor_name,omitempty"`
	TimestampMs   int64  `protobuf:"varint,6,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
}

func (m *PriceQuote) Reset()         { *m = PriceQuote{} }
func (m *PriceQuote) String() string { return fmt.Sprintf("%+v", *m) }
func (*PriceQuote) ProtoMessage()    {}

func (m *PriceQuote) GetVendorId() string {
	if m != nil {
		return m.VendorId
	}
	return ""
}

func (m *PriceQuote) GetProductId() string {
	if m != nil {
		return m.ProductId
	}
	return ""
}

func (m *PriceQuote) GetPrice() *Money {
	if m != nil {
		return m.Price
	}
	return nil
}

func (m *PriceQuote) GetEstimatedDays() int32 {
	if m != nil {
		return m.EstimatedDays
	}
	return 0
}

func (m *PriceQuote) GetVendorName() string {
	if m != nil {
		return m.VendorName
	}
	return ""
}

func (m *PriceQuote) GetTimestampMs() int64 {
	if m != nil {
		return m.TimestampMs
	}
	return 0
}

type CheckoutItem struct {
	ProductId string `protobuf:"bytes,1,opt,name=product_id,json=productId,proto3" json:"product_id,omitempty"`
	Quantity  int32  `protobuf:"varint,2,opt,name=quantity,proto3" json:"quantity,omitempty"`
	UnitPrice *Money `protobuf:"bytes,3,opt,name=unit_price,json=unitPrice,proto3" json:"unit_price,omitempty"`
	VendorId  string `protobuf:"bytes,4,opt,name=vendor_id,json=vendorId,proto3" json:"vendor_id,omitempty"`
}

func (m *CheckoutItem) Reset()         { *m = CheckoutItem{} }
func (m *CheckoutItem) String() string { return fmt.Sprintf("%+v", *m) }
func (*CheckoutItem) ProtoMessage()    {}

func (m *CheckoutItem) GetProductId() string {
	if m != nil {
		return m.ProductId
	}
	return ""
}

func (m *CheckoutItem) GetQuantity() int32 {
	if m != nil {
		return m.Quantity
	}
	return 0
}

func (m *CheckoutItem) GetUnitPrice() *Money {
	if m != nil {
		return m.UnitPrice
	}
	return nil
}

func (m *CheckoutItem) GetVendorId() string {
	if m != nil {
		return m.VendorId
	}
	return ""
}

type CheckoutRequest struct {
	CustomerId      string          `protobuf:"bytes,1,opt,name=customer_id,json=customerId,proto3" json:"customer_id,omitempty"`
	Items           []*CheckoutItem `protobuf:"bytes,2,rep,name=items,proto3" json:"items,omitempty"`
	ShippingAddress string          `protobuf:"bytes,3,opt,name=shipping_address,json=shippingAddress,proto3" json:"shipping_address,omitempty"`
	PaymentMethodId string          `protobuf:"bytes,4,opt,name=payment_method_id,json=paymentMethodId,proto3" json:"payment_method_id,omitempty"`
	IdempotencyKey  string          `protobuf:"bytes,5,opt,name=idempotency_key,json=idempotencyKey,proto3" json:"idempotency_key,omitempty"`
}

func (m *CheckoutRequest) Reset()         { *m = CheckoutRequest{} }
func (m *CheckoutRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*CheckoutRequest) ProtoMessage()    {}

func (m *CheckoutRequest) GetCustomerId() string {
	if m != nil {
		return m.CustomerId
	}
	return ""
}

func (m *CheckoutRequest) GetItems() []*CheckoutItem {
	if m != nil {
		return m.Items
	}
	return nil
}

func (m *CheckoutRequest) GetShippingAddress() string {
	if m != nil {
		return m.ShippingAddress
	}
	return ""
}

func (m *CheckoutRequest) GetPaymentMethodId() string {
	if m != nil {
		return m.PaymentMethodId
	}
	return ""
}

func (m *CheckoutRequest) GetIdempotencyKey() string {
	if m != nil {
		return m.IdempotencyKey
	}
	return ""
}

type CheckoutResponse struct {
	CheckoutId  string         `protobuf:"bytes,1,opt,name=checkout_id,json=checkoutId,proto3" json:"checkout_id,omitempty"`
	Status      CheckoutStatus `protobuf:"varint,2,opt,name=status,proto3,enum=dealcart.v1.CheckoutStatus" json:"status,omitempty"`
	Message     string         `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
	TotalAmount *Money         `protobuf:"bytes,4,opt,name=total_amount,json=totalAmount,proto3" json:"total_amount,omitempty"`
}

func (m *CheckoutResponse) Reset()         { *m = CheckoutResponse{} }
func (m *CheckoutResponse) String() string { return fmt.Sprintf("%+v", *m) }
func (*CheckoutResponse) ProtoMessage()    {}

func (m *CheckoutResponse) GetCheckoutId() string {
	if m != nil {
		return m.CheckoutId
	}
	return ""
}

func (m *CheckoutResponse) GetStatus() CheckoutStatus {
	if m != nil {
		return m.Status
	}
	return CheckoutStatus_CHECKOUT_STATUS_UNSPECIFIED
}

func (m *CheckoutResponse) GetMessage() string {
	if m != nil {
		return m.Message
	}
	return ""
}

func (m *CheckoutResponse) GetTotalAmount() *Money {
	if m != nil {
		return m.TotalAmount
	}
	return nil
}

type CheckoutStatusRequest struct {
	CheckoutId string `protobuf:"bytes,1,opt,name=checkout_id,json=checkoutId,proto3" json:"checkout_id,omitempty"`
}

func (m *CheckoutStatusRequest) Reset()         { *m = CheckoutStatusRequest{} }
func (m *CheckoutStatusRequest) String() string { return fmt.Sprintf("%+v", *m) }
func (*CheckoutStatusRequest) ProtoMessage()    {}

func (m *CheckoutStatusRequest) GetCheckoutId() string {
	if m != nil {
		return m.CheckoutId
	}
	return ""
}

type NodeStatus struct {
	NodeId       string    `protobuf:"bytes,1,opt,name=node_id,json=nodeId,proto3" json:"node_id,omitempty"`
	State        NodeState `protobuf:"varint,2,opt,name=state,proto3,enum=dealcart.v1.NodeState" json:"state,omitempty"`
	Message      string    `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
	TimestampMs  int64     `protobuf:"varint,4,opt,name=timestamp_ms,json=timestampMs,proto3" json:"timestamp_ms,omitempty"`
	ErrorCode    string    `protobuf:"bytes,5,opt,name=error_code,json=errorCode,proto3" json:"error_code,omitempty"`
	ErrorMessage string    `protobuf:"bytes,6,opt,name=error_message,json=errorMessage,proto3" json:"error_message,omitempty"`
}

func (m *NodeStatus) Reset()         { *m = NodeStatus{} }
func (m *NodeStatus) String() string { return fmt.Sprintf("%+v", *m) }
func (*NodeStatus) ProtoMessage()    {}

func (m *NodeStatus) GetNodeId() string {
	if m != nil {
		return m.NodeId
	}
	return ""
}

func (m *NodeStatus) GetState() NodeState {
	if m != nil {
		return m.State
	}
	return NodeState_NODE_STATE_UNSPECIFIED
}

func (m *NodeStatus) GetMessage() string {
	if m != nil {
		return m.Message
	}
	return ""
}

func (m *NodeStatus) GetTimestampMs() int64 {
	if m != nil {
		return m.TimestampMs
	}
	return 0
}

func (m *NodeStatus) GetErrorCode() string {
	if m != nil {
		return m.ErrorCode
	}
	return ""
}

func (m *NodeStatus) GetErrorMessage() string {
	if m != nil {
		return m.ErrorMessage
	}
	return ""
}
