// orders.go implements the Orders, Close helpers, and Account groups of
// spec §4.G's facade surface: everything that goes over the L1 signing path
// (internal/signer.SignL1Action) keyed on an `order`/`cancel`/`modify`/
// `updateLeverage`/… discriminator.
package exchange

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"hlgo/internal/normalizer"
	"hlgo/pkg/hlerr"
	"hlgo/pkg/hltypes"
)

// orderAction is the `order` action body. Field order is fixed declaration
// order — this is what gives json.Marshal a stable key order without a
// custom encoder (spec §9's struct-field-order design note).
type orderAction struct {
	Type     string              `json:"type"`
	Orders   []hltypes.OrderWire `json:"orders"`
	Grouping hltypes.Grouping    `json:"grouping"`
	Builder  *hltypes.BuilderFee `json:"builder,omitempty"`
}

// Order places a single order intent, synthesizing missing fields via the
// normalizer. builderFee is optional.
func (c *Client) Order(ctx context.Context, intent hltypes.OrderIntent, builderFee *hltypes.BuilderFee) (json.RawMessage, error) {
	return c.BulkOrders(ctx, hltypes.OrderGroup{Orders: []hltypes.OrderIntent{intent}, Grouping: hltypes.GroupingNA}, builderFee)
}

// BulkOrders normalizes every intent in group and submits them as one order
// action under group.Grouping.
func (c *Client) BulkOrders(ctx context.Context, group hltypes.OrderGroup, builderFee *hltypes.BuilderFee) (json.RawMessage, error) {
	fee, err := c.validateBuilderFee(builderFee)
	if err != nil {
		return nil, err
	}

	position := c.positionSnapshotFunc(c.Address())

	var wires []hltypes.OrderWire
	if group.Grouping == hltypes.GroupingPositionTPSL {
		wires, err = c.normalizer.PositionTPSLGroup(ctx, group, position)
	} else {
		wires, err = c.normalizer.BulkNormalize(ctx, group, position)
	}
	if err != nil {
		return nil, err
	}

	action := orderAction{Type: "order", Orders: wires, Grouping: group.Grouping, Builder: fee}
	return c.submitL1(ctx, action, nil, nil)
}

// cancelRequest is one entry of a `cancel` action's cancels array.
type cancelRequest struct {
	A int    `json:"a"`
	O uint64 `json:"o"`
}

// CancelRequest is the facade-facing cancel-by-oid request.
type CancelRequest struct {
	Symbol string
	Oid    uint64
}

type cancelAction struct {
	Type    string          `json:"type"`
	Cancels []cancelRequest `json:"cancels"`
}

// Cancel cancels a single resting order by its server-assigned oid.
func (c *Client) Cancel(ctx context.Context, symbol string, oid uint64) (json.RawMessage, error) {
	return c.Cancels(ctx, []CancelRequest{{Symbol: symbol, Oid: oid}})
}

// Cancels cancels a batch of resting orders by oid.
func (c *Client) Cancels(ctx context.Context, reqs []CancelRequest) (json.RawMessage, error) {
	cancels := make([]cancelRequest, len(reqs))
	for i, r := range reqs {
		asset, err := c.metadata.ResolveAsset(ctx, r.Symbol)
		if err != nil {
			return nil, err
		}
		cancels[i] = cancelRequest{A: asset.ID, O: r.Oid}
	}
	return c.submitL1(ctx, cancelAction{Type: "cancel", Cancels: cancels}, nil, nil)
}

type cancelByCloidRequest struct {
	Asset int    `json:"asset"`
	Cloid string `json:"cloid"`
}

// CancelByCloidRequest is the facade-facing cancel-by-cloid request.
type CancelByCloidRequest struct {
	Symbol string
	Cloid  hltypes.Cloid
}

type cancelByCloidAction struct {
	Type    string                 `json:"type"`
	Cancels []cancelByCloidRequest `json:"cancels"`
}

// CancelByCloid cancels a single order by its client-assigned cloid.
func (c *Client) CancelByCloid(ctx context.Context, symbol string, cloid hltypes.Cloid) (json.RawMessage, error) {
	return c.CancelByCloids(ctx, []CancelByCloidRequest{{Symbol: symbol, Cloid: cloid}})
}

// CancelByCloids cancels a batch of orders by cloid.
func (c *Client) CancelByCloids(ctx context.Context, reqs []CancelByCloidRequest) (json.RawMessage, error) {
	cancels := make([]cancelByCloidRequest, len(reqs))
	for i, r := range reqs {
		asset, err := c.metadata.ResolveAsset(ctx, r.Symbol)
		if err != nil {
			return nil, err
		}
		cancels[i] = cancelByCloidRequest{Asset: asset.ID, Cloid: normalizer.CloidToHex(r.Cloid)}
	}
	return c.submitL1(ctx, cancelByCloidAction{Type: "cancelByCloid", Cancels: cancels}, nil, nil)
}

// ModifyRequest replaces a resting order, identified either by oid or by its
// original cloid, with a freshly normalized intent.
type ModifyRequest struct {
	Oid    uint64
	Cloid  *hltypes.Cloid
	Intent hltypes.OrderIntent
}

type modifyWire struct {
	Oid   any               `json:"oid"`
	Order hltypes.OrderWire `json:"order"`
}

type modifyAction struct {
	Type  string     `json:"type"`
	Oid   any        `json:"oid"`
	Order hltypes.OrderWire `json:"order"`
}

type batchModifyAction struct {
	Type     string       `json:"type"`
	Modifies []modifyWire `json:"modifies"`
}

func oidFieldOf(r ModifyRequest) any {
	if r.Cloid != nil {
		return normalizer.CloidToHex(*r.Cloid)
	}
	return r.Oid
}

// ModifyOrder replaces one resting order in place.
func (c *Client) ModifyOrder(ctx context.Context, req ModifyRequest, expiresAfter *uint64) (json.RawMessage, error) {
	wire, err := c.normalizer.Normalize(ctx, req.Intent, c.positionSnapshotFunc(c.Address()))
	if err != nil {
		return nil, err
	}
	action := modifyAction{Type: "modify", Oid: oidFieldOf(req), Order: wire}
	return c.submitL1(ctx, action, expiresAfter, nil)
}

// ModifyOrders replaces a batch of resting orders in a single action.
func (c *Client) ModifyOrders(ctx context.Context, reqs []ModifyRequest, expiresAfter *uint64) (json.RawMessage, error) {
	position := c.positionSnapshotFunc(c.Address())
	modifies := make([]modifyWire, len(reqs))
	for i, r := range reqs {
		wire, err := c.normalizer.Normalize(ctx, r.Intent, position)
		if err != nil {
			return nil, err
		}
		modifies[i] = modifyWire{Oid: oidFieldOf(r), Order: wire}
	}
	return c.submitL1(ctx, batchModifyAction{Type: "batchModify", Modifies: modifies}, expiresAfter, nil)
}

type scheduleCancelAction struct {
	Type string  `json:"type"`
	Time *uint64 `json:"time,omitempty"`
}

// ScheduleCancel arms (or, when timeMs is nil, disarms) a dead-man's-switch
// that cancels all resting orders if the client hasn't checked in by timeMs.
func (c *Client) ScheduleCancel(ctx context.Context, timeMs *uint64) (json.RawMessage, error) {
	return c.submitL1(ctx, scheduleCancelAction{Type: "scheduleCancel", Time: timeMs}, nil, nil)
}

// ClosePositionMarket closes (or partially closes) a position with a
// slippage-synthesized IOC order. size defaults to the full position;
// slippage defaults to the normalizer's configured default (itself
// normalizer.DefaultSlippage when none was configured).
func (c *Client) ClosePositionMarket(ctx context.Context, symbol string, size, slippage *string, cloid *hltypes.Cloid, builderFee *hltypes.BuilderFee) (json.RawMessage, error) {
	reduceOnly := true
	intent := hltypes.OrderIntent{
		Instrument: hltypes.Perp,
		Symbol:     symbol,
		ReduceOnly: reduceOnly,
		OrderType:  &hltypes.OrderVariant{Limit: &hltypes.LimitOrder{Tif: hltypes.TifIOC}},
		Cloid:      cloid,
		Slippage:   slippage,
	}
	if size != nil {
		intent.Size = *size
	}
	return c.Order(ctx, intent, builderFee)
}

// ClosePositionLimit closes a position at an explicit limit price.
func (c *Client) ClosePositionLimit(ctx context.Context, tif hltypes.Tif, symbol, limitPx string, cloid *hltypes.Cloid) (json.RawMessage, error) {
	reduceOnly := true
	intent := hltypes.OrderIntent{
		Instrument: hltypes.Perp,
		Symbol:     symbol,
		LimitPrice: &limitPx,
		ReduceOnly: reduceOnly,
		OrderType:  &hltypes.OrderVariant{Limit: &hltypes.LimitOrder{Tif: tif}},
		Cloid:      cloid,
	}
	return c.Order(ctx, intent, nil)
}

// CloseAllPositions builds a market-open-shaped, reduce-only order for every
// non-zero position and submits them as a single NA bulk order. A
// zero-position account fails NO_POSITION (spec §4.E "Close-all").
func (c *Client) CloseAllPositions(ctx context.Context) (json.RawMessage, error) {
	snap, err := c.account.Snapshot(ctx, c.Address())
	if err != nil {
		return nil, err
	}

	var intents []hltypes.OrderIntent
	for symbol, szi := range snap {
		if d, err := decimal.NewFromString(szi); err == nil && d.IsZero() {
			continue
		}
		intents = append(intents, hltypes.OrderIntent{
			Instrument: hltypes.Perp,
			Symbol:     symbol,
			Size:       szi,
			ReduceOnly: true,
			OrderType:  &hltypes.OrderVariant{Limit: &hltypes.LimitOrder{Tif: hltypes.TifIOC}},
		})
	}
	if len(intents) == 0 {
		return nil, hlerr.New(hlerr.NoPosition, "no open positions to close")
	}

	group := hltypes.OrderGroup{Orders: intents, Grouping: hltypes.GroupingNA}
	return c.BulkOrders(ctx, group, nil)
}

type updateLeverageAction struct {
	Type     string `json:"type"`
	Asset    int    `json:"asset"`
	IsCross  bool   `json:"isCross"`
	Leverage int    `json:"leverage"`
}

// UpdateLeverage sets the leverage (and cross/isolated mode) for symbol.
func (c *Client) UpdateLeverage(ctx context.Context, symbol string, crossed bool, leverage int) (json.RawMessage, error) {
	asset, err := c.metadata.ResolveAsset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	action := updateLeverageAction{Type: "updateLeverage", Asset: asset.ID, IsCross: crossed, Leverage: leverage}
	return c.submitL1(ctx, action, nil, nil)
}

type updateIsolatedMarginAction struct {
	Type  string `json:"type"`
	Asset int    `json:"asset"`
	IsBuy bool   `json:"isBuy"`
	Ntli  int64  `json:"ntli"`
}

// UpdateIsolatedMargin adjusts isolated margin on symbol's position by
// amount (a signed USD decimal string; positive adds margin, negative
// removes it), scaled to the server's 1e6-USD integer units via
// internal/numeric.
func (c *Client) UpdateIsolatedMargin(ctx context.Context, amount string, symbol string) (json.RawMessage, error) {
	asset, err := c.metadata.ResolveAsset(ctx, symbol)
	if err != nil {
		return nil, err
	}
	ntli, err := usdInt(amount)
	if err != nil {
		return nil, err
	}
	action := updateIsolatedMarginAction{Type: "updateIsolatedMargin", Asset: asset.ID, IsBuy: true, Ntli: ntli}
	return c.submitL1(ctx, action, nil, nil)
}
