// Package normalizer is the order-intent pipeline of spec §4.E: classify an
// OrderIntent, infer whatever the caller left unset from the metadata cache
// and account state, format size/price with internal/numeric, and translate
// the result into the OrderWire the signer accepts. It is pure aside from
// the B/F lookups it is handed — no I/O of its own, no retries, so it stays
// trivially testable the way the teacher keeps its pricing helpers pure.
package normalizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"hlgo/internal/metadata"
	"hlgo/internal/numeric"
	"hlgo/pkg/hlerr"
	"hlgo/pkg/hltypes"
)

// DefaultSlippage is the fallback used by market-open/close-market inference
// when the intent carries none and the caller hasn't configured its own
// (spec §4.E step 3).
const DefaultSlippage = "0.05"

// Normalizer holds the metadata cache the pipeline consults (read-only) and
// the default slippage; position state is passed in per call as a
// PositionSnapshotFunc.
type Normalizer struct {
	Metadata        *metadata.Cache
	defaultSlippage string
}

// New builds a Normalizer backed by the given metadata cache. defaultSlippage
// overrides the package-level DefaultSlippage fallback when non-empty —
// wired from config.Config.DefaultSlippage at the facade layer.
func New(meta *metadata.Cache, defaultSlippage string) *Normalizer {
	if defaultSlippage == "" {
		defaultSlippage = DefaultSlippage
	}
	return &Normalizer{Metadata: meta, defaultSlippage: defaultSlippage}
}

// PositionSnapshotFunc resolves the signed position size for symbol on
// demand; the facade passes a closure over internal/account so this package
// never imports the HTTP-dependent reader directly.
type PositionSnapshotFunc func(ctx context.Context, symbol string) (szi string, err error)

// intentKind is the classification from spec §4.E step 2.
type intentKind int

const (
	kindPlain intentKind = iota
	kindMarketOpen
	kindCloseMarketPlaceholder
	kindCloseLimitPlaceholder
	kindTrigger
)

func classify(intent hltypes.OrderIntent) intentKind {
	if intent.OrderType != nil && intent.OrderType.IsTrigger() {
		return kindTrigger
	}
	if intent.ReduceOnly && intent.Instrument == hltypes.Perp {
		if isMarketOpenShape(intent) {
			return kindCloseMarketPlaceholder
		}
		if isLimitGTC(intent) && intent.LimitPrice != nil && intent.IsBuy == nil {
			return kindCloseLimitPlaceholder
		}
	}
	if !intent.ReduceOnly && isMarketOpenShape(intent) {
		return kindMarketOpen
	}
	return kindPlain
}

func isMarketOpenShape(intent hltypes.OrderIntent) bool {
	return isLimitIOC(intent) && intent.LimitPrice == nil
}

func isLimitIOC(intent hltypes.OrderIntent) bool {
	return intent.OrderType != nil && intent.OrderType.Limit != nil && intent.OrderType.Limit.Tif == hltypes.TifIOC
}

func isLimitGTC(intent hltypes.OrderIntent) bool {
	return intent.OrderType != nil && intent.OrderType.Limit != nil && intent.OrderType.Limit.Tif == hltypes.TifGTC
}

// Normalize runs the full pipeline for a single intent and returns its wire
// form. position is consulted only for the close-placeholder kinds; pass a
// closure that always returns "0" if the caller knows the symbol is never a
// close order.
func (n *Normalizer) Normalize(ctx context.Context, intent hltypes.OrderIntent, position PositionSnapshotFunc) (hltypes.OrderWire, error) {
	intent, err := sanitizeSize(intent)
	if err != nil {
		return hltypes.OrderWire{}, err
	}

	kind := classify(intent)

	switch kind {
	case kindMarketOpen:
		if err := n.inferMarketOpen(ctx, &intent); err != nil {
			return hltypes.OrderWire{}, err
		}
	case kindCloseMarketPlaceholder:
		if err := n.inferCloseMarket(ctx, &intent, position); err != nil {
			return hltypes.OrderWire{}, err
		}
	case kindCloseLimitPlaceholder:
		if err := n.inferCloseLimit(ctx, &intent, position); err != nil {
			return hltypes.OrderWire{}, err
		}
	case kindTrigger:
		if err := n.inferTrigger(ctx, &intent); err != nil {
			return hltypes.OrderWire{}, err
		}
	}

	return n.translate(ctx, intent)
}

func sanitizeSize(intent hltypes.OrderIntent) (hltypes.OrderIntent, error) {
	if intent.Size == "" {
		return intent, nil
	}
	d, err := decimal.NewFromString(intent.Size)
	if err != nil {
		return intent, hlerr.Wrap(hlerr.BadNumber, "size is not a valid decimal: "+intent.Size, err)
	}
	intent.Size = d.Abs().String()
	return intent, nil
}

func (n *Normalizer) slippageOf(intent hltypes.OrderIntent) string {
	if intent.Slippage != nil && *intent.Slippage != "" {
		return *intent.Slippage
	}
	return n.defaultSlippage
}

// slippagePrice computes mid × (1+slippage) for buys, mid × (1−slippage)
// for sells, per spec §4.E / §8's slippage-price property.
func slippagePrice(mid, slippage string, isBuy bool) (string, error) {
	m, err := decimal.NewFromString(mid)
	if err != nil {
		return "", hlerr.Wrap(hlerr.BadNumber, "mid price is not a valid decimal: "+mid, err)
	}
	s, err := decimal.NewFromString(slippage)
	if err != nil {
		return "", hlerr.Wrap(hlerr.BadNumber, "slippage is not a valid decimal: "+slippage, err)
	}
	one := decimal.NewFromInt(1)
	factor := one.Add(s)
	if !isBuy {
		factor = one.Sub(s)
	}
	return m.Mul(factor).String(), nil
}

func (n *Normalizer) inferMarketOpen(ctx context.Context, intent *hltypes.OrderIntent) error {
	mid, err := n.Metadata.MidOrError(ctx, intent.Symbol)
	if err != nil {
		return err
	}
	if intent.IsBuy == nil {
		return hlerr.New(hlerr.BadNumber, "market-open intent requires isBuy")
	}
	px, err := slippagePrice(mid, n.slippageOf(*intent), *intent.IsBuy)
	if err != nil {
		return err
	}
	intent.LimitPrice = &px
	return nil
}

func (n *Normalizer) inferCloseMarket(ctx context.Context, intent *hltypes.OrderIntent, position PositionSnapshotFunc) error {
	szi, err := position(ctx, intent.Symbol)
	if err != nil {
		return err
	}
	d, err := decimal.NewFromString(szi)
	if err != nil {
		return hlerr.Wrap(hlerr.BadPosition, "parsing position size: "+szi, err)
	}
	if d.IsZero() {
		return hlerr.New(hlerr.NoPosition, "no open position on "+intent.Symbol)
	}
	isBuy := d.IsNegative()
	intent.IsBuy = &isBuy
	if intent.Size == "" || intent.Size == "0" {
		intent.Size = d.Abs().String()
	}

	mid, err := n.Metadata.MidOrError(ctx, intent.Symbol)
	if err != nil {
		return err
	}
	px, err := slippagePrice(mid, n.slippageOf(*intent), isBuy)
	if err != nil {
		return err
	}
	intent.LimitPrice = &px
	return nil
}

func (n *Normalizer) inferCloseLimit(ctx context.Context, intent *hltypes.OrderIntent, position PositionSnapshotFunc) error {
	szi, err := position(ctx, intent.Symbol)
	if err != nil {
		return err
	}
	d, err := decimal.NewFromString(szi)
	if err != nil {
		return hlerr.Wrap(hlerr.BadPosition, "parsing position size: "+szi, err)
	}
	if d.IsZero() {
		return hlerr.New(hlerr.NoPosition, "no open position on "+intent.Symbol)
	}
	isBuy := d.IsNegative()
	intent.IsBuy = &isBuy
	if intent.Size == "" || intent.Size == "0" {
		intent.Size = d.Abs().String()
	}
	return nil
}

func (n *Normalizer) inferTrigger(ctx context.Context, intent *hltypes.OrderIntent) error {
	t := intent.OrderType.Trigger
	if t.TriggerPx == nil || *t.TriggerPx == "" {
		mid, err := n.Metadata.MidOrError(ctx, intent.Symbol)
		if err != nil {
			return err
		}
		t.TriggerPx = &mid
	}
	return nil
}

// translate formats size/price and maps symbol → assetId via the metadata
// cache, producing the OrderWire the signer consumes.
func (n *Normalizer) translate(ctx context.Context, intent hltypes.OrderIntent) (hltypes.OrderWire, error) {
	asset, err := n.Metadata.ResolveAsset(ctx, intent.Symbol)
	if err != nil {
		return hltypes.OrderWire{}, err
	}
	isSpot := asset.Instrument == hltypes.Spot

	size, err := numeric.FormatSize(intent.Size, asset.SzDecimals)
	if err != nil {
		return hltypes.OrderWire{}, err
	}

	limitPx := ""
	if intent.LimitPrice != nil {
		limitPx, err = numeric.FormatPrice(*intent.LimitPrice, asset.SzDecimals, isSpot)
		if err != nil {
			return hltypes.OrderWire{}, err
		}
	}

	typeWire, err := typeWireOf(intent, asset.SzDecimals, isSpot)
	if err != nil {
		return hltypes.OrderWire{}, err
	}

	isBuy := false
	if intent.IsBuy != nil {
		isBuy = *intent.IsBuy
	}

	wire := hltypes.OrderWire{
		A: asset.ID,
		B: isBuy,
		P: limitPx,
		S: size,
		R: intent.ReduceOnly,
		T: typeWire,
	}
	if intent.Cloid != nil {
		s := CloidToHex(*intent.Cloid)
		wire.C = &s
	}
	return wire, nil
}

func typeWireOf(intent hltypes.OrderIntent, szDecimals int, isSpot bool) (hltypes.OrderTypeWire, error) {
	if intent.OrderType == nil {
		return hltypes.OrderTypeWire{Limit: &hltypes.LimitOrderTypeWire{Tif: hltypes.TifGTC}}, nil
	}
	if l := intent.OrderType.Limit; l != nil {
		return hltypes.OrderTypeWire{Limit: &hltypes.LimitOrderTypeWire{Tif: l.Tif}}, nil
	}
	t := intent.OrderType.Trigger
	if t == nil || t.TriggerPx == nil {
		return hltypes.OrderTypeWire{}, hlerr.New(hlerr.BadNumber, "trigger order missing triggerPx after inference")
	}
	triggerPx, err := numeric.FormatPrice(*t.TriggerPx, szDecimals, isSpot)
	if err != nil {
		return hltypes.OrderTypeWire{}, err
	}
	return hltypes.OrderTypeWire{
		Trigger: &hltypes.TriggerOrderTypeWire{
			TriggerPx: triggerPx,
			IsMarket:  t.IsMarket,
			Tpsl:      t.Direction,
		},
	}, nil
}

// CloidToHex renders a Cloid as "0x" + 32 lowercase hex characters.
func CloidToHex(c hltypes.Cloid) string {
	return fmt.Sprintf("0x%x", c[:])
}

// CloidFromHex parses the canonical "0x" + 32-hex-char form back into a
// Cloid. Used by the round-trip property in spec §8.
func CloidFromHex(s string) (hltypes.Cloid, error) {
	var c hltypes.Cloid
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 32 {
		return c, hlerr.New(hlerr.BadNumber, "cloid must be 32 hex characters: "+s)
	}
	for i := 0; i < 16; i++ {
		var b byte
		if _, err := fmt.Sscanf(s[i*2:i*2+2], "%02x", &b); err != nil {
			return c, hlerr.Wrap(hlerr.BadNumber, "invalid cloid hex", err)
		}
		c[i] = b
	}
	return c, nil
}

// BulkNormalize runs Normalize over every intent in group; the caller
// attaches group.Grouping when building the order action. See
// PositionTPSLGroup for the position-TP/SL auto-inference variant that must
// read the position snapshot before formatting.
func (n *Normalizer) BulkNormalize(ctx context.Context, group hltypes.OrderGroup, position PositionSnapshotFunc) ([]hltypes.OrderWire, error) {
	wires := make([]hltypes.OrderWire, 0, len(group.Orders))
	for _, intent := range group.Orders {
		wire, err := n.Normalize(ctx, intent, position)
		if err != nil {
			return nil, err
		}
		wires = append(wires, wire)
	}
	return wires, nil
}

// PositionTPSLGroup resolves isBuy/size for every entry in group that omits
// them, reading the position snapshot at most once for that inference (spec
// §4.E Position-TP/SL auto-inference); an entry that is itself a
// close-placeholder is read again by Normalize. Entries that already
// specify a direction are left untouched.
func (n *Normalizer) PositionTPSLGroup(ctx context.Context, group hltypes.OrderGroup, position PositionSnapshotFunc) ([]hltypes.OrderWire, error) {
	needsPosition := false
	for _, intent := range group.Orders {
		if intent.IsBuy == nil || intent.Size == "" || intent.Size == "0" {
			needsPosition = true
			break
		}
	}

	var szi string
	var posDecimal decimal.Decimal
	if needsPosition {
		if len(group.Orders) == 0 {
			return nil, hlerr.New(hlerr.NoPosition, "empty position-TPSL group")
		}
		var err error
		szi, err = position(ctx, group.Orders[0].Symbol)
		if err != nil {
			return nil, err
		}
		posDecimal, err = decimal.NewFromString(szi)
		if err != nil {
			return nil, hlerr.Wrap(hlerr.BadPosition, "parsing position size: "+szi, err)
		}
		if posDecimal.IsZero() {
			return nil, hlerr.New(hlerr.NoPosition, "no open position for position-TPSL group")
		}
	}

	wires := make([]hltypes.OrderWire, 0, len(group.Orders))
	for _, intent := range group.Orders {
		if intent.IsBuy == nil {
			// Reduce-only entries take the reverse of the position's own
			// sign: a long (szi > 0) closes by selling, so isBuy = (szi < 0).
			reverse := posDecimal.IsNegative()
			intent.IsBuy = &reverse
		}
		if intent.Size == "" || intent.Size == "0" {
			intent.Size = posDecimal.Abs().String()
		}
		wire, err := n.Normalize(ctx, intent, position)
		if err != nil {
			return nil, err
		}
		wires = append(wires, wire)
	}
	return wires, nil
}
