// Package hltypes is the common vocabulary for the client: order intents,
// wire forms, assets, and the account/position views the normalizer
// consults. It has no dependency on any other internal package so it can be
// imported from every layer without cycles.
package hltypes

import "time"

// ————————————————————————————————————————————————————————————————————————
// Assets and market metadata
// ————————————————————————————————————————————————————————————————————————

// Instrument distinguishes the two universes the metadata cache serves.
type Instrument string

const (
	Perp Instrument = "PERP"
	Spot Instrument = "SPOT"
)

// Asset is an immutable market listing. Symbol lookup is case-insensitive;
// the cache normalizes to upper-case internally.
type Asset struct {
	Symbol     string
	ID         int
	Instrument Instrument
	SzDecimals int
}

// ————————————————————————————————————————————————————————————————————————
// Order intent — the semantic, user-level input to the normalizer
// ————————————————————————————————————————————————————————————————————————

// Tif is the time-in-force of a limit order.
type Tif string

const (
	TifGTC Tif = "Gtc"
	TifIOC Tif = "Ioc"
	TifALO Tif = "Alo"
)

// TriggerDirection marks a trigger order as take-profit or stop-loss.
type TriggerDirection string

const (
	TakeProfit TriggerDirection = "tp"
	StopLoss   TriggerDirection = "sl"
)

// LimitOrder is the Limit arm of the OrderVariant sum type.
type LimitOrder struct {
	Tif Tif
}

// TriggerOrder is the Trigger arm of the OrderVariant sum type.
type TriggerOrder struct {
	TriggerPx *string // nil means "infer from mid" (normalizer fills this in)
	IsMarket  bool
	Direction TriggerDirection
}

// OrderVariant is the actual discriminated union used by OrderIntent: at
// most one of Limit/Trigger is non-nil. Kept as a struct of pointers rather
// than an interface so JSON/msgpack-free call sites can construct it
// literally.
type OrderVariant struct {
	Limit   *LimitOrder
	Trigger *TriggerOrder
}

// IsTrigger reports whether this variant is the Trigger arm.
func (v OrderVariant) IsTrigger() bool { return v.Trigger != nil }

// OrderIntent is the semantic input to the normalizer (component E).
// Required: Instrument, Symbol, Size. Everything else participates in
// inference rules described in spec §4.E.
type OrderIntent struct {
	Instrument Instrument
	Symbol     string
	Size       string // decimal string; "0" is legal for reduce-only triggers

	IsBuy        *bool
	LimitPrice   *string
	OrderType    *OrderVariant
	ReduceOnly   bool
	Cloid        *Cloid
	Slippage     *string
	ExpiresAfter *uint64
}

// Grouping tags a bulk order action.
type Grouping string

const (
	GroupingNA           Grouping = "na"
	GroupingNormalTPSL   Grouping = "normalTpsl"
	GroupingPositionTPSL Grouping = "positionTpsl"
)

// OrderGroup bundles a set of intents under a grouping discipline.
type OrderGroup struct {
	Orders   []OrderIntent
	Grouping Grouping
}

// ————————————————————————————————————————————————————————————————————————
// Wire forms — the only representation the signer accepts
// ————————————————————————————————————————————————————————————————————————

// LimitOrderTypeWire is the `{limit:{tif}}` wire arm.
type LimitOrderTypeWire struct {
	Tif Tif `json:"tif"`
}

// TriggerOrderTypeWire is the `{trigger:{triggerPx,isMarket,tpsl}}` wire arm.
type TriggerOrderTypeWire struct {
	TriggerPx string           `json:"triggerPx"`
	IsMarket  bool             `json:"isMarket"`
	Tpsl      TriggerDirection `json:"tpsl"`
}

// OrderTypeWire carries exactly one inhabited arm, mirroring OrderVariant.
type OrderTypeWire struct {
	Limit   *LimitOrderTypeWire   `json:"limit,omitempty"`
	Trigger *TriggerOrderTypeWire `json:"trigger,omitempty"`
}

// OrderWire is the post-normalization order form accepted by the signer.
// Field order here is the canonical wire order and is load-bearing: struct
// field declaration order is what encoding/json emits, and the signer's
// digest depends on that byte-exact order (spec §4.D, §9).
type OrderWire struct {
	A int           `json:"a"`
	B bool          `json:"b"`
	P string        `json:"p"`
	S string        `json:"s"`
	R bool          `json:"r"`
	T OrderTypeWire `json:"t"`
	C *string       `json:"c,omitempty"`
}

// Cloid is a client-assigned 16-byte order identifier, canonically rendered
// as "0x" + 32 lowercase hex characters.
type Cloid [16]byte

// ————————————————————————————————————————————————————————————————————————
// Builder fee
// ————————————————————————————————————————————————————————————————————————

// BuilderFee is the optional fee attached to order actions. B is a
// lower-cased 0x address, F is basis points.
type BuilderFee struct {
	B string `json:"b"`
	F uint64 `json:"f"`
}

// ————————————————————————————————————————————————————————————————————————
// Account state
// ————————————————————————————————————————————————————————————————————————

// Position is one row of a clearinghouseState response: the signed size for
// one symbol. Positive = long, negative = short, zero = flat.
type Position struct {
	Symbol string
	Szi    string // raw decimal string as returned by the server
}

// Snapshot is the parsed `symbol → signedSize` view the normalizer consults
// for close-position inference.
type Snapshot map[string]string

// ————————————————————————————————————————————————————————————————————————
// Signed payload envelope
// ————————————————————————————————————————————————————————————————————————

// Signature is the {r,s,v} triple produced by the signer.
type Signature struct {
	R string `json:"r"`
	S string `json:"s"`
	V int    `json:"v"`
}

// SignedRequest is the body posted to /exchange.
type SignedRequest struct {
	Action       RawAction  `json:"action"`
	Nonce        uint64     `json:"nonce"`
	Signature    Signature  `json:"signature"`
	VaultAddress string     `json:"vaultAddress,omitempty"`
	ExpiresAfter *uint64    `json:"expiresAfter,omitempty"`
}

// RawAction is the already-serialized, key-order-preserved JSON body of an
// action. It implements json.Marshaler by emitting its bytes verbatim so
// that re-marshaling SignedRequest never re-encodes (and potentially
// re-orders) the action.
type RawAction []byte

// MarshalJSON returns a verbatim, never re-sorted by a map.
func (r RawAction) MarshalJSON() ([]byte, error) {
	if len(r) == 0 {
		return []byte("null"), nil
	}
	return r, nil
}

// ————————————————————————————————————————————————————————————————————————
// Wallet
// ————————————————————————————————————————————————————————————————————————

// WalletInfo is the public shape of a configured signing wallet (never
// carries the private key — see internal/config for that).
type WalletInfo struct {
	Alias          string
	PrimaryAddress string
	DerivedAddress string
}

// Clock supplies the current time; the facade derives its nonces from it.
type Clock func() time.Time
