// Package account is the read-only position-snapshot reader from spec §4.F:
// a thin wrapper over the clearinghouseState info query that the normalizer
// consults for close-position inference. It deliberately does not cache
// across calls — close-position operations must see state no older than
// the in-flight call, or a race with a recent fill could hand back a stale
// size.
package account

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	"hlgo/internal/transport"
	"hlgo/pkg/hlerr"
	"hlgo/pkg/hltypes"
)

// InfoLimiter throttles /info reads before they're issued. Satisfied by
// exchange.Limiter; kept as a local interface so this package never imports
// exchange.
type InfoLimiter interface {
	WaitInfo(ctx context.Context) error
}

// Reader fetches the caller's position snapshot on demand.
type Reader struct {
	transport *transport.Client
	limiter   InfoLimiter
}

// New builds a Reader backed by t.
func New(t *transport.Client) *Reader {
	return &Reader{transport: t}
}

// SetLimiter wires an InfoLimiter that Snapshot waits on before each
// clearinghouseState request. Not called by New — opt-in, same as
// exchange.Client.WithLimiter.
func (r *Reader) SetLimiter(l InfoLimiter) { r.limiter = l }

type clearinghouseStateResponse struct {
	AssetPositions []struct {
		Position struct {
			Coin string `json:"coin"`
			Szi  string `json:"szi"`
		} `json:"position"`
	} `json:"assetPositions"`
}

// Snapshot fetches {symbol → szi} for user. An unparsable szi is a fatal
// BAD_POSITION error — the caller should not silently treat a malformed
// position as flat.
func (r *Reader) Snapshot(ctx context.Context, user string) (hltypes.Snapshot, error) {
	if r.limiter != nil {
		if err := r.limiter.WaitInfo(ctx); err != nil {
			return nil, hlerr.Wrap(hlerr.IO, "rate limit wait", err)
		}
	}
	raw, err := r.transport.PostInfo(ctx, map[string]any{
		"type": "clearinghouseState",
		"user": user,
	})
	if err != nil {
		return nil, err
	}

	var resp clearinghouseStateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, hlerr.Wrap(hlerr.IO, "decoding clearinghouseState response", err)
	}

	snap := make(hltypes.Snapshot, len(resp.AssetPositions))
	for _, ap := range resp.AssetPositions {
		if _, err := decimal.NewFromString(ap.Position.Szi); err != nil {
			return nil, hlerr.Wrap(hlerr.BadPosition, "parsing szi for "+ap.Position.Coin, err)
		}
		snap[strings.ToUpper(ap.Position.Coin)] = ap.Position.Szi
	}
	return snap, nil
}

// PositionOf is a single-symbol convenience over Snapshot; it fetches the
// full snapshot (the server exposes no narrower query) and returns "0" for
// a symbol with no open position.
func (r *Reader) PositionOf(ctx context.Context, user, symbol string) (string, error) {
	snap, err := r.Snapshot(ctx, user)
	if err != nil {
		return "", err
	}
	if szi, ok := snap[strings.ToUpper(symbol)]; ok {
		return szi, nil
	}
	return "0", nil
}
