// admin.go implements spec §4.G's Admin group: spot-deploy and perp-deploy
// families, the C-validator/C-signer families, EVM big-block toggling, and
// noop. All of these are L1-signed — none appear in spec §4.D's fixed
// user-signed catalog — so every method here is a thin submitL1 wrapper
// around a fixed-shape action, mirroring orders.go's pattern.
package exchange

import (
	"context"
	"encoding/json"
)

// opaqueAction builds the {"type": actionType, subType: payload} shape used
// by the deploy/admin action families, with "type" as the leading key. A
// plain map[string]any would let json.Marshal alphabetize the keys instead,
// which breaks the digest for any subType that doesn't happen to sort after
// "type". The result is a json.RawMessage, itself a valid action value for
// submitL1 (json.Marshal on a RawMessage returns it unchanged).
func opaqueAction(actionType, subType string, payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	typeKey, err := json.Marshal(actionType)
	if err != nil {
		return nil, err
	}
	subKey, err := json.Marshal(subType)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(typeKey)+len(subKey)+len(payload)+16)
	out = append(out, '{', '"', 't', 'y', 'p', 'e', '"', ':')
	out = append(out, typeKey...)
	out = append(out, ',')
	out = append(out, subKey...)
	out = append(out, ':')
	out = append(out, payload...)
	out = append(out, '}')
	return out, nil
}

// SpotDeploy submits a spot-deploy action (register token, set
// hyperliquidity parameters, …). payload is the sub-operation's own JSON
// body, merged under its discriminator key (e.g. "registerToken2") — the
// per-sub-operation schema is defined server-side and varies too much to
// model exhaustively here.
func (c *Client) SpotDeploy(ctx context.Context, subType string, payload json.RawMessage) (json.RawMessage, error) {
	full, err := opaqueAction("spotDeploy", subType, payload)
	if err != nil {
		return nil, err
	}
	return c.submitL1(ctx, full, nil, nil)
}

// PerpDeploy submits a perp-deploy action (registering a new perp asset or
// its oracle/funding parameters), same opaque-payload shape as SpotDeploy.
func (c *Client) PerpDeploy(ctx context.Context, subType string, payload json.RawMessage) (json.RawMessage, error) {
	full, err := opaqueAction("perpDeploy", subType, payload)
	if err != nil {
		return nil, err
	}
	return c.submitL1(ctx, full, nil, nil)
}

// CValidatorAction submits a consensus-validator administrative action
// (register, unregister, change profile, …).
func (c *Client) CValidatorAction(ctx context.Context, subType string, payload json.RawMessage) (json.RawMessage, error) {
	full, err := opaqueAction("CValidatorAction", subType, payload)
	if err != nil {
		return nil, err
	}
	return c.submitL1(ctx, full, nil, nil)
}

// CSignerAction submits a consensus-signer administrative action (jail
// self, unjail self, …).
func (c *Client) CSignerAction(ctx context.Context, subType string, payload json.RawMessage) (json.RawMessage, error) {
	full, err := opaqueAction("CSignerAction", subType, payload)
	if err != nil {
		return nil, err
	}
	return c.submitL1(ctx, full, nil, nil)
}

type evmUserModifyAction struct {
	Type          string `json:"type"`
	UsingBigBlocks bool  `json:"usingBigBlocks"`
}

// EvmUserModify toggles whether this account's EVM transactions use the
// big-block queue.
func (c *Client) EvmUserModify(ctx context.Context, usingBigBlocks bool) (json.RawMessage, error) {
	action := evmUserModifyAction{Type: "evmUserModify", UsingBigBlocks: usingBigBlocks}
	return c.submitL1(ctx, action, nil, nil)
}

type noopAction struct {
	Type string `json:"type"`
}

// Noop submits the no-op action — used to test connectivity and signing
// end-to-end without any side effect. Also the action spec §8's precomputed
// signature vector fixes against (test key 0x0…01, nonce 1, no vault, no
// expiry, mainnet).
func (c *Client) Noop(ctx context.Context) (json.RawMessage, error) {
	return c.submitL1(ctx, noopAction{Type: "noop"}, nil, nil)
}
