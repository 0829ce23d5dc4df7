// Package exchange composes the metadata cache, signer, transport, account
// reader, and order normalizer (components B–F) behind the public Client
// surface described in spec §4.G. It replaces the teacher's
// Polymarket-specific auth.go/client.go pair: the wallet parsing pattern
// (strip "0x", crypto.HexToECDSA) and the resty-backed, rate-limited request
// style both carry over, but every endpoint, payload shape, and signing path
// is Hyperliquid's.
package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"hlgo/internal/account"
	"hlgo/internal/config"
	"hlgo/internal/metadata"
	"hlgo/internal/normalizer"
	"hlgo/internal/numeric"
	"hlgo/internal/signer"
	"hlgo/internal/transport"
	"hlgo/pkg/hlerr"
	"hlgo/pkg/hltypes"
)

// Client is the public surface of this module: the signed-order facade over
// a single Hyperliquid base URL and wallet.
type Client struct {
	transport  *transport.Client
	signer     *signer.Signer
	metadata   *metadata.Cache
	account    *account.Reader
	normalizer *normalizer.Normalizer
	limiter    *Limiter
	logger     *slog.Logger
	clock      hltypes.Clock

	vaultAddress     string
	builderFeeCapBps uint64

	nonceMu   sync.Mutex
	lastNonce uint64
}

// New builds a Client from cfg. The wallet's private key is parsed once here
// and never stored outside the signer — Client itself never sees it again.
func New(cfg *config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	keyHex := strings.TrimPrefix(cfg.Wallet.PrivateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("parse wallet private key: %w", err)
	}

	t := transport.New(cfg.TransportConfig(), logger)
	s := signer.New(privateKey, cfg.IsMainnet())
	meta := metadata.New(t, logger)

	return &Client{
		transport:        t,
		signer:           s,
		metadata:         meta,
		account:          account.New(t),
		normalizer:       normalizer.New(meta, cfg.DefaultSlippage),
		logger:           logger.With("component", "exchange"),
		clock:            time.Now,
		vaultAddress:     cfg.Wallet.VaultAddress,
		builderFeeCapBps: cfg.BuilderFeeCapBps,
	}, nil
}

// WithLimiter enables client-side throttling. Not called by New — throttling
// is opt-in, since the caller's own exchange-assigned weight budget
// determines whether it's needed at all. Wires the same Limiter into the
// metadata cache and account reader so /info traffic is throttled too, not
// just /exchange submissions.
func (c *Client) WithLimiter(l *Limiter) *Client {
	c.limiter = l
	c.metadata.SetLimiter(l)
	c.account.SetLimiter(l)
	return c
}

// Address is the signer's derived address.
func (c *Client) Address() string { return c.signer.Address().Hex() }

// AccountAddress returns accountAddressOverride if it is non-empty, else the
// signer's own address. The facade's own position reads use Address().
func (c *Client) AccountAddress(accountAddressOverride string) string {
	if accountAddressOverride != "" {
		return accountAddressOverride
	}
	return c.signer.Address().Hex()
}

// nextNonce returns nonce as ms-since-epoch, monotonically increasing per
// wallet even across calls that land in the same millisecond (spec §5's
// ordering-guarantee note).
func (c *Client) nextNonce() uint64 {
	c.nonceMu.Lock()
	defer c.nonceMu.Unlock()
	now := uint64(c.clock().UnixMilli())
	if now <= c.lastNonce {
		now = c.lastNonce + 1
	}
	c.lastNonce = now
	return now
}

// positionSnapshotFunc closes over account.Reader for the normalizer's
// position-lookup dependency, keeping normalizer import-free of transport.
func (c *Client) positionSnapshotFunc(user string) normalizer.PositionSnapshotFunc {
	return func(ctx context.Context, symbol string) (string, error) {
		return c.account.PositionOf(ctx, user, symbol)
	}
}

// submitL1 marshals action (a struct with fixed field order, or pre-built
// JSON bytes), signs the result on the L1 path and posts it to /exchange.
// vaultOverride, when non-nil, replaces the client's configured vault for
// this call only; every caller in this package passes nil.
func (c *Client) submitL1(ctx context.Context, action any, expiresAfter *uint64, vaultOverride *string) (json.RawMessage, error) {
	if err := c.limiter.waitOrders(ctx); err != nil {
		return nil, hlerr.Wrap(hlerr.IO, "rate limit wait", err)
	}

	actionJSON, err := json.Marshal(action)
	if err != nil {
		return nil, hlerr.Wrap(hlerr.EncodeError, "marshaling action", err)
	}

	vault := c.signer.EffectiveVault(c.vaultAddress)
	if vaultOverride != nil {
		vault = c.signer.EffectiveVault(*vaultOverride)
	}

	nonce := c.nextNonce()
	sig, err := c.signer.SignL1Action(actionJSON, nonce, vault, expiresAfter)
	if err != nil {
		return nil, err
	}

	req := hltypes.SignedRequest{
		Action:       hltypes.RawAction(actionJSON),
		Nonce:        nonce,
		Signature:    sig,
		ExpiresAfter: expiresAfter,
	}
	if vault != nil {
		req.VaultAddress = *vault
	}

	c.logger.Debug("submitting L1 action", "nonce", nonce)
	return c.transport.PostExchange(ctx, req)
}

// submitUserSigned signs action on the fixed user-signed catalog's EIP-712
// path and posts it; expiresAfter is never attached to these (spec §4.D).
// nonce MUST be the same time/nonce value already stamped into action and
// fields — for user-signed actions the anti-replay nonce the server checks
// is the signed timestamp itself, not a freshly minted one.
func (c *Client) submitUserSigned(ctx context.Context, action any, nonce uint64, primaryType string, payloadTypes []signer.PayloadField, fields map[string]any) (json.RawMessage, error) {
	if err := c.limiter.waitOrders(ctx); err != nil {
		return nil, hlerr.Wrap(hlerr.IO, "rate limit wait", err)
	}

	actionJSON, err := json.Marshal(action)
	if err != nil {
		return nil, hlerr.Wrap(hlerr.EncodeError, "marshaling action", err)
	}

	sig, err := c.signer.SignUserSignedAction(primaryType, payloadTypes, fields)
	if err != nil {
		return nil, err
	}

	req := hltypes.SignedRequest{
		Action:    hltypes.RawAction(actionJSON),
		Nonce:     nonce,
		Signature: sig,
	}

	c.logger.Debug("submitting user-signed action", "type", primaryType, "nonce", nonce)
	return c.transport.PostExchange(ctx, req)
}

// validateBuilderFee applies spec §4.G's shape/range checks and lower-cases
// the address. A nil fee is always valid. The cap is c.builderFeeCapBps,
// configurable via config.Config.BuilderFeeCapBps; a zero-value Client (as
// built directly in tests) falls back to the protocol max of 1_000_000.
func (c *Client) validateBuilderFee(fee *hltypes.BuilderFee) (*hltypes.BuilderFee, error) {
	if fee == nil {
		return nil, nil
	}
	feeCap := c.builderFeeCapBps
	if feeCap == 0 {
		feeCap = 1_000_000
	}
	if fee.F > feeCap {
		return nil, hlerr.New(hlerr.BadBuilderFee, fmt.Sprintf("builder fee rate exceeds cap of %d bps", feeCap))
	}
	lowered := strings.ToLower(fee.B)
	if len(lowered) <= 2 || !strings.HasPrefix(lowered, "0x") || strings.Trim(lowered[2:], "0123456789abcdef") != "" {
		return nil, hlerr.New(hlerr.BadBuilderFee, "builder address must be a 0x-prefixed hex string")
	}
	return &hltypes.BuilderFee{B: lowered, F: fee.F}, nil
}

// usdInt scales a signed USD decimal string to the server's 1e6-USD integer
// units, used by margin and transfer actions that take integer amounts.
func usdInt(amount string) (int64, error) {
	return numeric.FloatToUsdInt(amount)
}
