// Package metadata is the process-wide, concurrency-safe registry of asset
// listings and mid prices the order normalizer consults (spec §4.B). It
// follows the teacher's market package in spirit — a local mirror kept fresh
// by polling the exchange — but swaps the RWMutex-mutated book for an
// atomically-swapped immutable snapshot, since readers here must never
// observe a partially built universe.
package metadata

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"hlgo/internal/transport"
	"hlgo/pkg/hlerr"
	"hlgo/pkg/hltypes"
)

// universe is the immutable result of a successful meta+spotMeta load. A
// Cache swaps this pointer atomically; a reader that grabs it sees either
// the old or the new universe in full, never a mix.
type universe struct {
	byPerpSymbol map[string]hltypes.Asset
	bySpotSymbol map[string]hltypes.Asset
}

// InfoLimiter throttles /info reads before they're issued. Satisfied by
// exchange.Limiter; kept as a local interface so this package never imports
// exchange.
type InfoLimiter interface {
	WaitInfo(ctx context.Context) error
}

// Cache is the metadata + mid-price registry. Zero value is not usable; use
// New.
type Cache struct {
	transport *transport.Client
	logger    *slog.Logger
	limiter   InfoLimiter

	universe atomic.Pointer[universe]
	loadMu   sync.Mutex

	midsMu sync.RWMutex
	mids   map[string]string
}

// New builds a Cache backed by t. Nothing is fetched until the first lookup
// or an explicit WarmUp.
func New(t *transport.Client, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		transport: t,
		logger:    logger.With("component", "metadata"),
		mids:      make(map[string]string),
	}
}

// SetLimiter wires an InfoLimiter that every meta/spotMeta/allMids request
// waits on first. Not called by New — opt-in, same as
// exchange.Client.WithLimiter.
func (c *Cache) SetLimiter(l InfoLimiter) { c.limiter = l }

func (c *Cache) waitLimiter(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.WaitInfo(ctx)
}

// metaAsset is the wire shape of one entry in the meta/spotMeta universe
// response's `universe` array.
type metaAsset struct {
	Name       string `json:"name"`
	SzDecimals int    `json:"szDecimals"`
}

type metaResponse struct {
	Universe []metaAsset `json:"universe"`
}

// spotMetaResponse additionally carries a tokens array; spot asset ids are
// offset by 10000 relative to their index, which the server treats as an
// opaque convention this cache simply records verbatim.
type spotMetaResponse struct {
	Universe []struct {
		Name    string `json:"name"`
		Tokens  []int  `json:"tokens"`
		Index   int    `json:"index"`
	} `json:"universe"`
	Tokens []struct {
		Name       string `json:"name"`
		SzDecimals int    `json:"szDecimals"`
	} `json:"tokens"`
}

const spotAssetOffset = 10000

// ResolveAsset returns the Asset for symbol, loading the universe on first
// use. Lookup is case-insensitive.
func (c *Cache) ResolveAsset(ctx context.Context, symbol string) (hltypes.Asset, error) {
	u, err := c.ensureLoaded(ctx)
	if err != nil {
		return hltypes.Asset{}, err
	}
	key := strings.ToUpper(symbol)
	if a, ok := u.byPerpSymbol[key]; ok {
		return a, nil
	}
	if a, ok := u.bySpotSymbol[key]; ok {
		return a, nil
	}
	return hltypes.Asset{}, hlerr.New(hlerr.UnknownSymbol, "unknown symbol: "+symbol)
}

// SzDecimals is a thin accessor over ResolveAsset's SzDecimals field.
func (c *Cache) SzDecimals(ctx context.Context, symbol string) (int, error) {
	a, err := c.ResolveAsset(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return a.SzDecimals, nil
}

// WarmUp populates both universes and the mids map eagerly, with at most
// three concurrent requests. Failures are swallowed and logged — lookups
// still lazy-load on demand afterward — so a slow or down exchange never
// blocks client construction.
func (c *Cache) WarmUp(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		if _, err := c.loadUniverse(ctx); err != nil {
			c.logger.Warn("warm-up: universe load failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := c.refreshMids(ctx); err != nil {
			c.logger.Warn("warm-up: mids refresh failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		// Third slot reserved for a future warm signal (e.g. clearinghouse
		// ping); nothing to do today, but kept as its own goroutine so the
		// "at most three concurrent requests" budget stays explicit.
	}()

	wg.Wait()
}

// MidOrError returns the latest cached mid for symbol, refreshing all mids
// on demand whenever symbol has no cached entry.
func (c *Cache) MidOrError(ctx context.Context, symbol string) (string, error) {
	key := strings.ToUpper(symbol)

	c.midsMu.RLock()
	mid, ok := c.mids[key]
	c.midsMu.RUnlock()
	if ok {
		return mid, nil
	}

	if err := c.refreshMids(ctx); err != nil {
		return "", err
	}

	c.midsMu.RLock()
	mid, ok = c.mids[key]
	c.midsMu.RUnlock()
	if !ok {
		return "", hlerr.New(hlerr.UnknownSymbol, "no mid price for symbol: "+symbol)
	}
	return mid, nil
}

// ensureLoaded returns the current universe, loading it on first call. The
// load itself runs once; concurrent callers during the first load block on
// loadMu (see loadUniverse) rather than issuing duplicate requests.
func (c *Cache) ensureLoaded(ctx context.Context) (*universe, error) {
	if u := c.universe.Load(); u != nil {
		return u, nil
	}
	return c.loadUniverse(ctx)
}

// loadUniverse is the single writer: concurrent callers serialize on loadMu,
// and a double-check after acquiring it means only one actually fetches. A
// failed fetch stores nothing, so a later call retries instead of wedging
// the cache into a permanent failure state.
func (c *Cache) loadUniverse(ctx context.Context) (*universe, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	if u := c.universe.Load(); u != nil {
		return u, nil
	}
	perp, spot, err := c.fetchUniverses(ctx)
	if err != nil {
		return nil, err
	}
	u := &universe{byPerpSymbol: perp, bySpotSymbol: spot}
	c.universe.Store(u)
	return u, nil
}

func (c *Cache) fetchUniverses(ctx context.Context) (map[string]hltypes.Asset, map[string]hltypes.Asset, error) {
	if err := c.waitLimiter(ctx); err != nil {
		return nil, nil, hlerr.Wrap(hlerr.IO, "rate limit wait", err)
	}

	var perpRaw, spotRaw json.RawMessage
	var perpErr, spotErr error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		perpRaw, perpErr = c.transport.PostInfo(ctx, map[string]any{"type": "meta"})
	}()
	go func() {
		defer wg.Done()
		spotRaw, spotErr = c.transport.PostInfo(ctx, map[string]any{"type": "spotMeta"})
	}()
	wg.Wait()

	if perpErr != nil {
		return nil, nil, perpErr
	}
	if spotErr != nil {
		return nil, nil, spotErr
	}

	var perpResp metaResponse
	if err := json.Unmarshal(perpRaw, &perpResp); err != nil {
		return nil, nil, hlerr.Wrap(hlerr.IO, "decoding meta response", err)
	}
	byPerp := make(map[string]hltypes.Asset, len(perpResp.Universe))
	for i, a := range perpResp.Universe {
		byPerp[strings.ToUpper(a.Name)] = hltypes.Asset{
			Symbol:     a.Name,
			ID:         i,
			Instrument: hltypes.Perp,
			SzDecimals: a.SzDecimals,
		}
	}

	var spotResp spotMetaResponse
	if err := json.Unmarshal(spotRaw, &spotResp); err != nil {
		return nil, nil, hlerr.Wrap(hlerr.IO, "decoding spotMeta response", err)
	}
	szByTokenIdx := make(map[int]int, len(spotResp.Tokens))
	for i, t := range spotResp.Tokens {
		szByTokenIdx[i] = t.SzDecimals
	}
	bySpot := make(map[string]hltypes.Asset, len(spotResp.Universe))
	for _, a := range spotResp.Universe {
		sz := 0
		if len(a.Tokens) > 0 {
			sz = szByTokenIdx[a.Tokens[0]]
		}
		bySpot[strings.ToUpper(a.Name)] = hltypes.Asset{
			Symbol:     a.Name,
			ID:         spotAssetOffset + a.Index,
			Instrument: hltypes.Spot,
			SzDecimals: sz,
		}
	}

	return byPerp, bySpot, nil
}

func (c *Cache) refreshMids(ctx context.Context) error {
	if err := c.waitLimiter(ctx); err != nil {
		return hlerr.Wrap(hlerr.IO, "rate limit wait", err)
	}
	raw, err := c.transport.PostInfo(ctx, map[string]any{"type": "allMids"})
	if err != nil {
		return err
	}
	var flat map[string]string
	if err := json.Unmarshal(raw, &flat); err != nil {
		return hlerr.Wrap(hlerr.IO, "decoding allMids response", err)
	}

	next := make(map[string]string, len(flat))
	for symbol, mid := range flat {
		next[strings.ToUpper(symbol)] = mid
	}

	c.midsMu.Lock()
	for k, v := range next {
		c.mids[k] = v
	}
	c.midsMu.Unlock()
	return nil
}
