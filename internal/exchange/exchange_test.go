package exchange

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"hlgo/internal/account"
	"hlgo/internal/metadata"
	"hlgo/internal/normalizer"
	"hlgo/internal/signer"
	"hlgo/internal/transport"
	"hlgo/pkg/hlerr"
	"hlgo/pkg/hltypes"
)

const testKeyHex = "0000000000000000000000000000000000000000000000000000000000000001"

const metaBody = `{"universe":[
	{"name":"BTC","szDecimals":5},
	{"name":"X1","szDecimals":0},
	{"name":"X2","szDecimals":0},
	{"name":"X3","szDecimals":0},
	{"name":"ETH","szDecimals":4}
]}`

// exchangeHarness wires a real Client against a stub server, capturing every
// /exchange request body for inspection.
type exchangeHarness struct {
	client       *Client
	exchgCalls   []map[string]any
	exchgRawBody [][]byte
	midsBody     string
	chState      string
}

func newExchangeHarness(t *testing.T) *exchangeHarness {
	t.Helper()
	h := &exchangeHarness{midsBody: `{"ETH":"3000.0","BTC":"60000.0"}`, chState: `{"assetPositions":[]}`}

	mux := http.NewServeMux()
	mux.HandleFunc("/info", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Type string `json:"type"`
		}
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &req)
		w.WriteHeader(http.StatusOK)
		switch req.Type {
		case "meta":
			w.Write([]byte(metaBody))
		case "spotMeta":
			w.Write([]byte(`{"universe":[],"tokens":[]}`))
		case "allMids":
			w.Write([]byte(h.midsBody))
		case "clearinghouseState":
			w.Write([]byte(h.chState))
		default:
			w.Write([]byte(`{}`))
		}
	})
	mux.HandleFunc("/exchange", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		b, _ := io.ReadAll(r.Body)
		json.Unmarshal(b, &body)
		h.exchgCalls = append(h.exchgCalls, body)
		h.exchgRawBody = append(h.exchgRawBody, b)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tc := transport.New(transport.Config{BaseURL: srv.URL, Timeout: 2 * time.Second}, logger)
	key, err := crypto.HexToECDSA(testKeyHex)
	if err != nil {
		t.Fatalf("parse test key: %v", err)
	}
	meta := metadata.New(tc, logger)
	h.client = &Client{
		transport:        tc,
		signer:           signer.New(key, true),
		metadata:         meta,
		account:          account.New(tc),
		normalizer:       normalizer.New(meta, ""),
		logger:           logger,
		clock:            time.Now,
		builderFeeCapBps: 1_000_000,
	}
	return h
}

func (h *exchangeHarness) lastAction(t *testing.T) map[string]any {
	t.Helper()
	if len(h.exchgCalls) == 0 {
		t.Fatal("no /exchange request observed")
	}
	action, ok := h.exchgCalls[len(h.exchgCalls)-1]["action"].(map[string]any)
	if !ok {
		t.Fatalf("action field missing or wrong shape: %+v", h.exchgCalls[len(h.exchgCalls)-1])
	}
	return action
}

func TestOrderSubmitsOrderAction(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)

	isBuy := true
	intent := hltypes.OrderIntent{
		Instrument: hltypes.Perp, Symbol: "ETH", Size: "0.01", IsBuy: &isBuy,
		OrderType: &hltypes.OrderVariant{Limit: &hltypes.LimitOrder{Tif: hltypes.TifIOC}},
	}
	if _, err := h.client.Order(context.Background(), intent, nil); err != nil {
		t.Fatalf("Order: %v", err)
	}

	action := h.lastAction(t)
	if action["type"] != "order" {
		t.Errorf("type = %v, want order", action["type"])
	}
	if action["grouping"] != "na" {
		t.Errorf("grouping = %v, want na", action["grouping"])
	}
	orders, ok := action["orders"].([]any)
	if !ok || len(orders) != 1 {
		t.Fatalf("orders = %v, want a single-element array", action["orders"])
	}
}

func TestOrderRejectsBadBuilderFee(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)

	isBuy := true
	intent := hltypes.OrderIntent{
		Instrument: hltypes.Perp, Symbol: "ETH", Size: "0.01", IsBuy: &isBuy,
		OrderType: &hltypes.OrderVariant{Limit: &hltypes.LimitOrder{Tif: hltypes.TifIOC}},
	}
	fee := &hltypes.BuilderFee{B: "not-hex", F: 100}
	_, err := h.client.Order(context.Background(), intent, fee)
	if err == nil {
		t.Fatal("expected error for malformed builder address")
	}
	if hlerr.KindOf(err) != hlerr.BadBuilderFee {
		t.Errorf("KindOf(err) = %v, want BadBuilderFee", hlerr.KindOf(err))
	}
	if len(h.exchgCalls) != 0 {
		t.Error("no HTTP request should have been sent for a rejected builder fee")
	}
}

func TestOrderRejectsBuilderFeeOverCap(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	isBuy := true
	intent := hltypes.OrderIntent{
		Instrument: hltypes.Perp, Symbol: "ETH", Size: "0.01", IsBuy: &isBuy,
		OrderType: &hltypes.OrderVariant{Limit: &hltypes.LimitOrder{Tif: hltypes.TifIOC}},
	}
	fee := &hltypes.BuilderFee{B: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", F: 2_000_000}
	_, err := h.client.Order(context.Background(), intent, fee)
	if hlerr.KindOf(err) != hlerr.BadBuilderFee {
		t.Errorf("KindOf(err) = %v, want BadBuilderFee", hlerr.KindOf(err))
	}
}

func TestCancelResolvesAssetID(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)

	if _, err := h.client.Cancel(context.Background(), "ETH", 42); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	action := h.lastAction(t)
	if action["type"] != "cancel" {
		t.Errorf("type = %v, want cancel", action["type"])
	}
	cancels := action["cancels"].([]any)[0].(map[string]any)
	if int(cancels["a"].(float64)) != 4 {
		t.Errorf("a = %v, want 4 (ETH's asset id)", cancels["a"])
	}
	if int(cancels["o"].(float64)) != 42 {
		t.Errorf("o = %v, want 42", cancels["o"])
	}
}

func TestCancelUnknownSymbolFails(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	_, err := h.client.Cancel(context.Background(), "NOPE", 1)
	if hlerr.KindOf(err) != hlerr.UnknownSymbol {
		t.Errorf("KindOf(err) = %v, want UnknownSymbol", hlerr.KindOf(err))
	}
}

func TestScheduleCancelOmitsTimeWhenNil(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	if _, err := h.client.ScheduleCancel(context.Background(), nil); err != nil {
		t.Fatalf("ScheduleCancel: %v", err)
	}
	action := h.lastAction(t)
	if _, ok := action["time"]; ok {
		t.Errorf("time should be omitted when nil, got %v", action["time"])
	}
}

func TestUpdateLeverage(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	if _, err := h.client.UpdateLeverage(context.Background(), "BTC", true, 10); err != nil {
		t.Fatalf("UpdateLeverage: %v", err)
	}
	action := h.lastAction(t)
	if int(action["asset"].(float64)) != 0 {
		t.Errorf("asset = %v, want 0 (BTC's id)", action["asset"])
	}
	if int(action["leverage"].(float64)) != 10 {
		t.Errorf("leverage = %v, want 10", action["leverage"])
	}
	if action["isCross"] != true {
		t.Errorf("isCross = %v, want true", action["isCross"])
	}
}

func TestCloseAllPositionsNoPositionFails(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	h.chState = `{"assetPositions":[]}`
	_, err := h.client.CloseAllPositions(context.Background())
	if hlerr.KindOf(err) != hlerr.NoPosition {
		t.Errorf("KindOf(err) = %v, want NoPosition", hlerr.KindOf(err))
	}
}

func TestCloseAllPositionsBuildsBulkOrder(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	h.chState = `{"assetPositions":[{"position":{"coin":"ETH","szi":"-0.0335"}}]}`
	if _, err := h.client.CloseAllPositions(context.Background()); err != nil {
		t.Fatalf("CloseAllPositions: %v", err)
	}
	action := h.lastAction(t)
	if action["type"] != "order" {
		t.Errorf("type = %v, want order", action["type"])
	}
}

func TestNextNonceMonotonic(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	h.client.clock = func() time.Time { return time.UnixMilli(1000) }

	first := h.client.nextNonce()
	second := h.client.nextNonce()
	if second <= first {
		t.Errorf("nonce not monotonic: %d then %d", first, second)
	}
}

func TestValidateBuilderFeeLowercasesAddress(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	fee := &hltypes.BuilderFee{B: "0xABCDEF0000000000000000000000000000000A", F: 10}
	got, err := h.client.validateBuilderFee(fee)
	if err != nil {
		t.Fatalf("validateBuilderFee: %v", err)
	}
	if got.B != "0xabcdef0000000000000000000000000000000a" {
		t.Errorf("B = %q, want lowercased", got.B)
	}
}

func TestValidateBuilderFeeNilIsValid(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	got, err := h.client.validateBuilderFee(nil)
	if err != nil || got != nil {
		t.Errorf("validateBuilderFee(nil) = (%v, %v), want (nil, nil)", got, err)
	}
}

func TestValidateBuilderFeeRejectsOverConfiguredCap(t *testing.T) {
	t.Parallel()
	h := newExchangeHarness(t)
	h.client.builderFeeCapBps = 500
	_, err := h.client.validateBuilderFee(&hltypes.BuilderFee{B: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", F: 501})
	if hlerr.KindOf(err) != hlerr.BadBuilderFee {
		t.Errorf("KindOf(err) = %v, want BadBuilderFee", hlerr.KindOf(err))
	}
}
