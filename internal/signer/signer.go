// Package signer implements the two action-signing paths from spec §4.D:
// the L1 msgpack-framed digest signed under the EIP-712 "Agent" type, and
// the user-signed path for the fixed transfer/permission catalog, each
// signed directly as EIP-712 typed data. It is grounded on the signing
// functions retrieved from the wider Hyperliquid SDK corpus, adapted to the
// stable-key-order JSON framing this spec requires instead of msgpack's own
// (sorting) map encoder.
package signer

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	emath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/vmihailenco/msgpack/v5"

	"hlgo/pkg/hlerr"
	"hlgo/pkg/hltypes"
)

// L1SigningChainID is the EIP-712 domain chain id for the L1 "Exchange"/
// Agent path, fixed at 1337 regardless of whether the client routes orders
// to mainnet or testnet — only the in-message source value varies. Grounded
// on the retrieved SDK corpus (e.g. dwdwow-hl-go's signing.go, sonirico's
// signing.go), which is unanimous that the Agent domain signs under 1337.
const L1SigningChainID = 1337

// UserSignedChainID is the EIP-712 domain chain id for the fixed
// user-signed action catalog ("HyperliquidSignTransaction" domain), fixed at
// 0x66eee (421614) per the same corpus.
const UserSignedChainID = 0x66eee

var eip712DomainType = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// PayloadField is one EIP-712 field of a user-signed action's primary type.
type PayloadField struct {
	Name string
	Type string
}

// Catalog of payload fields for the fixed user-signed action set (spec
// §4.D), grounded on the *SignTypes variables of the retrieved SDK. Every
// entry begins with hyperliquidChain, which Signer injects automatically.
var (
	ApproveAgentFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"agentAddress", "address"},
		{"agentName", "string"},
		{"nonce", "uint64"},
	}
	UserDexAbstractionFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"dex", "string"},
		{"nonce", "uint64"},
	}
	UsdSendFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"destination", "string"},
		{"amount", "string"},
		{"time", "uint64"},
	}
	Withdraw3Fields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"destination", "string"},
		{"amount", "string"},
		{"time", "uint64"},
	}
	SpotSendFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"destination", "string"},
		{"token", "string"},
		{"amount", "string"},
		{"time", "uint64"},
	}
	UsdClassTransferFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"amount", "string"},
		{"toPerp", "bool"},
		{"nonce", "uint64"},
	}
	SendAssetFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"destination", "string"},
		{"sourceDex", "string"},
		{"destinationDex", "string"},
		{"token", "string"},
		{"amount", "string"},
		{"fromSubAccount", "string"},
		{"nonce", "uint64"},
	}
	ApproveBuilderFeeFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"maxFeeRate", "string"},
		{"builder", "address"},
		{"nonce", "uint64"},
	}
	SetReferrerFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"code", "string"},
		{"nonce", "uint64"},
	}
	TokenDelegateFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"validator", "address"},
		{"wei", "uint64"},
		{"isUndelegate", "bool"},
		{"nonce", "uint64"},
	}
	ConvertToMultiSigUserFields = []PayloadField{
		{"hyperliquidChain", "string"},
		{"signers", "string"},
		{"nonce", "uint64"},
	}
)

// Signer holds the API wallet's ECDSA key. It is stateless beyond the key
// and network flag, so one Signer is safe to share across goroutines —
// signing never mutates shared state.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	isMainnet  bool
}

// New builds a Signer for the given wallet key and target network.
func New(privateKey *ecdsa.PrivateKey, isMainnet bool) *Signer {
	return &Signer{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		isMainnet:  isMainnet,
	}
}

// Address is the signer's derived address — the API wallet's own address,
// as distinct from any primary/vault address it may act on behalf of.
func (s *Signer) Address() common.Address { return s.address }

// EffectiveVault applies the spec §4.D omission rule: a configured vault is
// lower-cased and returned unless it equals the signer's own derived
// address, in which case nil is returned (omitted, not sent as "0x0").
func (s *Signer) EffectiveVault(configured string) *string {
	if configured == "" {
		return nil
	}
	lower := strings.ToLower(configured)
	if lower == strings.ToLower(s.address.Hex()) {
		return nil
	}
	return &lower
}

// SignL1Action signs the L1 path used by order/cancel/modify/updateLeverage
// and friends. actionJSON MUST come from json.Marshal on a struct with fixed
// field declaration order — the digest is byte-exact over actionJSON and
// this method never re-encodes or re-sorts it.
func (s *Signer) SignL1Action(actionJSON []byte, nonce uint64, vaultAddress *string, expiresAfter *uint64) (hltypes.Signature, error) {
	digest, err := actionDigest(actionJSON, nonce, vaultAddress, expiresAfter)
	if err != nil {
		return hltypes.Signature{}, err
	}

	source := "b"
	if s.isMainnet {
		source = "a"
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": eip712DomainType,
			"Agent": []apitypes.Type{
				{Name: "source", Type: "string"},
				{Name: "connectionId", Type: "bytes32"},
			},
		},
		PrimaryType: "Agent",
		Domain: apitypes.TypedDataDomain{
			Name:              "Exchange",
			Version:           "1",
			ChainId:           (*emath.HexOrDecimal256)(big.NewInt(L1SigningChainID)),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: apitypes.TypedDataMessage{
			"source":       source,
			"connectionId": digest,
		},
	}

	return s.signTypedData(typedData)
}

// SignUserSignedAction signs one of the fixed catalog of user-authenticated
// actions. fields must carry every payload field named in payloadTypes
// except hyperliquidChain, which is injected from the signer's network.
func (s *Signer) SignUserSignedAction(primaryType string, payloadTypes []PayloadField, fields map[string]any) (hltypes.Signature, error) {
	chainName := "Testnet"
	if s.isMainnet {
		chainName = "Mainnet"
	}

	message := apitypes.TypedDataMessage{"hyperliquidChain": chainName}
	apiTypes := make([]apitypes.Type, 0, len(payloadTypes))
	for _, f := range payloadTypes {
		apiTypes = append(apiTypes, apitypes.Type{Name: f.Name, Type: f.Type})
		if f.Name == "hyperliquidChain" {
			continue
		}
		v, ok := fields[f.Name]
		if !ok {
			return hltypes.Signature{}, hlerr.New(hlerr.EncodeError, "missing field "+f.Name+" for "+primaryType)
		}
		message[f.Name] = v
	}

	typedData := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": eip712DomainType,
			primaryType:    apiTypes,
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              "HyperliquidSignTransaction",
			Version:           "1",
			ChainId:           (*emath.HexOrDecimal256)(big.NewInt(UserSignedChainID)),
			VerifyingContract: "0x0000000000000000000000000000000000000000",
		},
		Message: message,
	}

	return s.signTypedData(typedData)
}

func (s *Signer) signTypedData(typedData apitypes.TypedData) (hltypes.Signature, error) {
	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return hltypes.Signature{}, hlerr.Wrap(hlerr.SignError, "hashing EIP-712 domain", err)
	}
	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return hltypes.Signature{}, hlerr.Wrap(hlerr.SignError, "hashing EIP-712 message", err)
	}

	raw := make([]byte, 0, 2+len(domainSeparator)+len(messageHash))
	raw = append(raw, 0x19, 0x01)
	raw = append(raw, domainSeparator...)
	raw = append(raw, messageHash...)
	digest := crypto.Keccak256(raw)

	sig, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return hltypes.Signature{}, hlerr.Wrap(hlerr.SignError, "ecdsa sign", err)
	}

	r := new(big.Int).SetBytes(sig[:32])
	ss := new(big.Int).SetBytes(sig[32:64])
	v := int(sig[64]) + 27

	return hltypes.Signature{
		R: hexutil.EncodeBig(r),
		S: hexutil.EncodeBig(ss),
		V: v,
	}, nil
}

// actionDigest builds the msgpack byte stream of spec §4.D step 2 and
// returns its keccak-256 digest. actionJSON is framed as a length-prefixed
// binary blob — never decoded and re-encoded as a msgpack map — which is
// how the "stable key order, never re-sorted" requirement survives into the
// digest. nonce and expiresAfter are framed as raw fixed-width big-endian
// integers rather than msgpack-encoded ones, mirroring the retrieved SDK's
// own manual byte appends for those two fields.
func actionDigest(actionJSON []byte, nonce uint64, vaultAddress *string, expiresAfter *uint64) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeBytes(actionJSON); err != nil {
		return nil, hlerr.Wrap(hlerr.EncodeError, "framing action bytes", err)
	}

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	buf.Write(nonceBytes[:])

	if vaultAddress == nil {
		if err := enc.EncodeBool(false); err != nil {
			return nil, hlerr.Wrap(hlerr.EncodeError, "framing hasVault", err)
		}
	} else {
		if err := enc.EncodeBool(true); err != nil {
			return nil, hlerr.Wrap(hlerr.EncodeError, "framing hasVault", err)
		}
		addrBytes, err := decodeAddress(*vaultAddress)
		if err != nil {
			return nil, err
		}
		if err := enc.EncodeBytes(addrBytes); err != nil {
			return nil, hlerr.Wrap(hlerr.EncodeError, "framing vault address", err)
		}
	}

	if expiresAfter == nil {
		if err := enc.EncodeBool(false); err != nil {
			return nil, hlerr.Wrap(hlerr.EncodeError, "framing hasExpires", err)
		}
	} else {
		if err := enc.EncodeBool(true); err != nil {
			return nil, hlerr.Wrap(hlerr.EncodeError, "framing hasExpires", err)
		}
		var expiresBytes [8]byte
		binary.BigEndian.PutUint64(expiresBytes[:], *expiresAfter)
		buf.Write(expiresBytes[:])
	}

	return crypto.Keccak256(buf.Bytes()), nil
}

func decodeAddress(addr string) ([]byte, error) {
	trimmed := strings.TrimPrefix(addr, "0x")
	b, err := hex.DecodeString(trimmed)
	if err != nil || len(b) != 20 {
		return nil, hlerr.New(hlerr.BadAddress, "malformed address: "+addr)
	}
	return b, nil
}
