// transfers.go implements the Transfers and user-signed groups of spec
// §4.G: the fixed catalog of spec §4.D's user-signed EIP-712 actions, plus
// the L1-signed transfer variants (subAccountTransfer, subAccountSpotTransfer,
// vaultTransfer) and the multi-sig wrapper, none of which belong to that
// fixed catalog.
package exchange

import (
	"context"
	"encoding/json"
	"math/big"

	"hlgo/internal/signer"
	"hlgo/pkg/hlerr"
)

func bigUint64(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

// UsdTransfer sends amount USD to destination on the perp account.
func (c *Client) UsdTransfer(ctx context.Context, destination, amount string) (json.RawMessage, error) {
	t := c.nextNonce()
	action := struct {
		Type        string `json:"type"`
		Destination string `json:"destination"`
		Amount      string `json:"amount"`
		Time        uint64 `json:"time"`
	}{"usdSend", destination, amount, t}

	fields := map[string]any{"destination": destination, "amount": amount, "time": bigUint64(t)}
	return c.submitUserSigned(ctx, action, t, "HyperliquidTransaction:UsdSend", signer.UsdSendFields, fields)
}

// SpotTransfer sends amount of token to destination on the spot account.
func (c *Client) SpotTransfer(ctx context.Context, destination, token, amount string) (json.RawMessage, error) {
	t := c.nextNonce()
	action := struct {
		Type        string `json:"type"`
		Destination string `json:"destination"`
		Token       string `json:"token"`
		Amount      string `json:"amount"`
		Time        uint64 `json:"time"`
	}{"spotSend", destination, token, amount, t}

	fields := map[string]any{"destination": destination, "token": token, "amount": amount, "time": bigUint64(t)}
	return c.submitUserSigned(ctx, action, t, "HyperliquidTransaction:SpotSend", signer.SpotSendFields, fields)
}

// WithdrawFromBridge withdraws amount USD to destination via the bridge.
func (c *Client) WithdrawFromBridge(ctx context.Context, destination, amount string) (json.RawMessage, error) {
	t := c.nextNonce()
	action := struct {
		Type        string `json:"type"`
		Destination string `json:"destination"`
		Amount      string `json:"amount"`
		Time        uint64 `json:"time"`
	}{"withdraw3", destination, amount, t}

	fields := map[string]any{"destination": destination, "amount": amount, "time": bigUint64(t)}
	return c.submitUserSigned(ctx, action, t, "HyperliquidTransaction:Withdraw", signer.Withdraw3Fields, fields)
}

// UsdClassTransfer moves amount USD between the spot and perp classes.
// toPerp=true moves spot→perp. Carries vault semantics in-band, so
// submitUserSigned's envelope omits vaultAddress (spec §4.D).
func (c *Client) UsdClassTransfer(ctx context.Context, amount string, toPerp bool) (json.RawMessage, error) {
	nonce := c.nextNonce()
	action := struct {
		Type   string `json:"type"`
		Amount string `json:"amount"`
		ToPerp bool   `json:"toPerp"`
		Nonce  uint64 `json:"nonce"`
	}{"usdClassTransfer", amount, toPerp, nonce}

	fields := map[string]any{"amount": amount, "toPerp": toPerp, "nonce": bigUint64(nonce)}
	return c.submitUserSigned(ctx, action, nonce, "HyperliquidTransaction:UsdClassTransfer", signer.UsdClassTransferFields, fields)
}

// SendAsset moves a token between dexes/sub-accounts. Carries vault
// semantics in-band (spec §4.D).
func (c *Client) SendAsset(ctx context.Context, destination, sourceDex, destinationDex, token, amount, fromSubAccount string) (json.RawMessage, error) {
	nonce := c.nextNonce()
	action := struct {
		Type           string `json:"type"`
		Destination    string `json:"destination"`
		SourceDex      string `json:"sourceDex"`
		DestinationDex string `json:"destinationDex"`
		Token          string `json:"token"`
		Amount         string `json:"amount"`
		FromSubAccount string `json:"fromSubAccount"`
		Nonce          uint64 `json:"nonce"`
	}{"sendAsset", destination, sourceDex, destinationDex, token, amount, fromSubAccount, nonce}

	fields := map[string]any{
		"destination":    destination,
		"sourceDex":      sourceDex,
		"destinationDex": destinationDex,
		"token":          token,
		"amount":         amount,
		"fromSubAccount": fromSubAccount,
		"nonce":          bigUint64(nonce),
	}
	return c.submitUserSigned(ctx, action, nonce, "HyperliquidTransaction:SendAsset", signer.SendAssetFields, fields)
}

// ApproveAgent registers an API wallet (agent) for the account. name is
// optional; an unnamed agent overwrites any other unnamed agent.
func (c *Client) ApproveAgent(ctx context.Context, agentAddress, name string) (json.RawMessage, error) {
	nonce := c.nextNonce()
	action := struct {
		Type         string `json:"type"`
		AgentAddress string `json:"agentAddress"`
		AgentName    string `json:"agentName,omitempty"`
		Nonce        uint64 `json:"nonce"`
	}{"approveAgent", agentAddress, name, nonce}

	fields := map[string]any{"agentAddress": agentAddress, "agentName": name, "nonce": bigUint64(nonce)}
	return c.submitUserSigned(ctx, action, nonce, "HyperliquidTransaction:ApproveAgent", signer.ApproveAgentFields, fields)
}

// UserDexAbstraction opts an account into (or out of) a builder-deployed dex.
func (c *Client) UserDexAbstraction(ctx context.Context, dex string) (json.RawMessage, error) {
	nonce := c.nextNonce()
	action := struct {
		Type  string `json:"type"`
		Dex   string `json:"dex"`
		Nonce uint64 `json:"nonce"`
	}{"userDexAbstraction", dex, nonce}

	fields := map[string]any{"dex": dex, "nonce": bigUint64(nonce)}
	return c.submitUserSigned(ctx, action, nonce, "HyperliquidTransaction:UserDexAbstraction", signer.UserDexAbstractionFields, fields)
}

// ApproveBuilderFee authorizes builder to attach up to maxFeeRate on orders
// this account submits through it.
func (c *Client) ApproveBuilderFee(ctx context.Context, maxFeeRate, builder string) (json.RawMessage, error) {
	nonce := c.nextNonce()
	action := struct {
		Type       string `json:"type"`
		MaxFeeRate string `json:"maxFeeRate"`
		Builder    string `json:"builder"`
		Nonce      uint64 `json:"nonce"`
	}{"approveBuilderFee", maxFeeRate, builder, nonce}

	fields := map[string]any{"maxFeeRate": maxFeeRate, "builder": builder, "nonce": bigUint64(nonce)}
	return c.submitUserSigned(ctx, action, nonce, "HyperliquidTransaction:ApproveBuilderFee", signer.ApproveBuilderFeeFields, fields)
}

// SetReferrer attaches a referral code to the account, once.
func (c *Client) SetReferrer(ctx context.Context, code string) (json.RawMessage, error) {
	nonce := c.nextNonce()
	action := struct {
		Type  string `json:"type"`
		Code  string `json:"code"`
		Nonce uint64 `json:"nonce"`
	}{"setReferrer", code, nonce}

	fields := map[string]any{"code": code, "nonce": bigUint64(nonce)}
	return c.submitUserSigned(ctx, action, nonce, "HyperliquidTransaction:SetReferrer", signer.SetReferrerFields, fields)
}

// TokenDelegate delegates (or undelegates) wei of staked HYPE to validator.
func (c *Client) TokenDelegate(ctx context.Context, validator string, wei uint64, isUndelegate bool) (json.RawMessage, error) {
	nonce := c.nextNonce()
	action := struct {
		Type         string `json:"type"`
		Validator    string `json:"validator"`
		Wei          uint64 `json:"wei"`
		IsUndelegate bool   `json:"isUndelegate"`
		Nonce        uint64 `json:"nonce"`
	}{"tokenDelegate", validator, wei, isUndelegate, nonce}

	fields := map[string]any{
		"validator":    validator,
		"wei":          bigUint64(wei),
		"isUndelegate": isUndelegate,
		"nonce":        bigUint64(nonce),
	}
	return c.submitUserSigned(ctx, action, nonce, "HyperliquidTransaction:TokenDelegate", signer.TokenDelegateFields, fields)
}

// ConvertToMultiSigUser converts the account into a multi-sig user governed
// by signers (a JSON-encoded list of authorized signer addresses plus
// threshold, per the exchange's multi-sig schema).
func (c *Client) ConvertToMultiSigUser(ctx context.Context, signersJSON string) (json.RawMessage, error) {
	nonce := c.nextNonce()
	action := struct {
		Type    string `json:"type"`
		Signers string `json:"signers"`
		Nonce   uint64 `json:"nonce"`
	}{"convertToMultiSigUser", signersJSON, nonce}

	fields := map[string]any{"signers": signersJSON, "nonce": bigUint64(nonce)}
	return c.submitUserSigned(ctx, action, nonce, "HyperliquidTransaction:ConvertToMultiSigUser", signer.ConvertToMultiSigUserFields, fields)
}

// subAccountTransfer, subAccountSpotTransfer, and vaultTransfer are L1
// actions (not in the fixed user-signed catalog of spec §4.D) even though
// they move funds, so they go through submitL1 like order/cancel.

type subAccountTransferAction struct {
	Type         string `json:"type"`
	SubAccountUser string `json:"subAccountUser"`
	IsDeposit    bool   `json:"isDeposit"`
	Usd          int64  `json:"usd"`
}

// SubAccountTransfer moves amount USD between the parent account and a
// sub-account; isDeposit=true moves parent→sub.
func (c *Client) SubAccountTransfer(ctx context.Context, subAccountUser, amount string, isDeposit bool) (json.RawMessage, error) {
	usd, err := usdInt(amount)
	if err != nil {
		return nil, err
	}
	action := subAccountTransferAction{Type: "subAccountTransfer", SubAccountUser: subAccountUser, IsDeposit: isDeposit, Usd: usd}
	return c.submitL1(ctx, action, nil, nil)
}

type subAccountSpotTransferAction struct {
	Type           string `json:"type"`
	SubAccountUser string `json:"subAccountUser"`
	IsDeposit      bool   `json:"isDeposit"`
	Token          string `json:"token"`
	Amount         string `json:"amount"`
}

// SubAccountSpotTransfer moves amount of token between the parent account
// and a sub-account.
func (c *Client) SubAccountSpotTransfer(ctx context.Context, subAccountUser, token, amount string, isDeposit bool) (json.RawMessage, error) {
	action := subAccountSpotTransferAction{Type: "subAccountSpotTransfer", SubAccountUser: subAccountUser, IsDeposit: isDeposit, Token: token, Amount: amount}
	return c.submitL1(ctx, action, nil, nil)
}

type vaultTransferAction struct {
	Type           string `json:"type"`
	VaultAddress   string `json:"vaultAddress"`
	IsDeposit      bool   `json:"isDeposit"`
	Usd            int64  `json:"usd"`
}

// VaultTransfer deposits into or withdraws from a vault.
func (c *Client) VaultTransfer(ctx context.Context, vaultAddress, amount string, isDeposit bool) (json.RawMessage, error) {
	usd, err := usdInt(amount)
	if err != nil {
		return nil, err
	}
	action := vaultTransferAction{Type: "vaultTransfer", VaultAddress: vaultAddress, IsDeposit: isDeposit, Usd: usd}
	return c.submitL1(ctx, action, nil, nil)
}

// CreateSubAccount creates a new sub-account owned by the caller.
func (c *Client) CreateSubAccount(ctx context.Context, name string) (json.RawMessage, error) {
	action := struct {
		Type string `json:"type"`
		Name string `json:"name"`
	}{"createSubAccount", name}
	return c.submitL1(ctx, action, nil, nil)
}

// AgentEnableDexAbstraction toggles dex abstraction at the agent level.
func (c *Client) AgentEnableDexAbstraction(ctx context.Context) (json.RawMessage, error) {
	action := struct {
		Type string `json:"type"`
	}{"agentEnableDexAbstraction"}
	return c.submitL1(ctx, action, nil, nil)
}

// multiSigEnvelope is the outer wrapper an L1/user-signed action is placed
// into when submitted on behalf of a multi-sig user: the inner action plus
// the gathered signatures of the other authorized signers.
type multiSigEnvelope struct {
	Type             string            `json:"type"`
	SigningUser      string            `json:"signingUser"`
	Signatures       []json.RawMessage `json:"signatures"`
	Payload          json.RawMessage   `json:"payload"`
}

// MultiSigWrapper submits innerActionJSON (already signed by this wallet as
// one of the multi-sig participants) alongside the other participants'
// collected signatures, on behalf of signingUser.
func (c *Client) MultiSigWrapper(ctx context.Context, signingUser string, innerActionJSON json.RawMessage, otherSignatures []json.RawMessage) (json.RawMessage, error) {
	if len(innerActionJSON) == 0 {
		return nil, hlerr.New(hlerr.EncodeError, "multiSig wrapper requires a non-empty inner action")
	}
	action := multiSigEnvelope{
		Type:        "multiSig",
		SigningUser: signingUser,
		Signatures:  otherSignatures,
		Payload:     innerActionJSON,
	}
	return c.submitL1(ctx, action, nil, nil)
}
