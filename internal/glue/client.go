// Package glue wraps the substrate RPC client for the few extrinsics and
// chain-state reads the network handle needs.
package glue

import (
	"context"
	"fmt"

	gsrpc "github.com/centrifuge/go-substrate-rpc-client/v4"
	"github.com/centrifuge/go-substrate-rpc-client/v4/signature"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types"
	"github.com/centrifuge/go-substrate-rpc-client/v4/types/codec"
	"golang.org/x/crypto/blake2b"

	"github.com/paritytech/zombienet-sdk/internal/keys"
)

// Client submits extrinsics signed by the network's internal funding account.
type Client struct {
	signerURI string
	ss58      uint16
}

// NewClient creates a client signing with //Zombie.
func NewClient() *Client {
	return &Client{
		signerURI: keys.DevURI(keys.ZombieAccountName),
		ss58:      keys.SS58Prefix,
	}
}

// paraGenesisArgs is the SCALE shape of polkadot's ParaGenesisArgs.
type paraGenesisArgs struct {
	GenesisHead    types.Bytes
	ValidationCode types.Bytes
	ParaKind       bool
}

// RegisterParachain schedules para initialization through the sudo wrapper.
func (c *Client) RegisterParachain(ctx context.Context, wsURI string, id uint32, head, wasm string, onboard bool) error {
	api, err := gsrpc.NewSubstrateAPI(wsURI)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURI, err)
	}

	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return err
	}

	headBytes, err := codec.HexDecodeString(head)
	if err != nil {
		return fmt.Errorf("invalid genesis head: %w", err)
	}
	wasmBytes, err := codec.HexDecodeString(wasm)
	if err != nil {
		return fmt.Errorf("invalid validation code: %w", err)
	}

	inner, err := types.NewCall(meta, "ParasSudoWrapper.sudo_schedule_para_initialize",
		types.NewU32(id),
		paraGenesisArgs{
			GenesisHead:    types.NewBytes(headBytes),
			ValidationCode: types.NewBytes(wasmBytes),
			ParaKind:       onboard,
		})
	if err != nil {
		return err
	}

	return c.submitSudo(api, meta, inner)
}

// AuthorizeUpgrade submits ParachainSystem.authorize_upgrade with the code
// hash of the new runtime.
func (c *Client) AuthorizeUpgrade(ctx context.Context, wsURI string, paraID uint32, wasm []byte) error {
	api, err := gsrpc.NewSubstrateAPI(wsURI)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURI, err)
	}
	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return err
	}

	hash := blake2b.Sum256(wasm)
	inner, err := types.NewCall(meta, "ParachainSystem.authorize_upgrade",
		types.NewHash(hash[:]), types.NewBool(true))
	if err != nil {
		return err
	}
	return c.submitSudo(api, meta, inner)
}

// EnactAuthorizedUpgrade submits the previously authorized code.
func (c *Client) EnactAuthorizedUpgrade(ctx context.Context, wsURI string, paraID uint32, wasm []byte) error {
	api, err := gsrpc.NewSubstrateAPI(wsURI)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", wsURI, err)
	}
	meta, err := api.RPC.State.GetMetadataLatest()
	if err != nil {
		return err
	}

	call, err := types.NewCall(meta, "ParachainSystem.enact_authorized_upgrade", types.NewBytes(wasm))
	if err != nil {
		return err
	}
	return c.submit(api, meta, call)
}

// BestBlock returns the best block number.
func (c *Client) BestBlock(ctx context.Context, wsURI string) (uint64, error) {
	api, err := gsrpc.NewSubstrateAPI(wsURI)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to %s: %w", wsURI, err)
	}
	header, err := api.RPC.Chain.GetHeaderLatest()
	if err != nil {
		return 0, err
	}
	return uint64(header.Number), nil
}

// submitSudo wraps call in Sudo.sudo and submits it.
func (c *Client) submitSudo(api *gsrpc.SubstrateAPI, meta *types.Metadata, call types.Call) error {
	sudoCall, err := types.NewCall(meta, "Sudo.sudo", call)
	if err != nil {
		return err
	}
	return c.submit(api, meta, sudoCall)
}

// submit signs and submits one extrinsic with an immortal era.
func (c *Client) submit(api *gsrpc.SubstrateAPI, meta *types.Metadata, call types.Call) error {
	signer, err := signature.KeyringPairFromSecret(c.signerURI, c.ss58)
	if err != nil {
		return fmt.Errorf("failed to derive signer: %w", err)
	}

	genesisHash, err := api.RPC.Chain.GetBlockHash(0)
	if err != nil {
		return err
	}
	rv, err := api.RPC.State.GetRuntimeVersionLatest()
	if err != nil {
		return err
	}

	key, err := types.CreateStorageKey(meta, "System", "Account", signer.PublicKey)
	if err != nil {
		return err
	}
	var accountInfo types.AccountInfo
	if _, err := api.RPC.State.GetStorageLatest(key, &accountInfo); err != nil {
		return err
	}

	ext := types.NewExtrinsic(call)
	opts := types.SignatureOptions{
		BlockHash:          genesisHash,
		Era:                types.ExtrinsicEra{IsImmortalEra: true},
		GenesisHash:        genesisHash,
		Nonce:              types.NewUCompactFromUInt(uint64(accountInfo.Nonce)),
		SpecVersion:        rv.SpecVersion,
		Tip:                types.NewUCompactFromUInt(0),
		TransactionVersion: rv.TransactionVersion,
	}
	if err := ext.Sign(signer, opts); err != nil {
		return fmt.Errorf("failed to sign extrinsic: %w", err)
	}

	if _, err := api.RPC.Author.SubmitExtrinsic(ext); err != nil {
		return fmt.Errorf("failed to submit extrinsic: %w", err)
	}
	return nil
}
