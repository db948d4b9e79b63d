package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ABI of the EnergyToken (ETK) contract, limited to the settlement surface.
const energyTokenABI = `[
	{"type":"function","name":"minSettlementWh","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"conversionRatio","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"calculateTokenAmount","stateMutability":"view","inputs":[{"name":"wh","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"authorizedMeters","stateMutability":"view","inputs":[{"name":"meter","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"authorizeMeter","stateMutability":"nonpayable","inputs":[{"name":"owner","type":"address"},{"name":"meterId","type":"string"},{"name":"meter","type":"address"}],"outputs":[]},
	{"type":"function","name":"settleNetEnergy","stateMutability":"nonpayable","inputs":[{"name":"wallet","type":"address"},{"name":"meterId","type":"string"},{"name":"account","type":"address"},{"name":"netWh","type":"int256"},{"name":"settlementKey","type":"string"}],"outputs":[]}
]`

// tokenDecimals converts contract token units to ETK.
var tokenDecimals = big.NewFloat(1e18)

const settlementGasLimit = 300000

// EVMClient talks to the EnergyToken contract on an EVM chain. Mutating calls
// are signed with the backend operator key; view calls go through eth_call.
type EVMClient struct {
	client   *ethclient.Client
	contract common.Address
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	logger   *zap.Logger
}

// NewEVMClient dials the RPC endpoint and prepares the contract binding.
func NewEVMClient(rpcURL, contractAddr, operatorKeyHex string, chainID int64, logger *zap.Logger) (*EVMClient, error) {
	if !common.IsHexAddress(contractAddr) {
		return nil, fmt.Errorf("ledger: invalid contract address %q", contractAddr)
	}
	parsed, err := abi.JSON(strings.NewReader(energyTokenABI))
	if err != nil {
		return nil, fmt.Errorf("ledger: parse abi: %w", err)
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(operatorKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: operator key: %w", err)
	}
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial %s: %w", rpcURL, err)
	}
	return &EVMClient{
		client:   client,
		contract: common.HexToAddress(contractAddr),
		abi:      parsed,
		key:      key,
		from:     crypto.PubkeyToAddress(key.PublicKey),
		chainID:  big.NewInt(chainID),
		logger:   logger,
	}, nil
}

// MinSettlementWh returns the ledger's minimum settlement threshold in Wh.
func (c *EVMClient) MinSettlementWh(ctx context.Context) (float64, error) {
	out, err := c.call(ctx, "minSettlementWh")
	if err != nil {
		return 0, err
	}
	wh, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.New("ledger: unexpected minSettlementWh result")
	}
	val, _ := new(big.Float).SetInt(wh).Float64()
	return val, nil
}

// ConversionRatio returns ETK minted per kWh, scaled down from 1e18.
func (c *EVMClient) ConversionRatio(ctx context.Context) (float64, error) {
	out, err := c.call(ctx, "conversionRatio")
	if err != nil {
		return 0, err
	}
	ratio, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.New("ledger: unexpected conversionRatio result")
	}
	val, _ := new(big.Float).Quo(new(big.Float).SetInt(ratio), tokenDecimals).Float64()
	return val, nil
}

// CalculateEtkAmount converts absolute integer Wh into an ETK amount.
func (c *EVMClient) CalculateEtkAmount(ctx context.Context, absWh int64) (float64, error) {
	if absWh < 0 {
		return 0, fmt.Errorf("ledger: negative wh %d", absWh)
	}
	out, err := c.call(ctx, "calculateTokenAmount", big.NewInt(absWh))
	if err != nil {
		return 0, err
	}
	amount, ok := out[0].(*big.Int)
	if !ok {
		return 0, errors.New("ledger: unexpected calculateTokenAmount result")
	}
	val, _ := new(big.Float).Quo(new(big.Float).SetInt(amount), tokenDecimals).Float64()
	return val, nil
}

// IsMeterAuthorized reports whether the meter address may settle.
func (c *EVMClient) IsMeterAuthorized(ctx context.Context, meterAddress string) (bool, error) {
	if !common.IsHexAddress(meterAddress) {
		return false, fmt.Errorf("ledger: invalid meter address %q", meterAddress)
	}
	out, err := c.call(ctx, "authorizedMeters", common.HexToAddress(meterAddress))
	if err != nil {
		return false, err
	}
	authorized, ok := out[0].(bool)
	if !ok {
		return false, errors.New("ledger: unexpected authorizedMeters result")
	}
	return authorized, nil
}

// AuthorizeMeter registers the meter under its owner on the ledger.
func (c *EVMClient) AuthorizeMeter(ctx context.Context, ownerAddress, meterID, meterAddress string) (string, error) {
	if !common.IsHexAddress(ownerAddress) || !common.IsHexAddress(meterAddress) {
		return "", errors.New("ledger: invalid owner or meter address")
	}
	return c.transact(ctx, "authorizeMeter",
		common.HexToAddress(ownerAddress),
		meterID,
		common.HexToAddress(meterAddress),
	)
}

// SettleNetEnergy mints or burns ETK for the signed integer net Wh and returns
// the transaction hash.
func (c *EVMClient) SettleNetEnergy(ctx context.Context, walletAddress, meterID, accountAddress string, netWh int64, settlementKey string) (string, error) {
	if !common.IsHexAddress(walletAddress) || !common.IsHexAddress(accountAddress) {
		return "", errors.New("ledger: invalid wallet or account address")
	}
	hash, err := c.transact(ctx, "settleNetEnergy",
		common.HexToAddress(walletAddress),
		meterID,
		common.HexToAddress(accountAddress),
		big.NewInt(netWh),
		settlementKey,
	)
	if err != nil {
		return "", err
	}
	c.logger.Info("ledger settlement submitted",
		zap.String("meter_id", meterID),
		zap.Int64("net_wh", netWh),
		zap.String("tx_hash", hash),
	)
	return hash, nil
}

func (c *EVMClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: pack %s: %w", method, err)
	}
	raw, err := c.client.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: call %s: %w", method, err)
	}
	out, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("ledger: unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("ledger: empty result for %s", method)
	}
	return out, nil
}

func (c *EVMClient) transact(ctx context.Context, method string, args ...interface{}) (string, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("ledger: pack %s: %w", method, err)
	}
	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("ledger: nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("ledger: gas price: %w", err)
	}
	tx := types.NewTransaction(nonce, c.contract, big.NewInt(0), settlementGasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("ledger: sign %s: %w", method, err)
	}
	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("ledger: send %s: %w", method, err)
	}
	return signed.Hash().Hex(), nil
}
