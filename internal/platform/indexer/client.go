// Package indexer reads the peer directory from the on-chain indexer
// contract.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/peerquote/internal/domain"
)

// indexerABI covers the single view function this client needs.
const indexerABI = `[{
	"name": "getLocators",
	"type": "function",
	"stateMutability": "view",
	"inputs": [
		{"name": "signerToken", "type": "address"},
		{"name": "senderToken", "type": "address"},
		{"name": "protocol", "type": "bytes2"},
		{"name": "cursor", "type": "address"},
		{"name": "limit", "type": "uint256"}
	],
	"outputs": [
		{"name": "locators", "type": "bytes32[]"},
		{"name": "scores", "type": "uint256[]"},
		{"name": "nextCursor", "type": "address"}
	]
}]`

// HeadCursor is the cursor value that starts a listing at the head of the
// index.
var HeadCursor = common.HexToAddress("0xFFfFfFffFFfffFFfFFfFFFFFffFFFffffFfFFFfF")

// Client is a domain.Directory backed by an indexer contract. It makes
// exactly one eth_call per GetLocators and does not retry.
type Client struct {
	caller  ethereum.ContractCaller
	address common.Address
	abi     abi.ABI
	logger  *slog.Logger
}

// NewClient creates a directory client for the indexer deployed at address.
func NewClient(caller ethereum.ContractCaller, address common.Address, logger *slog.Logger) (*Client, error) {
	parsed, err := abi.JSON(strings.NewReader(indexerABI))
	if err != nil {
		return nil, fmt.Errorf("indexer: parse abi: %w", err)
	}
	return &Client{
		caller:  caller,
		address: address,
		abi:     parsed,
		logger:  logger.With(slog.String("component", "indexer")),
	}, nil
}

// Dial connects to an Ethereum JSON-RPC endpoint and returns a directory
// client along with a function that closes the connection. A non-zero
// chainID must match the node's chain.
func Dial(ctx context.Context, rpcURL string, chainID int64, address common.Address, logger *slog.Logger) (*Client, func(), error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("indexer: dial: %w", err)
	}
	if chainID > 0 {
		got, err := ec.ChainID(ctx)
		if err != nil {
			ec.Close()
			return nil, nil, fmt.Errorf("indexer: chain id: %w", err)
		}
		if got.Cmp(big.NewInt(chainID)) != 0 {
			ec.Close()
			return nil, nil, fmt.Errorf("indexer: node is on chain %s, want %d", got, chainID)
		}
	}
	c, err := NewClient(ec, address, logger)
	if err != nil {
		ec.Close()
		return nil, nil, err
	}
	return c, ec.Close, nil
}

// blockNumberer is implemented by node clients such as *ethclient.Client.
type blockNumberer interface {
	BlockNumber(ctx context.Context) (uint64, error)
}

// Ping reports whether the node behind the directory answers. Callers that
// cannot report a block number are assumed reachable.
func (c *Client) Ping(ctx context.Context) error {
	bn, ok := c.caller.(blockNumberer)
	if !ok {
		return nil
	}
	if _, err := bn.BlockNumber(ctx); err != nil {
		return fmt.Errorf("indexer: ping: %w", err)
	}
	return nil
}

// locatorsResult mirrors the outputs of getLocators.
type locatorsResult struct {
	Locators   [][32]byte
	Scores     []*big.Int
	NextCursor common.Address
}

// GetLocators returns one page of encoded peer locators for the pair.
// Any failure is fatal for the caller's round and wraps
// domain.ErrDirectoryUnavailable.
func (c *Client) GetLocators(ctx context.Context, q domain.DirectoryQuery) (domain.LocatorPage, error) {
	if q.Limit <= 0 {
		return domain.LocatorPage{}, fmt.Errorf("indexer: %w: limit must be positive", domain.ErrInvalidRequest)
	}

	data, err := c.abi.Pack("getLocators",
		q.SignerToken,
		q.SenderToken,
		q.Protocol,
		q.Cursor,
		big.NewInt(int64(q.Limit)),
	)
	if err != nil {
		return domain.LocatorPage{}, fmt.Errorf("indexer: pack getLocators: %w", err)
	}

	to := c.address
	out, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return domain.LocatorPage{}, fmt.Errorf("indexer: call getLocators: %w: %w", domain.ErrDirectoryUnavailable, err)
	}

	var res locatorsResult
	if err := c.abi.UnpackIntoInterface(&res, "getLocators", out); err != nil {
		return domain.LocatorPage{}, fmt.Errorf("indexer: decode getLocators: %w: %w", domain.ErrDirectoryUnavailable, err)
	}

	c.logger.DebugContext(ctx, "directory page fetched",
		slog.String("signer_token", q.SignerToken.Hex()),
		slog.String("sender_token", q.SenderToken.Hex()),
		slog.Int("locators", len(res.Locators)),
		slog.String("next_cursor", res.NextCursor.Hex()),
	)

	return domain.LocatorPage{
		Locators:   res.Locators,
		Scores:     res.Scores,
		NextCursor: res.NextCursor,
	}, nil
}
