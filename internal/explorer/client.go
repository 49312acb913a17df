package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"transferScope/internal/model"
)

// SortDir orders a fetched page by block number.
type SortDir string

const (
	SortAsc  SortDir = "asc"
	SortDesc SortDir = "desc"
)

// DefaultPageSize is the hard cap the explorer enforces per call.
const DefaultPageSize = 10000

// Source is the upstream transaction feed the ingestion controller reads.
// A page returned exactly at the cap signals more data in the range.
type Source interface {
	FetchPage(ctx context.Context, address string, startBlock, endBlock uint64, dir SortDir) ([]model.RawTransactionRecord, error)
	ChainTip(ctx context.Context) (uint64, error)
	ContractCreationBlock(ctx context.Context, address string) (uint64, error)
	PageSize() int
}

// Client talks to an etherscan-compatible explorer API.
type Client struct {
	baseURL   string
	apiKey    string
	pageSize  int
	http      *http.Client
	logger    *zap.Logger
	rateLimit time.Duration
}

// Config holds explorer client settings.
type Config struct {
	BaseURL   string
	APIKey    string
	PageSize  int
	Timeout   time.Duration
	RateLimit time.Duration
}

// NewClient builds an explorer client.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("explorer base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 210 * time.Millisecond
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		pageSize:  cfg.PageSize,
		http:      &http.Client{Timeout: cfg.Timeout},
		logger:    logger,
		rateLimit: cfg.RateLimit,
	}, nil
}

// PageSize returns the per-call record cap.
func (c *Client) PageSize() int {
	return c.pageSize
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type proxyEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// FetchPage fetches one ordered page of transactions for a contract and an
// inclusive block range. An empty range is an empty page, not an error.
func (c *Client) FetchPage(ctx context.Context, address string, startBlock, endBlock uint64, dir SortDir) ([]model.RawTransactionRecord, error) {
	params := url.Values{}
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", strconv.FormatUint(startBlock, 10))
	params.Set("endblock", strconv.FormatUint(endBlock, 10))
	params.Set("sort", string(dir))
	params.Set("offset", strconv.Itoa(c.pageSize))

	env, err := c.call(ctx, params)
	if err != nil {
		return nil, err
	}

	if env.Status != "1" {
		if strings.Contains(env.Message, "No transactions found") {
			return nil, nil
		}
		return nil, fmt.Errorf("explorer error: %s", env.Message)
	}

	var rows []model.RawTransactionRecord
	if err := json.Unmarshal(env.Result, &rows); err != nil {
		return nil, fmt.Errorf("malformed page: %w", err)
	}
	if len(rows) > c.pageSize {
		return nil, fmt.Errorf("malformed page: %d records above the %d cap", len(rows), c.pageSize)
	}

	assignInternalIndexes(rows, dir)
	return rows, nil
}

// ChainTip returns the latest block number via the proxy module.
func (c *Client) ChainTip(ctx context.Context) (uint64, error) {
	params := url.Values{}
	params.Set("module", "proxy")
	params.Set("action", "eth_blockNumber")

	env, err := c.call(ctx, params)
	if err != nil {
		return 0, err
	}

	var hexTip string
	if err := json.Unmarshal(env.Result, &hexTip); err != nil {
		return 0, fmt.Errorf("malformed chain tip: %w", err)
	}
	tip, err := parseHexUint(hexTip)
	if err != nil {
		return 0, fmt.Errorf("malformed chain tip %q: %w", hexTip, err)
	}
	return tip, nil
}

// ContractCreationBlock resolves the block a contract was deployed in.
// Two-step lookup: creation tx hash, then the block of that transaction.
// Returns 0 when the explorer cannot resolve it.
func (c *Client) ContractCreationBlock(ctx context.Context, address string) (uint64, error) {
	params := url.Values{}
	params.Set("module", "contract")
	params.Set("action", "getcontractcreation")
	params.Set("contractaddresses", address)

	env, err := c.call(ctx, params)
	if err != nil {
		return 0, err
	}
	if env.Status != "1" || len(env.Result) == 0 {
		c.logger.Warn("creation tx not found", zap.String("address", address), zap.String("message", env.Message))
		return 0, nil
	}

	var creations []struct {
		TxHash string `json:"txHash"`
	}
	if err := json.Unmarshal(env.Result, &creations); err != nil {
		return 0, fmt.Errorf("malformed creation response: %w", err)
	}
	if len(creations) == 0 || creations[0].TxHash == "" {
		return 0, nil
	}

	txParams := url.Values{}
	txParams.Set("module", "proxy")
	txParams.Set("action", "eth_getTransactionByHash")
	txParams.Set("txhash", creations[0].TxHash)

	txEnv, err := c.call(ctx, txParams)
	if err != nil {
		return 0, err
	}

	var tx struct {
		BlockNumber string `json:"blockNumber"`
	}
	if err := json.Unmarshal(txEnv.Result, &tx); err != nil || tx.BlockNumber == "" {
		return 0, nil
	}
	block, err := parseHexUint(tx.BlockNumber)
	if err != nil {
		return 0, fmt.Errorf("malformed creation block %q: %w", tx.BlockNumber, err)
	}
	return block, nil
}

func (c *Client) call(ctx context.Context, params url.Values) (envelope, error) {
	// Explorer keys are rate limited; pace every call.
	timer := time.NewTimer(c.rateLimit)
	select {
	case <-ctx.Done():
		timer.Stop()
		return envelope{}, ctx.Err()
	case <-timer.C:
	}

	if c.apiKey != "" {
		params.Set("apikey", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return envelope{}, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("explorer request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return envelope{}, fmt.Errorf("explorer status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, fmt.Errorf("read response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		// Proxy actions reply without status/message.
		var proxy proxyEnvelope
		if perr := json.Unmarshal(body, &proxy); perr == nil && len(proxy.Result) > 0 {
			return envelope{Status: "1", Result: proxy.Result}, nil
		}
		return envelope{}, fmt.Errorf("malformed response: %w", err)
	}
	if env.Status == "" && len(env.Result) > 0 {
		env.Status = "1"
	}
	return env, nil
}

// assignInternalIndexes numbers records sharing one hash by their order in
// chain direction, walking descending pages from the tail so the numbering
// does not depend on the requested sort. Boundary blocks are always
// re-fetched whole, so the numbering is stable across overlapping pages.
func assignInternalIndexes(rows []model.RawTransactionRecord, dir SortDir) {
	counts := make(map[string]uint64)
	assign := func(i int) {
		hash := strings.ToLower(rows[i].Hash)
		rows[i].InternalIndex = counts[hash]
		counts[hash]++
	}
	if dir == SortDesc {
		for i := len(rows) - 1; i >= 0; i-- {
			assign(i)
		}
		return
	}
	for i := range rows {
		assign(i)
	}
}

func parseHexUint(input string) (uint64, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "0x")
	if input == "" {
		return 0, fmt.Errorf("empty hex value")
	}
	return strconv.ParseUint(input, 16, 64)
}
