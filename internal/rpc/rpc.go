package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	config "github.com/kovanet/kovascan/configs"
	"github.com/kovanet/kovascan/internal/common"
)

// ErrBlockNotFound signals a height beyond the chain head. The ingester
// treats it as "wait and poll", not as a failure.
var ErrBlockNotFound = errors.New("block not found")

type IRPCClient interface {
	GetBlock(ctx context.Context, height int64) (*common.BlockData, error)
	GetURL() string
	Close()
}

type Client struct {
	httpClient *http.Client
	url        string
}

func Initialize() (IRPCClient, error) {
	rpcUrl := config.Cfg.RPC.URL
	if rpcUrl == "" {
		return nil, fmt.Errorf("RPC_URL environment variable is not set")
	}
	timeout := time.Duration(config.Cfg.RPC.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	log.Debug().Str("url", rpcUrl).Msg("Initializing node client")
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		url:        rpcUrl,
	}, nil
}

func (c *Client) GetURL() string {
	return c.url
}

func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// GetBlock fetches one block with its full transaction list from the node.
// Returns ErrBlockNotFound when the node answers 404 or a JSON null body.
func (c *Client) GetBlock(ctx context.Context, height int64) (*common.BlockData, error) {
	url := fmt.Sprintf("%s/get_block/%d", c.url, height)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build block request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch block %d: %w", height, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close response body")
		}
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrBlockNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("unexpected status %d fetching block %d: %s", resp.StatusCode, height, string(body))
	}

	var wire *wireBlock
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode block %d: %w", height, err)
	}
	if wire == nil {
		// the node serialises heights beyond the head as a JSON null
		return nil, ErrBlockNotFound
	}

	data, err := wire.toBlockData()
	if err != nil {
		return nil, fmt.Errorf("invalid block %d from node: %w", height, err)
	}
	return data, nil
}
