package avax

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/malbeclabs/stakes/stakes/pkg/engine"
)

const (
	methodGetCurrentValidators = "platform.getCurrentValidators"
	methodPeers                = "info.peers"
)

type ClientConfig struct {
	Logger    *slog.Logger
	PChainURL string
	InfoURL   string

	// HTTPClient defaults to a gzip-aware client with connection reuse.
	HTTPClient *http.Client
	Headers    map[string]string
	Retry      *RetryOptions
}

func (cfg *ClientConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.PChainURL == "" {
		return errors.New("p-chain url is required")
	}
	if cfg.InfoURL == "" {
		return errors.New("info url is required")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newHTTP()
	}
	return nil
}

// Client fetches the validator set and the peer list from an Avalanche node API.
type Client struct {
	log    *slog.Logger
	pchain jsonrpc.RPCClient
	info   jsonrpc.RPCClient
	retry  RetryOptions
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}
	opts := &jsonrpc.RPCClientOpts{
		HTTPClient:    cfg.HTTPClient,
		CustomHeaders: cfg.Headers,
	}
	return &Client{
		log:    cfg.Logger,
		pchain: jsonrpc.NewClientWithOpts(cfg.PChainURL, opts),
		info:   jsonrpc.NewClientWithOpts(cfg.InfoURL, opts),
		retry:  cfg.Retry.withDefaults(),
	}, nil
}

// GetCurrentValidators returns the current primary network validators. Reward addresses are
// normalized; a validator without any reward owner is returned with no addresses.
func (c *Client) GetCurrentValidators(ctx context.Context) ([]engine.ValidatorRecord, error) {
	reply, err := callFor[getCurrentValidatorsReply](ctx, c, c.pchain, methodGetCurrentValidators, &getCurrentValidatorsArgs{})
	if err != nil {
		return nil, fmt.Errorf("failed to get current validators: %w", err)
	}

	records := make([]engine.ValidatorRecord, 0, len(reply.Validators))
	for _, v := range reply.Validators {
		records = append(records, toValidatorRecord(v))
	}
	c.log.Debug("avax: fetched validators", "count", len(records))
	return records, nil
}

// GetPeers returns the peers the node is connected to. The IP is the host part of the peer's
// advertised address.
func (c *Client) GetPeers(ctx context.Context) ([]engine.PeerRecord, error) {
	reply, err := callFor[peersReply](ctx, c, c.info, methodPeers, &peersArgs{})
	if err != nil {
		return nil, fmt.Errorf("failed to get peers: %w", err)
	}

	peers := make([]engine.PeerRecord, 0, len(reply.Peers))
	for _, p := range reply.Peers {
		if p.NodeID == "" {
			continue
		}
		addr := p.PublicIP
		if addr == "" {
			addr = p.IP
		}
		peers = append(peers, engine.PeerRecord{
			ID:      p.NodeID,
			IP:      hostOnly(addr),
			Version: p.Version,
		})
	}
	c.log.Debug("avax: fetched peers", "count", len(peers), "reported", uint64(reply.NumPeers))
	return peers, nil
}

func toValidatorRecord(v apiValidator) engine.ValidatorRecord {
	rec := engine.ValidatorRecord{ID: v.NodeID}

	switch {
	case v.ValidationRewardOwner != nil && len(v.ValidationRewardOwner.Addresses) > 0:
		rec.RewardAddresses = engine.NormalizeAddresses(v.ValidationRewardOwner.Addresses)
	case v.RewardOwner != nil:
		rec.RewardAddresses = engine.NormalizeAddresses(v.RewardOwner.Addresses)
	}

	switch {
	case v.Weight != nil:
		rec.Weight = uint64(*v.Weight)
	case v.StakeAmount != nil:
		rec.Weight = uint64(*v.StakeAmount)
	}

	if v.DelegatorWeight != nil {
		rec.DelegatedWeight = uint64(*v.DelegatorWeight)
	} else {
		for _, d := range v.Delegators {
			rec.DelegatedWeight += d.amount()
		}
	}

	if v.StartTime != 0 {
		rec.StartTime = time.Unix(int64(v.StartTime), 0).UTC()
	}
	if v.EndTime != 0 {
		rec.EndTime = time.Unix(int64(v.EndTime), 0).UTC()
	}
	return rec
}

func hostOnly(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
