package affordability

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"wagerbook/service"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Client checks spendable cash against the external wallet service. Results
// are cached in Redis for a short TTL because the wager flow can hit the
// wallet several times for the same party in quick succession. Checks are
// advisory only; the wallet reserves nothing until escrow funding clears.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *redis.Client
	ttl     time.Duration
}

// ConnectRedis opens the affordability cache connection
func ConnectRedis(addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return rdb, nil
}

// NewClient creates a wallet-backed affordability provider. The cache may be
// nil, in which case every check hits the wallet.
func NewClient(baseURL string, cache *redis.Client, ttl time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 2 * time.Second},
		cache:   cache,
		ttl:     ttl,
	}
}

type checkRequest struct {
	PartyID     string `json:"party_id"`
	AmountCents int64  `json:"amount_cents"`
}

type checkResponse struct {
	CanAfford      bool  `json:"can_afford"`
	ShortfallCents int64 `json:"shortfall_cents"`
}

// CheckAffordability reports whether a party can cover a cash amount
func (c *Client) CheckAffordability(ctx context.Context, partyID string, amount int64) (*service.AffordabilityResult, error) {
	if amount <= 0 {
		return &service.AffordabilityResult{CanAfford: true}, nil
	}

	cacheKey := fmt.Sprintf("affordability:%s:%d", partyID, amount)
	if cached := c.fromCache(ctx, cacheKey); cached != nil {
		return cached, nil
	}

	body, _ := json.Marshal(checkRequest{PartyID: partyID, AmountCents: amount})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/wallet/affordability", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build affordability request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wallet affordability check failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("wallet affordability http %d", res.StatusCode)
	}

	var out checkResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode affordability response: %w", err)
	}

	result := &service.AffordabilityResult{
		CanAfford: out.CanAfford,
		Shortfall: out.ShortfallCents,
	}
	c.toCache(ctx, cacheKey, result)
	return result, nil
}

func (c *Client) fromCache(ctx context.Context, key string) *service.AffordabilityResult {
	if c.cache == nil {
		return nil
	}

	raw, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Debug("Affordability cache read failed")
		}
		return nil
	}

	var result service.AffordabilityResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil
	}
	return &result
}

// AlwaysAfford approves every check. Used in development when no wallet
// service is configured.
type AlwaysAfford struct{}

func (AlwaysAfford) CheckAffordability(ctx context.Context, partyID string, amount int64) (*service.AffordabilityResult, error) {
	return &service.AffordabilityResult{CanAfford: true}, nil
}

func (c *Client) toCache(ctx context.Context, key string, result *service.AffordabilityResult) {
	if c.cache == nil {
		return
	}

	raw, _ := json.Marshal(result)
	if err := c.cache.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.WithError(err).Debug("Affordability cache write failed")
	}
}
