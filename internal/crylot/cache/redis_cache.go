// Package cache mantém os limites de aposta em cache no Redis e repassa os
// eventos do contrato para os canais de pub/sub consumidos pelo feed.
package cache

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/radieske/crylot/internal/crylot"
)

const keyBounds = "crylot:bounds"

// BoundsCache guarda o último StakeBounds commitado
type BoundsCache struct {
	R   *redis.Client
	TTL time.Duration
}

func NewBoundsCache(r *redis.Client, ttl time.Duration) *BoundsCache {
	return &BoundsCache{R: r, TTL: ttl}
}

type boundsEntry struct {
	MinBetWei string `json:"min_bet_wei"`
	MaxBetWei string `json:"max_bet_wei"`
}

// Get devolve (bounds, true) em caso de hit
func (c *BoundsCache) Get(ctx context.Context) (crylot.StakeBounds, bool, error) {
	b, err := c.R.Get(ctx, keyBounds).Bytes()
	if errors.Is(err, redis.Nil) {
		return crylot.StakeBounds{}, false, nil
	}
	if err != nil {
		return crylot.StakeBounds{}, false, err
	}
	var e boundsEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return crylot.StakeBounds{}, false, err
	}
	minBet, ok1 := new(big.Int).SetString(e.MinBetWei, 10)
	maxBet, ok2 := new(big.Int).SetString(e.MaxBetWei, 10)
	if !ok1 || !ok2 {
		return crylot.StakeBounds{}, false, nil // entrada corrompida conta como miss
	}
	return crylot.StakeBounds{MinBet: minBet, MaxBet: maxBet}, true, nil
}

func (c *BoundsCache) Set(ctx context.Context, b crylot.StakeBounds) error {
	v, _ := json.Marshal(boundsEntry{MinBetWei: b.MinBet.String(), MaxBetWei: b.MaxBet.String()})
	return c.R.Set(ctx, keyBounds, v, c.TTL).Err()
}

func (c *BoundsCache) Invalidate(ctx context.Context) error {
	return c.R.Del(ctx, keyBounds).Err()
}
