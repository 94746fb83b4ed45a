// Package ratelimiter は外部API呼び出しの頻度を制限します。
package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter はトークンバケット方式で呼び出し頻度を制限します。
// 複数のgoroutineから同時に使用できます。
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter は1秒あたりperSecond回、最大burst回の連続呼び出しを許可するRateLimiterを生成します。
// perSecondが0以下の場合は制限しません。burstが1未満の場合は1とします。
func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

// Wait は呼び出しが許可されるまで待機します。
// 待機中にctxがキャンセルされた場合、または期限内に許可されない場合はエラーを返します。
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}
