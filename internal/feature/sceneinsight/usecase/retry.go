package usecase

import "time"

// RetryPolicy はテキスト生成失敗時の再試行ポリシーです。
type RetryPolicy struct {
	MaxAttempts int           // 初回を含む最大試行回数
	BaseDelay   time.Duration // 1回目の再試行までの待機時間
	MaxDelay    time.Duration // 待機時間の上限
}

// DefaultRetryPolicy は既定の再試行ポリシー（3回・500ms起点・上限4s）を返します。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    4 * time.Second,
	}
}

// normalized は不正な値を既定値で補ったポリシーを返します。
func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Backoff は attempt 回目の失敗後に待機する時間を返します（指数バックオフ、上限あり）。
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := p.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay || d <= 0 {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}
