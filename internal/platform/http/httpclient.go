// Package http は外部のテキスト生成APIを呼び出すためのHTTPクライアントを提供します。
package http

import (
	"net"
	"net/http"
	"time"
)

// 接続プールとハンドシェイクの設定値です。
const (
	dialTimeout         = 5 * time.Second
	keepAlive           = 30 * time.Second
	maxIdleConns        = 100
	maxIdleConnsPerHost = 16 // 生成APIは単一ホストのため既定の2では足りない
	idleConnTimeout     = 90 * time.Second
	tlsHandshakeTimeout = 5 * time.Second
)

// NewHTTPClient は生成API呼び出し用のHTTPクライアントを作成します。
//
//   - Proxy: HTTP_PROXY などの環境変数に従う
//   - Dialer / TLS: 接続確立は5秒で打ち切る
//   - ResponseHeaderTimeout: timeoutが正の場合は同じ値でヘッダー待ちも制限する
//   - Client.Timeout: リクエスト全体のタイムアウト。0以下は無制限（呼び出し側のcontextに任せる）
//
// http.DefaultClient にはタイムアウトがないため使用しないこと。
func NewHTTPClient(timeout time.Duration) *http.Client {
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}
	if timeout < 0 {
		timeout = 0
	}
	if timeout > 0 {
		t.ResponseHeaderTimeout = timeout
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
