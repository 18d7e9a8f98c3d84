package avax

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

const (
	defaultMaxAttempts = 4
	defaultBaseBackoff = 500 * time.Millisecond
	defaultMaxBackoff  = 5 * time.Second
)

type RetryOptions struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func (o *RetryOptions) withDefaults() RetryOptions {
	var opt RetryOptions
	if o != nil {
		opt = *o
	}
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = defaultMaxAttempts
	}
	if opt.BaseBackoff <= 0 {
		opt.BaseBackoff = defaultBaseBackoff
	}
	if opt.MaxBackoff <= 0 {
		opt.MaxBackoff = defaultMaxBackoff
	}
	return opt
}

func (o RetryOptions) backOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.BaseBackoff
	b.MaxInterval = o.MaxBackoff
	return b
}

// callFor runs one JSON-RPC call, retrying transient failures with exponential backoff.
func callFor[T any](ctx context.Context, c *Client, rpc jsonrpc.RPCClient, method string, params any) (T, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		if attempt > 1 {
			c.log.Warn("avax: retrying call", "method", method, "attempt", attempt)
		}
		var out T
		err := rpc.CallFor(ctx, &out, method, params)
		if err != nil {
			if !isRetryable(err) {
				return out, backoff.Permanent(err)
			}
			return out, err
		}
		return out, nil
	},
		backoff.WithBackOff(c.retry.backOff()),
		backoff.WithMaxTries(uint(c.retry.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
}

// errCodeServer is the generic error code avalanchego attaches to failed API calls.
const errCodeServer = -32000

// transientServerMessages are avalanchego server errors that clear up on their own.
var transientServerMessages = []string{
	"not bootstrapped",
	"timed out",
	"too many requests",
}

// isRetryable reports whether err is worth another attempt: a dropped or timed out connection,
// an overloaded gateway, or a node that is still bootstrapping.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		switch httpErr.Code {
		case http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		if rpcErr.Code != errCodeServer {
			return false
		}
		msg := strings.ToLower(rpcErr.Message)
		for _, m := range transientServerMessages {
			if strings.Contains(msg, m) {
				return true
			}
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		strings.Contains(err.Error(), "connection reset by peer")
}
