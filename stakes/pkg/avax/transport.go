package avax

import (
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzhttp"
)

const (
	defaultMaxIdleConnsPerHost = 4
	defaultTimeout             = 2 * time.Minute
	defaultKeepAlive           = 90 * time.Second
)

// newHTTP returns a client with transparent gzip response decoding.
func newHTTP() *http.Client {
	return &http.Client{
		Timeout:   defaultTimeout,
		Transport: gzhttp.Transport(newHTTPTransport()),
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		IdleConnTimeout:     defaultTimeout,
		MaxConnsPerHost:     defaultMaxIdleConnsPerHost,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		Proxy:               http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: defaultKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		TLSHandshakeTimeout: 10 * time.Second,
	}
}
