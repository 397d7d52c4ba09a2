// Package http builds the HTTP clients shared by the API client and the downloader.
package http

import (
	"crypto/tls"
	nethttp "net/http"
	"os"

	"golang.org/x/net/http2"

	"github.com/mrd/ca-drive/internal/config"
)

// CreateTransferClient returns a client tuned for file downloads with proxy support.
//
// HTTP/2 is enabled for direct connections and disabled when a proxy is in use,
// since proxies often break multiplexed streams mid-transfer. DISABLE_HTTP2=true
// forces HTTP/1.1 in every case.
func CreateTransferClient(cfg *config.Config) (*nethttp.Client, error) {
	var baseClient *nethttp.Client
	var err error

	if cfg != nil {
		baseClient, err = ConfigureHTTPClient(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		baseClient = &nethttp.Client{Transport: newTransport()}
	}

	tr, ok := baseClient.Transport.(*nethttp.Transport)
	if !ok {
		// NTLM mode wraps the transport in ntlmssp.Negotiator; leave it as is
		return baseClient, nil
	}

	tr.MaxIdleConnsPerHost = 64
	tr.MaxConnsPerHost = 64
	tr.DisableCompression = true
	tr.ForceAttemptHTTP2 = true
	_ = http2.ConfigureTransport(tr)

	proxyActive := false
	if cfg != nil {
		switch cfg.ProxyMode {
		case "no-proxy", "":
		case "system":
			proxyActive = os.Getenv("HTTP_PROXY") != "" || os.Getenv("HTTPS_PROXY") != "" ||
				os.Getenv("http_proxy") != "" || os.Getenv("https_proxy") != ""
		default:
			proxyActive = true
		}
	}

	if proxyActive || os.Getenv("DISABLE_HTTP2") == "true" {
		tr.ForceAttemptHTTP2 = false
		tr.TLSNextProto = make(map[string]func(string, *tls.Conn) nethttp.RoundTripper)
	}

	baseClient.Transport = tr
	baseClient.Timeout = 0
	return baseClient, nil
}
