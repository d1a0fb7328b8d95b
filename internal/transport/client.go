package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

const (
	// DefaultTimeout is the timeout of one HTTP request.
	DefaultTimeout = 30 * time.Second

	// checkProxyTimeout bounds the SOCKS5 handshake of CheckConnection.
	checkProxyTimeout = 2 * time.Second

	// maxHTTPRedirects limits HTTP 3xx hops. Meta refresh hops are counted
	// separately by the crawler.
	maxHTTPRedirects = 10
)

// HeaderFunc returns the cookie and extra headers to send to host.
type HeaderFunc func(host string) (cookie string, headers map[string]string)

// Client creates HTTP clients and connections for the crawl.
type Client struct {
	// proxyAddress is the SOCKS5 proxy in "host:port" format. Empty means
	// direct connections.
	proxyAddress string

	// dialer is nil for direct connections.
	dialer proxy.Dialer

	timeout     time.Duration
	userAgent   string
	siteHeaders HeaderFunc
}

// Option configures a Client.
type Option func(*Client)

// WithProxyAddress routes every connection through the SOCKS5 proxy at
// address ("host:port").
func WithProxyAddress(address string) Option {
	return func(c *Client) {
		c.proxyAddress = address
	}
}

// WithTimeout sets the timeout of one HTTP request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithUserAgent sets the User-Agent sent when a request has none.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithSiteHeaders sets the lookup of per-host cookie and headers.
func WithSiteHeaders(fn HeaderFunc) Option {
	return func(c *Client) {
		c.siteHeaders = fn
	}
}

// NewClient creates a client. The proxy address is validated but the proxy
// is not contacted; call CheckConnection for that.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.proxyAddress == "" {
		return c, nil
	}
	if !isValidProxyAddress(c.proxyAddress) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.proxyAddress)
	}

	dialer, err := proxy.SOCKS5("tcp", c.proxyAddress, nil, proxy.Direct)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}
	c.dialer = dialer
	return c, nil
}

// isValidProxyAddress checks that address is "host:port" with a port in
// 1..65535.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return n >= 1 && n <= 65535
}

// ProxyAddress returns the configured proxy address, empty for direct
// connections.
func (c *Client) ProxyAddress() string {
	return c.proxyAddress
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// HTTPClient creates an HTTP client that dials through the configured
// proxy and injects the User-Agent and per-host headers.
func (c *Client) HTTPClient() *http.Client {
	base := http.DefaultTransport.(*http.Transport).Clone() //nolint:forcetypeassert // DefaultTransport is an *http.Transport
	base.MaxIdleConnsPerHost = 4
	base.IdleConnTimeout = 30 * time.Second
	if c.dialer != nil {
		base.Proxy = nil
		base.DialContext = c.DialContext
	}

	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck // cookiejar.New never fails

	return &http.Client{
		Transport: &siteTransport{
			base:        base,
			userAgent:   c.userAgent,
			siteHeaders: c.siteHeaders,
		},
		Timeout: c.timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxHTTPRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// DialContext connects to address, through the proxy when one is set.
func (c *Client) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if c.dialer == nil {
		d := net.Dialer{Timeout: c.timeout}
		return d.DialContext(ctx, network, address)
	}
	if cd, ok := c.dialer.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, network, address)
	}

	type dialResult struct {
		conn net.Conn
		err  error
	}
	resultCh := make(chan dialResult, 1)
	go func() {
		conn, err := c.dialer.Dial(network, address)
		resultCh <- dialResult{conn, err}
	}()

	select {
	case result := <-resultCh:
		return result.conn, result.err
	case <-ctx.Done():
		go func() {
			if r := <-resultCh; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return nil, ctx.Err()
	}
}

// SOCKS5 protocol constants
const (
	socks5Version       = 0x05
	socks5AuthNone      = 0x00
	socks5CmdConnect    = 0x01
	socks5AddrTypeDomID = 0x03

	// socks5TestHost is only named in a CONNECT request; any reply proves
	// the proxy processes requests.
	socks5TestHost = "example.com"
)

// CheckConnection performs a SOCKS5 greeting and CONNECT request against
// the proxy. It returns ProxyStatusOK for direct clients.
func (c *Client) CheckConnection(ctx context.Context) ProxyStatus {
	if c.proxyAddress == "" {
		return ProxyStatusOK
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.proxyAddress)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ProxyStatusTimeout
		}
		return ProxyStatusCannotConnect
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return ProxyStatusCannotConnect
	}

	// Greeting: version, one method, no authentication.
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return ProxyStatusCannotConnect
	}

	authResp := make([]byte, 2)
	if _, err := io.ReadFull(conn, authResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if authResp[0] != socks5Version || authResp[1] != socks5AuthNone {
		return ProxyStatusWrongType
	}

	// CONNECT: version, command, reserved, address type, address, port.
	connectReq := []byte{
		socks5Version,
		socks5CmdConnect,
		0x00,
		socks5AddrTypeDomID,
		byte(len(socks5TestHost)),
	}
	connectReq = append(connectReq, socks5TestHost...)
	connectReq = append(connectReq, 0x00, 80)
	if _, err := conn.Write(connectReq); err != nil {
		return ProxyStatusCannotConnect
	}

	// Success and failure replies both prove a working proxy.
	connectResp := make([]byte, 4)
	if _, err := io.ReadFull(conn, connectResp); err != nil {
		if isTimeout(err) {
			return ProxyStatusTimeout
		}
		return ProxyStatusWrongType
	}
	if connectResp[0] != socks5Version {
		return ProxyStatusWrongType
	}
	return ProxyStatusOK
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// siteTransport injects the User-Agent and the cookie and headers
// configured for the request host.
type siteTransport struct {
	base        http.RoundTripper
	userAgent   string
	siteHeaders HeaderFunc
}

// RoundTrip implements http.RoundTripper.
func (t *siteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.userAgent != "" && clone.Header.Get("User-Agent") == "" {
		clone.Header.Set("User-Agent", t.userAgent)
	}

	if t.siteHeaders != nil {
		cookie, headers := t.siteHeaders(clone.URL.Hostname())
		if cookie != "" {
			if existing := clone.Header.Get("Cookie"); existing != "" {
				clone.Header.Set("Cookie", existing+"; "+cookie)
			} else {
				clone.Header.Set("Cookie", cookie)
			}
		}
		for key, value := range headers {
			clone.Header.Set(key, value)
		}
	}

	return t.base.RoundTrip(clone)
}
