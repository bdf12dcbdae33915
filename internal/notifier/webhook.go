package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

const contentTypeJSON = "application/json"

const (
	httpTimeout = 10 * time.Second
	dialTimeout = 5 * time.Second
)

// WebhookNotifier sends notifications via HTTP POST to a webhook URL.
// The body is the Notification encoded as JSON.
type WebhookNotifier struct {
	url          string
	client       *http.Client
	allowPrivate bool // skip SSRF check (testing only)
}

// NewWebhookNotifier creates a new webhook notifier
func NewWebhookNotifier(webhookURL string) *WebhookNotifier {
	w := &WebhookNotifier{url: webhookURL}
	w.client = newSSRFSafeClient(&w.allowPrivate)
	return w
}

func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// privateNetworks contains CIDR ranges for internal networks
var privateNetworks = []net.IPNet{
	{IP: net.IPv4(10, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
	{IP: net.IPv4(172, 16, 0, 0), Mask: net.CIDRMask(12, 32)},
	{IP: net.IPv4(192, 168, 0, 0), Mask: net.CIDRMask(16, 32)},
	{IP: net.IPv4(169, 254, 0, 0), Mask: net.CIDRMask(16, 32)},
	{IP: net.IPv4(127, 0, 0, 0), Mask: net.CIDRMask(8, 32)},
	{IP: net.IPv6loopback, Mask: net.CIDRMask(128, 128)},
	{IP: net.IPv6unspecified, Mask: net.CIDRMask(128, 128)},
	{IP: net.ParseIP("fe80::"), Mask: net.CIDRMask(10, 128)},
	{IP: net.ParseIP("fc00::"), Mask: net.CIDRMask(7, 128)},
}

func isPrivateIP(ip net.IP) bool {
	for _, cidr := range privateNetworks {
		if cidr.Contains(ip) {
			return true
		}
	}
	return false
}

// validateWebhookURL checks the shape of a webhook URL without resolving it.
func validateWebhookURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("webhook URL must use http or https scheme")
	}
	if u.Hostname() == "" {
		return fmt.Errorf("webhook URL must include host")
	}
	return nil
}

// validateWebhookTarget checks the URL shape and that its host does not
// resolve to a private address.
func validateWebhookTarget(rawURL string) error {
	if err := validateWebhookURL(rawURL); err != nil {
		return err
	}
	u, _ := url.Parse(rawURL)
	host := u.Hostname()
	ips, err := net.LookupIP(host)
	if err != nil {
		return fmt.Errorf("DNS lookup failed for %s: %w", host, err)
	}
	for _, ip := range ips {
		if isPrivateIP(ip) {
			return fmt.Errorf("webhook target %s resolves to private IP %s", host, ip)
		}
	}
	return nil
}

// newSSRFSafeClient returns a client that refuses to connect to private
// addresses unless *allowPrivate is set. The check runs at dial time on the
// resolved address, so a rebinding DNS answer cannot slip past it.
func newSSRFSafeClient(allowPrivate *bool) *http.Client {
	dialer := &net.Dialer{Timeout: dialTimeout}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSHandshakeTimeout: dialTimeout,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if *allowPrivate {
				return dialer.DialContext(ctx, network, addr)
			}
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
			if err != nil {
				return nil, fmt.Errorf("SSRF protection: DNS lookup failed for %s: %w", host, err)
			}
			if len(ips) == 0 {
				return nil, fmt.Errorf("SSRF protection: no addresses for %s", host)
			}
			for _, ip := range ips {
				if isPrivateIP(ip.IP) {
					return nil, fmt.Errorf("SSRF protection: %s resolves to private IP %s", host, ip.IP)
				}
			}
			return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].IP.String(), port))
		},
	}
	return &http.Client{
		Timeout:   httpTimeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// postJSON sends payload to target and fails on a non-2xx status.
func postJSON(ctx context.Context, client *http.Client, target, service string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", service, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentTypeJSON)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", service, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", service, resp.StatusCode)
	}
	return nil
}

func (w *WebhookNotifier) Send(ctx context.Context, notification Notification) error {
	if !w.allowPrivate {
		if err := validateWebhookTarget(w.url); err != nil {
			return fmt.Errorf("SSRF protection: %w", err)
		}
	}
	return postJSON(ctx, w.client, w.url, "webhook", notification)
}
