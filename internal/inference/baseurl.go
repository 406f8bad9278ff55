package inference

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultAPIPort is where the inference service listens when no URL is configured.
const DefaultAPIPort = 8000

const defaultAPIURL = "http://localhost:8000"

// ResolveBaseURL returns override when set, otherwise the page's own scheme
// and hostname on DefaultAPIPort.
func ResolveBaseURL(override string, page *url.URL) string {
	if o := strings.TrimSpace(override); o != "" {
		return strings.TrimRight(o, "/")
	}
	scheme := page.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return scheme + "://" + net.JoinHostPort(page.Hostname(), strconv.Itoa(DefaultAPIPort))
}

// HostSubstitutionURL keeps the default URL for loopback hosts and otherwise
// replaces "localhost" in it with hostname. Older deployments depend on this.
func HostSubstitutionURL(hostname string) string {
	if hostname == "localhost" || hostname == "127.0.0.1" {
		return defaultAPIURL
	}
	return strings.Replace(defaultAPIURL, "localhost", hostname, 1)
}
