// Package link provides the transport links of the fabric: endpoint
// parsing, dialing and listening over tcp, udp, tls, quic and
// unixsock-stream.
package link

import (
	"strings"

	"github.com/fossabot/zenoh/internal/zerror"
)

// Endpoint configuration keys for TLS and QUIC, carrying PEM strings.
const (
	TLSRootCACertificateRaw  = "TLS_ROOT_CA_CERTIFICATE_RAW"
	TLSServerPrivateKeyRaw   = "TLS_SERVER_PRIVATE_KEY_RAW"
	TLSServerCertificateRaw  = "TLS_SERVER_CERTIFICATE_RAW"
)

// Endpoint is the parsed form of a locator string `scheme/address`, with
// optional `#key=value;key=value` inline configuration.
type Endpoint struct {
	Scheme  string
	Address string
	Config  map[string]string
}

// ParseEndpoint parses a locator string such as "tcp/127.0.0.1:7447" or
// "unixsock-stream//tmp/zenoh.sock".
func ParseEndpoint(s string) (Endpoint, error) {
	var ep Endpoint
	locator := s
	if idx := strings.Index(s, "#"); idx >= 0 {
		locator = s[:idx]
		ep.Config = make(map[string]string)
		for _, kv := range strings.Split(s[idx+1:], ";") {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				return ep, zerror.Newf(zerror.KindOther, "invalid endpoint config %q in %q", kv, s)
			}
			ep.Config[k] = v
		}
	}
	scheme, addr, ok := strings.Cut(locator, "/")
	if !ok || addr == "" {
		return ep, zerror.Newf(zerror.KindOther, "invalid endpoint %q", s)
	}
	switch scheme {
	case "tcp", "udp", "tls", "quic", "unixsock-stream":
	default:
		return ep, zerror.Newf(zerror.KindOther, "unsupported endpoint scheme %q", scheme)
	}
	ep.Scheme = scheme
	ep.Address = addr
	return ep, nil
}

func (e Endpoint) String() string {
	return e.Scheme + "/" + e.Address
}
