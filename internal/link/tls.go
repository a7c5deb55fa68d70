package link

import (
	"crypto/tls"
	"crypto/x509"
	"net"

	"github.com/fossabot/zenoh/internal/zerror"
)

func clientTLSConfig(ep Endpoint) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if host, _, err := net.SplitHostPort(ep.Address); err == nil {
		cfg.ServerName = host
	}
	if pem, ok := ep.Config[TLSRootCACertificateRaw]; ok {
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM([]byte(pem)) {
			return nil, zerror.Newf(zerror.KindOther, "invalid root CA certificate for %s", ep)
		}
		cfg.RootCAs = pool
	}
	return cfg, nil
}

func serverTLSConfig(ep Endpoint) (*tls.Config, error) {
	certPEM, okCert := ep.Config[TLSServerCertificateRaw]
	keyPEM, okKey := ep.Config[TLSServerPrivateKeyRaw]
	if !okCert || !okKey {
		return nil, zerror.Newf(zerror.KindOther,
			"missing server certificate or private key for %s", ep)
	}
	cert, err := tls.X509KeyPair([]byte(certPEM), []byte(keyPEM))
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindOther, err, "invalid server certificate for %s", ep)
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}, nil
}

func dialTLS(ep Endpoint) (Link, error) {
	cfg, err := clientTLSConfig(ep)
	if err != nil {
		return nil, err
	}
	conn, err := tls.Dial("tcp", ep.Address, cfg)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to dial %s", ep)
	}
	return &streamLink{conn: conn, scheme: ep.Scheme}, nil
}

func listenTLS(ep Endpoint) (Listener, error) {
	cfg, err := serverTLSConfig(ep)
	if err != nil {
		return nil, err
	}
	ln, err := tls.Listen("tcp", ep.Address, cfg)
	if err != nil {
		return nil, zerror.Wrapf(zerror.KindIO, err, "unable to listen on %s", ep)
	}
	bound := ep
	bound.Address = ln.Addr().String()
	return &streamListener{ln: ln, ep: bound, scheme: ep.Scheme}, nil
}
