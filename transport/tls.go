package transport

import (
	"crypto/tls"

	"github.com/pkg/errors"
)

// strongCipherSuites are the TLS 1.2 suites offered, all ECDHE with AEAD.
// TLS 1.3 suites are not configurable.
var strongCipherSuites = []uint16{
	tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
	tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
	tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
	tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
}

// LoadTLSConfig builds a server TLS configuration from PEM encoded
// certificate and key files. A key that does not match the certificate
// is an error.
func LoadTLSConfig(certFile, keyFile string) (*tls.Config, error) {
	if certFile == "" {
		return nil, errors.New("ssl certificate filename not specified")
	}
	if keyFile == "" {
		return nil, errors.New("ssl key filename not specified")
	}
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load certificate %s with key %s", certFile, keyFile)
	}
	return NewTLSConfig(cert), nil
}

// NewTLSConfig returns the server TLS profile for cert: TLS 1.2 or newer,
// strong cipher suites only
func NewTLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		CipherSuites: strongCipherSuites,
		NextProtos:   []string{"http/1.1"},
	}
}
