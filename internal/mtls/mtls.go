// Package mtls loads the TLS certificate and key the peer-library adapter
// presents to connecting RDP clients during the security-layer handshake.
package mtls

import (
	"crypto/tls"
	"fmt"
)

// LoadServerCert parses a PEM-encoded certificate and private key pair read
// from the files named by the rdp-server-cert/rdp-server-key settings.
func LoadServerCert(certPEM, keyPEM []byte) (*tls.Certificate, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse rdp server cert/key pair: %w", err)
	}
	return &cert, nil
}

// BuildServerTLSConfig returns the TLS config the peer-library adapter uses
// for the RDP security layer. Returns nil, nil if no cert/key is configured
// (the adapter then falls back to the peer library's self-signed default).
func BuildServerTLSConfig(certPEM, keyPEM []byte) (*tls.Config, error) {
	if len(certPEM) == 0 || len(keyPEM) == 0 {
		return nil, nil
	}

	cert, err := LoadServerCert(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{*cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
