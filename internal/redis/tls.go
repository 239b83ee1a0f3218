package redis

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"strings"
)

// materializeCA decodes the base64 PEM bundle at certPath into a fresh
// temporary file and returns its path.
func materializeCA(certPath string) (string, error) {
	encoded, err := os.ReadFile(certPath)
	if err != nil {
		return "", fmt.Errorf("%w: reading certificate %s: %v", ErrIO, certPath, err)
	}

	pem, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return "", fmt.Errorf("%w: decoding certificate %s: %v", ErrConfig, certPath, err)
	}

	f, err := os.CreateTemp("", "redis-ca-*.pem")
	if err != nil {
		return "", fmt.Errorf("%w: creating temp certificate: %v", ErrIO, err)
	}
	if _, err := f.Write(pem); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: writing temp certificate: %v", ErrIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("%w: closing temp certificate: %v", ErrIO, err)
	}
	return f.Name(), nil
}

// tlsConfigFromCA trusts only the certificates in the PEM file at caPath.
func tlsConfigFromCA(caPath, serverName string) (*tls.Config, error) {
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading CA bundle: %v", ErrIO, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("%w: no certificates found in CA bundle", ErrConfig)
	}
	return &tls.Config{
		RootCAs:    pool,
		ServerName: serverName,
		MinVersion: tls.VersionTLS12,
	}, nil
}
