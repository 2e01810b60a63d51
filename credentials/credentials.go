// Package credentials loads the signing material for pass bundles: the pass
// type leaf certificate with its private key, recovered from a
// password-protected PKCS#12 container, and the issuer's intermediate
// authority certificate supplied as PEM text.
//
// A Bundle is loaded exactly once at process start and treated as read-only
// for the process lifetime. Concurrent pass generations share it without
// synchronization.
package credentials

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"software.sslmate.com/src/go-pkcs12"
)

var (
	// ErrMissingMaterial indicates required signing material was not provided.
	// This is a startup configuration failure; no requests should be served.
	ErrMissingMaterial = errors.New("signing material missing")

	// ErrBadContainer indicates the PKCS#12 container could not be decoded,
	// typically because of a wrong passphrase or a corrupt file.
	ErrBadContainer = errors.New("cannot decode certificate container")
)

// Bundle holds the certificate chain and private key used to sign pass
// manifests. Never mutated after Load.
type Bundle struct {
	// Certificate is the leaf pass type certificate.
	Certificate *x509.Certificate

	// PrivateKey is the leaf certificate's RSA key.
	PrivateKey *rsa.PrivateKey

	// Intermediate is the issuing authority certificate that completes the
	// trust chain from the leaf to the platform root.
	Intermediate *x509.Certificate
}

// Load decodes the PKCS#12 container with the given passphrase and parses
// the intermediate authority certificate from PEM text.
func Load(container []byte, passphrase string, intermediatePEM []byte) (*Bundle, error) {
	if len(container) == 0 {
		return nil, fmt.Errorf("%w: certificate container", ErrMissingMaterial)
	}
	if len(intermediatePEM) == 0 {
		return nil, fmt.Errorf("%w: intermediate certificate", ErrMissingMaterial)
	}

	key, cert, _, err := pkcs12.DecodeChain(container, passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadContainer, err)
	}

	rsaKey, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: container holds a %T key, want RSA", ErrBadContainer, key)
	}

	intermediate, err := parsePEMCertificate(intermediatePEM)
	if err != nil {
		return nil, fmt.Errorf("parse intermediate certificate: %w", err)
	}

	return &Bundle{
		Certificate:  cert,
		PrivateKey:   rsaKey,
		Intermediate: intermediate,
	}, nil
}

// LoadFromFiles reads the container and intermediate certificate from disk
// and delegates to Load.
func LoadFromFiles(containerPath, passphrase, intermediatePath string) (*Bundle, error) {
	container, err := os.ReadFile(containerPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read container: %v", ErrMissingMaterial, err)
	}

	intermediate, err := os.ReadFile(intermediatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: read intermediate certificate: %v", ErrMissingMaterial, err)
	}

	return Load(container, passphrase, intermediate)
}

func parsePEMCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("no CERTIFICATE block in PEM data")
	}
	return x509.ParseCertificate(block.Bytes)
}
