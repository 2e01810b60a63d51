// Package signatures produces and verifies the detached PKCS#7/CMS
// signature over a pass manifest (RFC 5652). The SignedData structure
// embeds the leaf and intermediate certificates so a verifier can validate
// the chain without out-of-band certificate distribution.
package signatures

import (
	"crypto/x509"
	"encoding/asn1"
	"errors"
	"math/big"
	"time"
)

// ErrSigning indicates a cryptographic failure while producing the
// signature. It is always request-fatal: an unsigned bundle must never be
// returned.
var ErrSigning = errors.New("signing failed")

// ErrInvalidSignature indicates a signature that does not parse or does not
// verify against the given content.
var ErrInvalidSignature = errors.New("invalid signature")

// OID constants for the CMS structures used in manifest signing.
var (
	// oidData is the CMS content-type for arbitrary data (RFC 5652).
	oidData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}

	// oidSignedData identifies the SignedData content type (RFC 5652).
	oidSignedData = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}

	// oidContentType is the PKCS#9 content-type authenticated attribute.
	oidContentType = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}

	// oidMessageDigest is the PKCS#9 message-digest authenticated attribute.
	oidMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}

	// oidSigningTime is the PKCS#9 signing-time authenticated attribute.
	oidSigningTime = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}

	// oidSHA256 is the SHA-256 digest algorithm.
	oidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}

	// oidSHA256WithRSA is the RSA with SHA-256 signature algorithm (PKCS#1).
	oidSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
)

// ContentInfo is the outer wrapper for CMS structures (RFC 5652).
type ContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"explicit,optional,tag:0"`
}

// SignedData is the CMS SignedData structure (RFC 5652).
type SignedData struct {
	Version          int                   `asn1:"default:1"`
	DigestAlgorithms []AlgorithmIdentifier `asn1:"set"`
	ContentInfo      EncapsulatedContentInfo
	Certificates     asn1.RawValue `asn1:"optional,tag:0"`
	CRLs             asn1.RawValue `asn1:"optional,tag:1"`
	SignerInfos      []SignerInfo  `asn1:"set"`
}

// EncapsulatedContentInfo holds the signed content. For a detached
// signature the content itself is omitted.
type EncapsulatedContentInfo struct {
	ContentType asn1.ObjectIdentifier
	Content     asn1.RawValue `asn1:"optional,explicit,tag:0"`
}

// SignerInfo carries one signer's digest and signature (RFC 5652 §5.3).
type SignerInfo struct {
	Version            int           `asn1:"default:1"`
	SID                asn1.RawValue // SignerIdentifier (CHOICE)
	DigestAlgorithm    AlgorithmIdentifier
	SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
	SignatureAlgorithm AlgorithmIdentifier
	Signature          []byte
	UnsignedAttrs      asn1.RawValue `asn1:"optional,tag:1"`
}

// IssuerAndSerialNumber identifies a certificate.
type IssuerAndSerialNumber struct {
	Issuer       asn1.RawValue
	SerialNumber *big.Int
}

// AlgorithmIdentifier names an algorithm.
type AlgorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// Attribute is a CMS attribute.
type Attribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue `asn1:"set"`
}

// SigningOptions configures detached signature creation over a manifest.
type SigningOptions struct {
	// Certificate is the leaf pass type certificate.
	Certificate *x509.Certificate

	// PrivateKey is the leaf certificate's RSA key.
	PrivateKey interface{}

	// Intermediate is the issuing authority certificate embedded alongside
	// the leaf so verifiers can build the chain.
	Intermediate *x509.Certificate

	// Now supplies the signing-time attribute value. Defaults to time.Now.
	Now func() time.Time
}
