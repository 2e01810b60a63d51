package signatures

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/asn1"
	"fmt"
	"time"
)

// Validate checks that the signing options are complete and consistent:
// certificate and key present, key matching the certificate, and an RSA
// key of at least 2048 bits.
func (opts *SigningOptions) Validate() error {
	if opts.Certificate == nil {
		return fmt.Errorf("signing certificate is required")
	}
	if opts.PrivateKey == nil {
		return fmt.Errorf("private key is required")
	}
	if opts.Intermediate == nil {
		return fmt.Errorf("intermediate certificate is required")
	}

	rsaKey, ok := opts.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("only RSA keys are supported, got %T", opts.PrivateKey)
	}
	if rsaKey.N.BitLen() < 2048 {
		return fmt.Errorf("RSA key must be at least 2048 bits")
	}

	pub, ok := opts.Certificate.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("certificate does not carry an RSA public key")
	}
	if pub.N.Cmp(rsaKey.N) != 0 {
		return fmt.Errorf("private key does not match certificate")
	}

	return nil
}

// SignDetached creates a detached CMS signature over the given content,
// typically the serialized manifest. The content itself is not embedded;
// its SHA-256 digest is bound through the message-digest authenticated
// attribute. The leaf and intermediate certificates are included in the
// SignedData. Any failure wraps ErrSigning; a partial signature is never
// returned.
func SignDetached(content []byte, opts SigningOptions) ([]byte, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: invalid signing options: %v", ErrSigning, err)
	}

	signedData, err := createSignedData(content, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSigning, err)
	}

	signedDataBytes, err := asn1.Marshal(*signedData)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal signed data: %v", ErrSigning, err)
	}

	contentInfo := ContentInfo{
		ContentType: oidSignedData,
		Content: asn1.RawValue{
			Class:      asn1.ClassContextSpecific,
			Tag:        0,
			IsCompound: true,
			Bytes:      signedDataBytes,
		},
	}

	signature, err := asn1.Marshal(contentInfo)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal content info: %v", ErrSigning, err)
	}

	return signature, nil
}

func createSignedData(content []byte, opts SigningOptions) (*SignedData, error) {
	// Detached signature: EncapsulatedContentInfo carries no content.
	encapContentInfo := EncapsulatedContentInfo{ContentType: oidData}

	digestAlgorithms := []AlgorithmIdentifier{{Algorithm: oidSHA256}}

	// Certificates SET: leaf first, then the intermediate.
	certBytes := append([]byte{}, opts.Certificate.Raw...)
	certBytes = append(certBytes, opts.Intermediate.Raw...)
	certificates := asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      certBytes,
	}

	signerInfo, err := createSignerInfo(content, opts)
	if err != nil {
		return nil, fmt.Errorf("create signer info: %w", err)
	}

	return &SignedData{
		Version:          1,
		DigestAlgorithms: digestAlgorithms,
		ContentInfo:      encapContentInfo,
		Certificates:     certificates,
		SignerInfos:      []SignerInfo{*signerInfo},
	}, nil
}

func createSignerInfo(content []byte, opts SigningOptions) (*SignerInfo, error) {
	issuerAndSerial := IssuerAndSerialNumber{
		Issuer:       asn1.RawValue{FullBytes: opts.Certificate.RawIssuer},
		SerialNumber: opts.Certificate.SerialNumber,
	}
	sidBytes, err := asn1.Marshal(issuerAndSerial)
	if err != nil {
		return nil, fmt.Errorf("marshal issuer and serial: %w", err)
	}

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	contentDigest := sha256.Sum256(content)
	signedAttrs, err := buildSignedAttributes(contentDigest[:], now().UTC())
	if err != nil {
		return nil, fmt.Errorf("build signed attributes: %w", err)
	}

	attrsBytes, err := encodeAttributesForSigning(signedAttrs)
	if err != nil {
		return nil, fmt.Errorf("encode signed attributes: %w", err)
	}

	signature, err := signAttributes(attrsBytes, opts.PrivateKey.(*rsa.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("sign attributes: %w", err)
	}

	implicitAttrs, err := implicitAttrsRawValue(attrsBytes)
	if err != nil {
		return nil, fmt.Errorf("rewrap signed attributes: %w", err)
	}

	return &SignerInfo{
		Version:            1,
		SID:                asn1.RawValue{FullBytes: sidBytes},
		DigestAlgorithm:    AlgorithmIdentifier{Algorithm: oidSHA256},
		SignedAttrs:        implicitAttrs,
		SignatureAlgorithm: AlgorithmIdentifier{Algorithm: oidSHA256WithRSA},
		Signature:          signature,
	}, nil
}

// signAttributes signs the DER-encoded authenticated attributes with
// RSA PKCS#1 v1.5 over SHA-256.
func signAttributes(attributesBytes []byte, key *rsa.PrivateKey) ([]byte, error) {
	digest := sha256.Sum256(attributesBytes)
	signature, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, fmt.Errorf("RSA sign: %w", err)
	}
	return signature, nil
}
