package signatures

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"fmt"
)

// ParsedSignature is a decoded detached signature.
type ParsedSignature struct {
	SignedData *SignedData

	// Certificates embedded in the SignedData, in encoding order
	// (leaf first, then the chain).
	Certificates []*x509.Certificate

	// SignerCertificate is the certificate matching the SignerInfo SID.
	SignerCertificate *x509.Certificate
}

// Parse decodes a DER PKCS#7 detached signature and resolves the signer
// certificate from the embedded set.
func Parse(der []byte) (*ParsedSignature, error) {
	var contentInfo ContentInfo
	if _, err := asn1.Unmarshal(der, &contentInfo); err != nil {
		return nil, fmt.Errorf("%w: parse content info: %v", ErrInvalidSignature, err)
	}
	if !contentInfo.ContentType.Equal(oidSignedData) {
		return nil, fmt.Errorf("%w: content type is %v, want SignedData", ErrInvalidSignature, contentInfo.ContentType)
	}

	var signedData SignedData
	if _, err := asn1.Unmarshal(contentInfo.Content.Bytes, &signedData); err != nil {
		return nil, fmt.Errorf("%w: parse signed data: %v", ErrInvalidSignature, err)
	}
	if len(signedData.SignerInfos) == 0 {
		return nil, fmt.Errorf("%w: no signer info", ErrInvalidSignature)
	}

	certs, err := x509.ParseCertificates(signedData.Certificates.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse certificates: %v", ErrInvalidSignature, err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("%w: no certificates embedded", ErrInvalidSignature)
	}

	signer, err := findSignerCertificate(signedData.SignerInfos[0], certs)
	if err != nil {
		return nil, err
	}

	return &ParsedSignature{
		SignedData:        &signedData,
		Certificates:      certs,
		SignerCertificate: signer,
	}, nil
}

// Verify checks a detached signature against the content it claims to
// bind: the message-digest attribute must equal the SHA-256 of the
// content, and the RSA signature over the authenticated attributes must
// verify with the signer certificate's public key.
func Verify(content, der []byte) error {
	parsed, err := Parse(der)
	if err != nil {
		return err
	}
	si := parsed.SignedData.SignerInfos[0]

	attrs, attrsDER, err := decodeSignedAttributes(si)
	if err != nil {
		return err
	}

	wantDigest := sha256.Sum256(content)
	gotDigest, err := messageDigestValue(attrs)
	if err != nil {
		return err
	}
	if !bytes.Equal(gotDigest, wantDigest[:]) {
		return fmt.Errorf("%w: message digest does not match content", ErrInvalidSignature)
	}

	pub, ok := parsed.SignerCertificate.PublicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("%w: signer certificate key is not RSA", ErrInvalidSignature)
	}
	attrsDigest := sha256.Sum256(attrsDER)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, attrsDigest[:], si.Signature); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// decodeSignedAttributes recovers the attribute list and the DER SET OF
// encoding the signature was computed over (RFC 5652 §5.3: the [0]
// IMPLICIT tag is replaced by the SET OF tag before hashing).
func decodeSignedAttributes(si SignerInfo) ([]Attribute, []byte, error) {
	if len(si.SignedAttrs.Bytes) == 0 {
		return nil, nil, fmt.Errorf("%w: no signed attributes", ErrInvalidSignature)
	}

	setDER, err := asn1.Marshal(asn1.RawValue{
		Class:      asn1.ClassUniversal,
		Tag:        asn1.TagSet,
		IsCompound: true,
		Bytes:      si.SignedAttrs.Bytes,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: rewrap signed attributes: %v", ErrInvalidSignature, err)
	}

	var attrs []Attribute
	if _, err := asn1.UnmarshalWithParams(setDER, &attrs, "set"); err != nil {
		return nil, nil, fmt.Errorf("%w: parse signed attributes: %v", ErrInvalidSignature, err)
	}
	return attrs, setDER, nil
}

func messageDigestValue(attrs []Attribute) ([]byte, error) {
	for _, attr := range attrs {
		if !attr.Type.Equal(oidMessageDigest) {
			continue
		}
		var digest []byte
		if _, err := asn1.Unmarshal(attr.Values.Bytes, &digest); err != nil {
			return nil, fmt.Errorf("%w: parse message digest: %v", ErrInvalidSignature, err)
		}
		return digest, nil
	}
	return nil, fmt.Errorf("%w: no message-digest attribute", ErrInvalidSignature)
}

func findSignerCertificate(si SignerInfo, certs []*x509.Certificate) (*x509.Certificate, error) {
	var ias IssuerAndSerialNumber
	if _, err := asn1.Unmarshal(si.SID.FullBytes, &ias); err != nil {
		return nil, fmt.Errorf("%w: parse signer identifier: %v", ErrInvalidSignature, err)
	}

	for _, cert := range certs {
		if cert.SerialNumber.Cmp(ias.SerialNumber) == 0 && bytes.Equal(cert.RawIssuer, ias.Issuer.FullBytes) {
			return cert, nil
		}
	}
	return nil, fmt.Errorf("%w: signer certificate not embedded", ErrInvalidSignature)
}
