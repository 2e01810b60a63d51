package signatures

import (
	"encoding/asn1"
	"fmt"
	"time"
)

// buildSignedAttributes creates the authenticated attributes for the
// manifest signature: content-type and message-digest (both REQUIRED per
// RFC 5652) plus signing-time.
func buildSignedAttributes(contentDigest []byte, signingTime time.Time) ([]Attribute, error) {
	contentType, err := singleValueAttribute(oidContentType, oidData)
	if err != nil {
		return nil, fmt.Errorf("create content-type: %w", err)
	}

	timeAttr, err := singleValueAttribute(oidSigningTime, signingTime)
	if err != nil {
		return nil, fmt.Errorf("create signing-time: %w", err)
	}

	digestAttr, err := singleValueAttribute(oidMessageDigest, contentDigest)
	if err != nil {
		return nil, fmt.Errorf("create message-digest: %w", err)
	}

	return []Attribute{contentType, timeAttr, digestAttr}, nil
}

// singleValueAttribute builds an Attribute whose value SET holds exactly
// one DER-encoded value.
func singleValueAttribute(attrType asn1.ObjectIdentifier, value interface{}) (Attribute, error) {
	encoded, err := asn1.Marshal(value)
	if err != nil {
		return Attribute{}, err
	}

	values, err := asn1.Marshal([]asn1.RawValue{{FullBytes: encoded}})
	if err != nil {
		return Attribute{}, err
	}

	return Attribute{
		Type:   attrType,
		Values: asn1.RawValue{FullBytes: values},
	}, nil
}

// encodeAttributesForSigning encodes the authenticated attributes with the
// SET OF tag. Per RFC 5652 §5.3 the signature is computed over this DER
// encoding, not over the [0] IMPLICIT form stored in SignerInfo.
func encodeAttributesForSigning(attributes []Attribute) ([]byte, error) {
	return asn1.MarshalWithParams(attributes, "set")
}

// implicitAttrsRawValue rewraps the DER SET OF Attributes with the
// [0] IMPLICIT context-specific tag required by SignerInfo.signedAttrs.
func implicitAttrsRawValue(setBytes []byte) (asn1.RawValue, error) {
	var raw asn1.RawValue
	if _, err := asn1.Unmarshal(setBytes, &raw); err != nil {
		return asn1.RawValue{}, err
	}
	return asn1.RawValue{
		Class:      asn1.ClassContextSpecific,
		Tag:        0,
		IsCompound: true,
		Bytes:      raw.Bytes,
	}, nil
}
