package acquisition

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var errMissingComma = errors.New("data URI has no payload separator")

// EncodeDataURI renders data as a base64 data URI.
func EncodeDataURI(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a base64 data URI into its MIME type and raw bytes.
// A header without a readable type yields DefaultMIMEType.
func DecodeDataURI(uri string) (string, []byte, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok {
		return "", nil, errMissingComma
	}

	data, err := decodeBase64(strings.TrimSpace(payload))
	if err != nil {
		return "", nil, fmt.Errorf("invalid base64 payload: %w", err)
	}

	return mimeFromHeader(header), data, nil
}

// mimeFromHeader extracts the text between "data:" and the first ';'.
func mimeFromHeader(header string) string {
	_, rest, ok := strings.Cut(header, ":")
	if !ok {
		return DefaultMIMEType
	}
	mimeType, _, ok := strings.Cut(rest, ";")
	if !ok || strings.TrimSpace(mimeType) == "" {
		return DefaultMIMEType
	}
	return strings.TrimSpace(mimeType)
}

// decodeBase64 accepts both padded and unpadded standard encoding.
func decodeBase64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") || len(s)%4 == 0 {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}
