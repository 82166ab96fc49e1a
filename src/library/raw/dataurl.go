package raw

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"
)

var errNotDataURL = errors.New("not a data url")

// DecodeDataURL decodes an RFC 2397 data URL into its MIME type and payload.
// The type defaults to text/plain when absent.
func DecodeDataURL(str string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(str, "data:")
	if !ok {
		return "", nil, errNotDataURL
	}
	header, body, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errNotDataURL
	}

	mimeType, isBase64 := header, false
	if m, ok := strings.CutSuffix(header, ";base64"); ok {
		mimeType, isBase64 = m, true
	}
	if mimeType == "" || strings.HasPrefix(mimeType, ";") {
		mimeType = "text/plain" + mimeType
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			// Some encoders drop the padding.
			if data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(body, "=")); err != nil {
				return "", nil, err
			}
		}
		return mimeType, data, nil
	}
	data, err := url.PathUnescape(body)
	if err != nil {
		return "", nil, err
	}
	return mimeType, []byte(data), nil
}
