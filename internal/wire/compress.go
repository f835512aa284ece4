package wire

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zlib"
)

// CompressionThreshold is the raw body size above which the payload is
// deflated, absent an explicit caller request.
const CompressionThreshold = 1000

const (
	flagRaw        byte = 0x00
	flagCompressed byte = 0x01
)

// FramePayload prepends the compression flag byte to a raw body, deflating
// it with zlib when the caller requests it or the body crosses the
// compression threshold. Empty bodies omit the flag byte entirely.
func FramePayload(raw []byte, forceCompress bool) []byte {
	if len(raw) == 0 {
		return nil
	}

	if !forceCompress && len(raw) <= CompressionThreshold {
		out := make([]byte, 1+len(raw))
		out[0] = flagRaw
		copy(out[1:], raw)
		return out
	}

	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	_, _ = w.Write(raw)
	_ = w.Close()

	out := make([]byte, 1+buf.Len())
	out[0] = flagCompressed
	copy(out[1:], buf.Bytes())
	return out
}

// UnframePayload honors the compression flag and returns the raw body.
func UnframePayload(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, nil
	}

	flag, body := framed[0], framed[1:]
	switch flag {
	case flagRaw:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case flagCompressed:
		r, err := zlib.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, newErr(ErrDecompressionFailed, err.Error())
		}
		defer r.Close()
		raw, err := io.ReadAll(r)
		if err != nil {
			return nil, newErr(ErrDecompressionFailed, err.Error())
		}
		return raw, nil
	default:
		return nil, newErr(ErrMalformedPayload, "unknown compression flag")
	}
}
