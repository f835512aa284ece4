package wire

import (
	"strconv"
	"strings"
)

// Change is a single cell ownership transition (row, col, owner).
type Change struct {
	Row, Col int32
	Owner    uint32
}

// EncodeCellList serializes changes as "r,c,o;r,c,o;..." with no trailing
// separator. An empty slice encodes to the empty string.
func EncodeCellList(changes []Change) string {
	if len(changes) == 0 {
		return ""
	}
	var b strings.Builder
	for i, ch := range changes {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(strconv.Itoa(int(ch.Row)))
		b.WriteByte(',')
		b.WriteString(strconv.Itoa(int(ch.Col)))
		b.WriteByte(',')
		b.WriteString(strconv.FormatUint(uint64(ch.Owner), 10))
	}
	return b.String()
}

// DecodeCellList parses the compact cell-list form. Parsing is strict: any
// malformed triple fails the whole payload.
func DecodeCellList(s string) ([]Change, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ";")
	out := make([]Change, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			return nil, newErr(ErrMalformedPayload, "empty triple")
		}
		fields := strings.Split(part, ",")
		if len(fields) != 3 {
			return nil, newErr(ErrMalformedPayload, "triple does not have 3 fields")
		}
		row, err := strconv.ParseInt(fields[0], 10, 32)
		if err != nil {
			return nil, newErr(ErrMalformedPayload, "bad row")
		}
		col, err := strconv.ParseInt(fields[1], 10, 32)
		if err != nil {
			return nil, newErr(ErrMalformedPayload, "bad col")
		}
		owner, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return nil, newErr(ErrMalformedPayload, "bad owner")
		}
		out = append(out, Change{Row: int32(row), Col: int32(col), Owner: uint32(owner)})
	}
	return out, nil
}
