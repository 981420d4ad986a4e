package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

// ErrMalformedBody is returned by ParseNumber for anything but the canonical body.
var ErrMalformedBody = errors.New("malformed number body")

type numberBody struct {
	Number *big.Int `json:"number"`
}

// EncodeBody renders {"number":<n>} with no whitespace.
func EncodeBody(n *big.Int) []byte {
	// *big.Int marshals as a bare JSON number and numberBody cannot fail to encode.
	body, _ := json.Marshal(numberBody{Number: n})
	return body
}

// BuildResponse renders the full HTTP response carrying n.
func BuildResponse(n *big.Int) []byte {
	body := EncodeBody(n)

	var buf bytes.Buffer
	buf.Grow(96 + len(body))
	buf.WriteString("HTTP/1.1 200 OK\r\n")
	buf.WriteString("Content-Type: application/json\r\n")
	buf.WriteString("Content-Length: ")
	buf.WriteString(strconv.Itoa(len(body)))
	buf.WriteString("\r\n\r\n")
	buf.Write(body)
	return buf.Bytes()
}

// ParseNumber is the inverse of EncodeBody. Only the exact canonical form is
// accepted: no whitespace, no extra fields, no trailing bytes, no sign.
func ParseNumber(body []byte) (*big.Int, error) {
	var parsed numberBody
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if parsed.Number == nil {
		return nil, fmt.Errorf("%w: missing number", ErrMalformedBody)
	}
	if parsed.Number.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative number", ErrMalformedBody)
	}
	if !bytes.Equal(EncodeBody(parsed.Number), body) {
		return nil, fmt.Errorf("%w: non-canonical encoding %q", ErrMalformedBody, body)
	}
	return parsed.Number, nil
}
