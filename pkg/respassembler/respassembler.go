// Package respassembler reconstructs a Response from the bytes an
// HTTP/1.1 or HTTP/2 connection delivers: locating the
// terminator, decoding chunked transfer-encoding, and decompressing the
// body on demand into byte, string, or JSON views.
package respassembler

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"encoding/json"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/hpackcodec"
	"github.com/corvaxnet/rawhttp/pkg/timing"
)

// Header is one response header in receive order.
type Header struct {
	Name  string
	Value string
}

// Response is a fully-assembled HTTP response: status, headers, and a body
// that can be viewed as raw compressed bytes, decompressed bytes, a UTF-8
// string, or parsed JSON. View transitions are idempotent — the decompressed
// bytes are cached after their first computation, and the string and JSON
// views are derived from them on each call.
type Response struct {
	StatusCode int
	StatusLine string
	Headers    []Header

	// ConnectedIP/Port, ALPN, and per-phase timing mirror the
	// connection metadata a browser devtools panel would show alongside a
	// response; populated by the caller (pkg/client), not by assembly
	// itself, since the assembler has no connection-level visibility.
	ConnectedIP    string
	ConnectedPort  int
	NegotiatedALPN string
	Timing         timing.Metrics

	rawBody     []byte
	decodedBody []byte
	decodedOnce bool
}

// Header returns the first header matching name (case-insensitive).
func (r *Response) Header(name string) (string, bool) {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// Raw returns the body exactly as received on the wire, before any
// content-encoding is undone.
func (r *Response) Raw() []byte { return r.rawBody }

// Bytes decompresses the body per its content-encoding header, caching the
// result so repeated calls are idempotent and cheap.
func (r *Response) Bytes() ([]byte, error) {
	if r.decodedOnce {
		return r.decodedBody, nil
	}
	encoding, _ := r.Header("content-encoding")
	decoded, err := decompress(encoding, r.rawBody)
	if err != nil {
		return nil, err
	}
	r.decodedBody = decoded
	r.decodedOnce = true
	return r.decodedBody, nil
}

// String decompresses (if needed) and returns the body as a UTF-8 string.
func (r *Response) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// JSON decompresses (if needed) and unmarshals the body into v.
func (r *Response) JSON(v any) error {
	b, err := r.Bytes()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return errors.NewCurrentlyError("response body is not valid json: " + err.Error())
	}
	return nil
}

func decompress(encoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, nil
	case "gzip":
		zr, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, errors.NewProtocolError("invalid gzip body", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, errors.NewProtocolError("gzip decompression failed", err)
		}
		return out, nil
	case "deflate":
		fr := flate.NewReader(bytes.NewReader(body))
		defer fr.Close()
		out, err := io.ReadAll(fr)
		if err != nil {
			return nil, errors.NewProtocolError("deflate decompression failed", err)
		}
		return out, nil
	case "br":
		out, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, errors.NewProtocolError("brotli decompression failed", err)
		}
		return out, nil
	case "zstd":
		zr, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, errors.NewProtocolError("invalid zstd body", err)
		}
		defer zr.Close()
		out, err := io.ReadAll(zr)
		if err != nil {
			return nil, errors.NewProtocolError("zstd decompression failed", err)
		}
		return out, nil
	default:
		// Unknown content-encoding passes through unchanged.
		return body, nil
	}
}

// H1Complete reports whether buf (accumulated from the wire so far) holds a
// complete HTTP/1.1 response: the header block terminator plus a body that
// satisfies either the chunked end marker or content-length.
func H1Complete(buf []byte) bool {
	headerEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return false
	}
	headerBlock := buf[:headerEnd]
	body := buf[headerEnd+4:]

	if isChunked(headerBlock) {
		return bytes.HasSuffix(body, []byte("0\r\n\r\n")) || bytes.Contains(body, []byte("\r\n0\r\n\r\n"))
	}
	want := contentLength(headerBlock)
	return len(body) >= want
}

func isChunked(headerBlock []byte) bool {
	for _, line := range bytes.Split(headerBlock, []byte("\r\n")) {
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			continue
		}
		if strings.EqualFold(string(bytes.TrimSpace(name)), "transfer-encoding") &&
			strings.Contains(strings.ToLower(string(value)), "chunked") {
			return true
		}
	}
	return false
}

func contentLength(headerBlock []byte) int {
	for _, line := range bytes.Split(headerBlock, []byte("\r\n")) {
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			continue
		}
		if strings.EqualFold(string(bytes.TrimSpace(name)), "content-length") {
			n, err := strconv.Atoi(strings.TrimSpace(string(value)))
			if err == nil {
				return n
			}
		}
	}
	return 0
}

// ParseH1 parses a complete HTTP/1.1 response (as judged by H1Complete) into
// a Response, decoding chunked transfer-encoding if present.
func ParseH1(buf []byte) (*Response, error) {
	headerEnd := bytes.Index(buf, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, errors.NewInvalidHeadSizeError("http/1.1 response header terminator", 4, 0)
	}
	lines := bytes.Split(buf[:headerEnd], []byte("\r\n"))
	if len(lines) == 0 {
		return nil, errors.NewProtocolError("empty http/1.1 response", nil)
	}

	statusLine := string(lines[0])
	parts := strings.SplitN(statusLine, " ", 3)
	if len(parts) < 2 {
		return nil, errors.NewProtocolError("malformed status line: "+statusLine, nil)
	}
	code, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, errors.NewProtocolError("malformed status code: "+parts[1], nil)
	}

	resp := &Response{StatusCode: code, StatusLine: statusLine}
	for _, line := range lines[1:] {
		name, value, ok := bytes.Cut(line, []byte(":"))
		if !ok {
			continue
		}
		resp.Headers = append(resp.Headers, Header{
			Name:  string(bytes.TrimSpace(name)),
			Value: string(bytes.TrimSpace(value)),
		})
	}

	body := buf[headerEnd+4:]
	if chunked, _ := resp.Header("transfer-encoding"); strings.Contains(strings.ToLower(chunked), "chunked") {
		decoded, err := DecodeChunked(body)
		if err != nil {
			return nil, err
		}
		resp.rawBody = decoded
	} else {
		resp.rawBody = append([]byte(nil), body...)
	}
	return resp, nil
}

// DecodeChunked decodes an HTTP/1.1 chunked-transfer body: hex length,
// CRLF, that many bytes, CRLF, repeating until a zero-length chunk.
func DecodeChunked(buf []byte) ([]byte, error) {
	var out []byte
	pos := 0
	for {
		lineEnd := bytes.Index(buf[pos:], []byte("\r\n"))
		if lineEnd < 0 {
			return nil, errors.NewInvalidHeadSizeError("chunk size line", 2, 0)
		}
		sizeLine := buf[pos : pos+lineEnd]
		if semi := bytes.IndexByte(sizeLine, ';'); semi >= 0 {
			sizeLine = sizeLine[:semi] // strip chunk extensions
		}
		size, err := strconv.ParseInt(strings.TrimSpace(string(sizeLine)), 16, 64)
		if err != nil {
			return nil, errors.NewProtocolError("invalid chunk size", err)
		}
		pos += lineEnd + 2
		if size == 0 {
			return out, nil
		}
		if pos+int(size) > len(buf) {
			return nil, errors.NewInvalidHeadSizeError("chunk body", int(size), len(buf)-pos)
		}
		out = append(out, buf[pos:pos+int(size)]...)
		pos += int(size)
		if pos+2 > len(buf) || buf[pos] != '\r' || buf[pos+1] != '\n' {
			return nil, errors.NewProtocolError("chunk missing trailing CRLF", nil)
		}
		pos += 2
	}
}

// ParseH2 builds a Response from a fully-aggregated HPACK header block and
// the accumulated DATA payload of one stream: the `:status`
// pseudo-header becomes the numeric status, and every other field decodes
// through the ordinary HPACK decoder.
func ParseH2(headerBlock []byte, body []byte) (*Response, error) {
	return ParseH2WithDecoder(hpackcodec.NewDecoder(), headerBlock, body)
}

// ParseH2WithDecoder is ParseH2 against a caller-supplied decoder, so a
// connection's dynamic table carries over across the responses on it.
func ParseH2WithDecoder(dec *hpackcodec.Decoder, headerBlock []byte, body []byte) (*Response, error) {
	fields, err := dec.Decode(headerBlock)
	if err != nil {
		return nil, err
	}
	resp := &Response{rawBody: append([]byte(nil), body...)}
	for _, f := range fields {
		if f.Name == ":status" {
			code, err := strconv.Atoi(f.Value)
			if err != nil {
				return nil, errors.NewProtocolError("malformed :status pseudo-header", err)
			}
			resp.StatusCode = code
			resp.StatusLine = f.Value
			continue
		}
		resp.Headers = append(resp.Headers, Header{Name: f.Name, Value: f.Value})
	}
	return resp, nil
}
