package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/url"

	"github.com/corvaxnet/rawhttp/pkg/constants"
)

// bodyKind tags which request-body representation is active. At most one
// is set at a time; SetURL clears it when the request's host changes.
type bodyKind int

const (
	bodyKindNone bodyKind = iota
	bodyKindText
	bodyKindBytes
	bodyKindWWWForm
	bodyKindJSON
	bodyKindFiles
)

// File is one multipart file field for BodyKind.Files.
type File struct {
	FieldName   string
	FileName    string
	ContentType string
	Content     []byte
}

// body holds the active body representation plus enough state to render it
// and its Content-Type on demand.
type body struct {
	kind     bodyKind
	text     string
	bytes    []byte
	form     []formField
	jsonVal  any
	files    []File
	boundary string
}

type formField struct {
	name  string
	value string
}

func (b *body) clear() { *b = body{} }

// render serializes the active body and returns the Content-Type header
// value to pair with it ("" if the body kind carries none, e.g. raw bytes).
func (b *body) render() (payload []byte, contentType string, err error) {
	switch b.kind {
	case bodyKindNone:
		return nil, "", nil
	case bodyKindText:
		return []byte(b.text), "text/plain; charset=utf-8", nil
	case bodyKindBytes:
		return b.bytes, "", nil
	case bodyKindWWWForm:
		var q url.Values = make(url.Values, len(b.form))
		for _, f := range b.form {
			q.Add(f.name, f.value)
		}
		return []byte(q.Encode()), "application/x-www-form-urlencoded", nil
	case bodyKindJSON:
		out, err := json.Marshal(b.jsonVal)
		if err != nil {
			return nil, "", err
		}
		return out, "application/json", nil
	case bodyKindFiles:
		return b.renderMultipart()
	default:
		return nil, "", nil
	}
}

func (b *body) renderMultipart() ([]byte, string, error) {
	boundary := b.boundary
	if boundary == "" {
		boundary = constants.DefaultMultipartBoundary
	}
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(boundary); err != nil {
		return nil, "", err
	}
	for _, f := range b.files {
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{
			fmt.Sprintf(`form-data; name=%q; filename=%q`, f.FieldName, f.FileName),
		}
		header["Content-Type"] = []string{ct}
		part, err := w.CreatePart(header)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "multipart/form-data; boundary=" + boundary, nil
}
