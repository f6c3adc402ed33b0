package client

import (
	"encoding/json"
	"strings"

	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/header"
	"github.com/corvaxnet/rawhttp/pkg/weburl"
)

// SetHeadersJSON replaces headers in bulk from a flat JSON object of
// name/value strings.
func (c *Controller) SetHeadersJSON(raw []byte) error {
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return errors.NewCurrentlyError("invalid headers json: " + err.Error())
	}
	for k, v := range m {
		c.headers.Set(strings.ToLower(k), header.String(v))
	}
	return nil
}

// InsertHeader sets (or overwrites) a single header.
func (c *Controller) InsertHeader(name, value string) {
	c.headers.Set(name, header.String(value))
}

// RemoveHeader deletes a header, reporting its prior value if it was set.
func (c *Controller) RemoveHeader(name string) (string, bool) {
	return c.headers.Remove(name)
}

// SetParams replaces the URL's query parameters wholesale, preserving the
// given order.
func (c *Controller) SetParams(params []weburl.Param) {
	c.url.Uri.Params = append([]weburl.Param(nil), params...)
}

// AddParam appends or overwrites a single query parameter.
func (c *Controller) AddParam(name, value string) {
	c.url.SetParam(name, value)
}

// RemoveParam deletes a single query parameter, reporting its prior value.
func (c *Controller) RemoveParam(name string) (string, bool) {
	return c.url.RemoveParam(name)
}

// FormField is one name/value pair for SetData's application/x-www-form-
// urlencoded body.
type FormField struct {
	Name  string
	Value string
}

// SetData replaces the body with a www-form-urlencoded field set.
func (c *Controller) SetData(fields ...FormField) {
	c.body.clear()
	c.body.kind = bodyKindWWWForm
	for _, f := range fields {
		c.body.form = append(c.body.form, formField{name: f.Name, value: f.Value})
	}
}

// SetText replaces the body with a plain-text payload.
func (c *Controller) SetText(text string) {
	c.body.clear()
	c.body.kind = bodyKindText
	c.body.text = text
}

// SetBytes replaces the body with an opaque byte payload.
func (c *Controller) SetBytes(b []byte) {
	c.body.clear()
	c.body.kind = bodyKindBytes
	c.body.bytes = append([]byte(nil), b...)
}

// SetJSON replaces the body with v, marshaled at send time.
func (c *Controller) SetJSON(v any) {
	c.body.clear()
	c.body.kind = bodyKindJSON
	c.body.jsonVal = v
}

// SetFiles replaces the body with a multipart/form-data upload containing
// exactly these files.
func (c *Controller) SetFiles(files ...File) {
	c.body.clear()
	c.body.kind = bodyKindFiles
	c.body.files = append([]File(nil), files...)
}

// AddFile appends one file to a multipart/form-data upload, switching the
// body kind to Files if it wasn't already.
func (c *Controller) AddFile(f File) {
	c.body.kind = bodyKindFiles
	c.body.files = append(c.body.files, f)
}
