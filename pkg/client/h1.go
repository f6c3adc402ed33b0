package client

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/corvaxnet/rawhttp/pkg/constants"
	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/header"
	"github.com/corvaxnet/rawhttp/pkg/respassembler"
	"github.com/corvaxnet/rawhttp/pkg/timing"
)

func (c *Controller) pathAndQuery() string {
	path := c.url.Uri.Path
	if path == "" {
		path = "/"
	}
	if len(c.url.Uri.Params) == 0 {
		return path
	}
	var b strings.Builder
	b.WriteString(path)
	b.WriteByte('?')
	for i, p := range c.url.Uri.Params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Name))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

func (c *Controller) prepareBodyHeaders() ([]byte, error) {
	payload, contentType, err := c.body.render()
	if err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if _, ok := c.headers.Get("content-type"); !ok && contentType != "" {
			c.headers.Set("content-type", header.ContentType(contentType))
		}
		c.headers.Set("content-length", header.Number(int64(len(payload))))
	}
	return payload, nil
}

func (c *Controller) buildRequestH1(method string) ([]byte, error) {
	payload, err := c.prepareBodyHeaders()
	if err != nil {
		return nil, err
	}
	var b bytes.Buffer
	b.WriteString(method)
	b.WriteByte(' ')
	b.WriteString(c.pathAndQuery())
	b.WriteString(" HTTP/1.1\r\n")
	b.WriteString(c.headers.RenderH1())
	b.WriteString("\r\n")
	b.Write(payload)
	return b.Bytes(), nil
}

func (c *Controller) sendOnceH1(method string, timer *timing.Timer) (*respassembler.Response, error) {
	req, err := c.buildRequestH1(method)
	if err != nil {
		return nil, err
	}
	if _, err := c.rw.Write(req); err != nil {
		return nil, errors.NewIOError("writing http/1.1 request", err)
	}

	timer.StartTTFB()
	first := true
	buf := make([]byte, 0, constants.HTTPBodyBufferCapacity)
	chunk := make([]byte, constants.HTTPBodyBufferCapacity)
	for {
		n, rerr := c.rw.Read(chunk)
		if n > 0 {
			if first {
				timer.EndTTFB()
				first = false
			}
			buf = append(buf, chunk[:n]...)
			if respassembler.H1Complete(buf) {
				break
			}
		}
		if rerr != nil {
			if rerr == io.EOF && respassembler.H1Complete(buf) {
				break
			}
			if rerr == io.EOF {
				return nil, errors.NewPeerClosedError("http/1.1 response read", rerr)
			}
			return nil, rerr
		}
	}
	return respassembler.ParseH1(buf)
}
