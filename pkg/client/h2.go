package client

import (
	"golang.org/x/net/http2"

	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/h2frame"
	"github.com/corvaxnet/rawhttp/pkg/respassembler"
	"github.com/corvaxnet/rawhttp/pkg/timing"
)

func (c *Controller) buildHeaderFieldsH2(method string) [][2]string {
	scheme := "http"
	if c.url.IsTLS() {
		scheme = "https"
	}
	return c.headers.H2Fields(method, c.url.HostHeader(), scheme, c.pathAndQuery())
}

func (c *Controller) sendOnceH2(method string, timer *timing.Timer) (*respassembler.Response, error) {
	payload, err := c.prepareBodyHeaders()
	if err != nil {
		return nil, err
	}

	block, err := c.hpackEnc.Encode(c.buildHeaderFieldsH2(method))
	if err != nil {
		return nil, err
	}

	streamID := c.streamID
	if err := c.h2.WriteHeaders(streamID, block, len(payload) == 0); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := c.h2.WriteData(streamID, payload, true); err != nil {
			return nil, err
		}
	}

	timer.StartTTFB()
	resp, err := c.readResponseH2(streamID)
	timer.EndTTFB()
	return resp, err
}

// readResponseH2 drains frames until the response stream's HEADERS
// (+CONTINUATION) and DATA have both completed, acking
// SETTINGS inline and treating GOAWAY as a peer-closed connection.
func (c *Controller) readResponseH2(streamID uint32) (*respassembler.Response, error) {
	var agg h2frame.HeaderAggregator
	var bodyBuf []byte
	headersDone := false
	streamDone := false

	for !streamDone {
		f, err := c.h2.ReadFrame()
		if err != nil {
			return nil, err
		}
		switch fr := f.(type) {
		case *http2.SettingsFrame:
			if !fr.IsAck() {
				if err := c.h2.WriteSettingsAck(); err != nil {
					return nil, err
				}
			}
		case *http2.GoAwayFrame:
			return nil, errors.NewPeerClosedError("http/2 goaway received", nil)
		case *http2.HeadersFrame:
			if fr.StreamID != streamID {
				continue
			}
			complete, err := agg.Feed(fr)
			if err != nil {
				return nil, err
			}
			if complete {
				headersDone = true
				if agg.StreamEnded() {
					streamDone = true
				}
			}
		case *http2.ContinuationFrame:
			if fr.StreamID != streamID {
				continue
			}
			complete, err := agg.Feed(fr)
			if err != nil {
				return nil, err
			}
			if complete {
				headersDone = true
				if agg.StreamEnded() {
					streamDone = true
				}
			}
		case *http2.DataFrame:
			if fr.StreamID != streamID {
				continue
			}
			bodyBuf = append(bodyBuf, fr.Data()...)
			if fr.StreamEnded() {
				streamDone = true
			}
		}
	}
	if !headersDone {
		return nil, errors.NewProtocolError("http/2 stream ended before headers completed", nil)
	}
	return respassembler.ParseH2WithDecoder(c.hpackDec, agg.Block(), bodyBuf)
}
