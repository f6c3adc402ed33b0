// Package tlsstream drives the TLS 1.2 ECDHE handshake state machine over
// a live connection and then exposes the negotiated session as a
// plain byte stream: Write seals one application-data record per call, Read
// returns decrypted payload as it arrives, and a peer close_notify alert is
// reported rather than surfaced as a raw decrypt failure.
package tlsstream

import (
	"crypto/rand"
	"io"

	"github.com/corvaxnet/rawhttp/pkg/buffer"
	"github.com/corvaxnet/rawhttp/pkg/constants"
	"github.com/corvaxnet/rawhttp/pkg/errors"
	"github.com/corvaxnet/rawhttp/pkg/fingerprint"
	"github.com/corvaxnet/rawhttp/pkg/tlscipher"
	"github.com/corvaxnet/rawhttp/pkg/tlsconn"
	"github.com/corvaxnet/rawhttp/pkg/tlsrecord"
	"github.com/corvaxnet/rawhttp/pkg/tlssuite"
	"github.com/corvaxnet/rawhttp/pkg/transport"
)

// Config carries the inputs a caller supplies before driving a handshake.
type Config struct {
	// ServerName is the TLS server_name sent in SNI.
	ServerName string
	// Template is the browser fingerprint's ClientHello record, already
	// carrying the cipher suite list, extension set, and (optionally) ALPN
	// and supported_versions edits the caller wants; client_random,
	// session_id, and SNI are overwritten by Handshake itself.
	Template *fingerprint.Template
	// Groups lists the named groups the engine accepts in the server's
	// ServerKeyExchange; the handshake fails when the server selects a group
	// outside it. The list does not rewrite the Template's supported_groups
	// extension, which is sent as captured.
	Groups []tlsconn.NamedGroup
}

// Stream is an established TLS 1.2 connection: a plaintext net.Conn-like
// transport underneath, two independent AEAD ciphers, and the negotiated
// ALPN protocol.
type Stream struct {
	conn io.ReadWriter
	mode transport.IOMode

	readBuf *buffer.Buffer

	writeCipher *tlscipher.Cipher
	readCipher  *tlscipher.Cipher

	negotiatedALPN string
	recordVersion  uint16

	// pending holds decrypted application data not yet returned by Read.
	pending []byte

	closed bool
}

// NegotiatedALPN returns the protocol chosen during the handshake, or "" if
// the peer did not select one.
func (s *Stream) NegotiatedALPN() string { return s.negotiatedALPN }

// handshakeSession carries the running state threaded through the
// handshake's sequential steps.
type handshakeSession struct {
	conn io.ReadWriter
	mode transport.IOMode
	buf  *buffer.Buffer

	transcript *tlsconn.Transcript

	clientRandom [32]byte
	serverRandom [32]byte

	suite          tlssuite.Suite
	useEMS         bool
	negotiatedALPN string

	keyShare        *tlsconn.KeyShare
	serverPublicKey []byte

	masterSecret []byte

	// pending holds handshake sub-messages already read off the wire but
	// not yet consumed by the state machine (servers may coalesce several
	// handshake messages into one TLS record).
	pending []tlsrecord.HandshakeMessage

	// writeCipher/readCipher are derived exactly once, right before the
	// client Finished message is sealed, and reused for every record after
	// (including the ones returned to the caller) so sequence numbers
	// never restart partway through the session.
	writeCipher *tlscipher.Cipher
	readCipher  *tlscipher.Cipher
}

// Handshake drives the full TLS 1.2 ECDHE handshake over conn and, on
// success, returns an established Stream ready for application data:
// SEND_CLIENT_HELLO, RECV_SERVER_HELLO, RECV_CERT, RECV_KEY_EXCHANGE,
// RECV_SERVER_HELLO_DONE, SEND_CLIENT_KEY_EXCHANGE, SEND_CHANGE_CIPHER_SPEC,
// SEND_FINISHED, RECV_CHANGE_CIPHER_SPEC, RECV_FINISHED, ESTABLISHED.
func Handshake(conn io.ReadWriter, mode transport.IOMode, cfg Config) (*Stream, error) {
	hs := &handshakeSession{
		conn:       conn,
		mode:       mode,
		buf:        buffer.New(constants.TLSRecordBufferCapacity),
		transcript: tlsconn.NewTranscript(),
	}

	if _, err := rand.Read(hs.clientRandom[:]); err != nil {
		return nil, errors.NewTLSError("", 0, err)
	}
	var sessionID [32]byte
	if _, err := rand.Read(sessionID[:]); err != nil {
		return nil, errors.NewTLSError("", 0, err)
	}

	if err := cfg.Template.SetSNI(cfg.ServerName); err != nil {
		return nil, err
	}
	if err := cfg.Template.SetRandom(hs.clientRandom); err != nil {
		return nil, err
	}
	if err := cfg.Template.SetSessionID(sessionID); err != nil {
		return nil, err
	}

	if err := hs.sendClientHello(cfg.Template); err != nil {
		return nil, err
	}
	if err := hs.recvServerHello(); err != nil {
		return nil, err
	}
	if err := hs.recvCertificate(); err != nil {
		return nil, err
	}
	if err := hs.recvServerKeyExchange(cfg.Groups); err != nil {
		return nil, err
	}
	if err := hs.recvServerHelloDone(); err != nil {
		return nil, err
	}
	if err := hs.sendClientKeyExchange(); err != nil {
		return nil, err
	}
	if err := hs.sendChangeCipherSpecAndFinished(); err != nil {
		return nil, err
	}
	if err := hs.recvChangeCipherSpecAndFinished(); err != nil {
		return nil, err
	}

	return &Stream{
		conn:           conn,
		mode:           mode,
		readBuf:        hs.buf,
		writeCipher:    hs.writeCipher,
		readCipher:     hs.readCipher,
		negotiatedALPN: hs.negotiatedALPN,
		recordVersion:  0x0303,
	}, nil
}

// readRecord pulls bytes from the connection until one full TLS record is
// available at the front of the buffer, then consumes and returns it.
func (hs *handshakeSession) readRecord() (*tlsrecord.Record, error) {
	hs.mode.Suspend()
	for hs.buf.Len() < tlsrecord.HeaderLen {
		if _, err := hs.buf.ReadUpTo(hs.conn, hs.buf.Remaining()); err != nil {
			return nil, err
		}
	}
	header, err := tlsrecord.ParseHeader(hs.buf.Bytes()[:tlsrecord.HeaderLen])
	if err != nil {
		return nil, err
	}
	total := tlsrecord.HeaderLen + int(header.Length)
	for hs.buf.Len() < total {
		if hs.buf.Remaining() == 0 {
			return nil, errors.NewInvalidHeadSizeError("tls record exceeds read buffer capacity", total, hs.buf.Cap())
		}
		if _, err := hs.buf.ReadUpTo(hs.conn, hs.buf.Remaining()); err != nil {
			return nil, err
		}
	}
	rec, n, err := tlsrecord.Parse(hs.buf.Bytes()[:total])
	if err != nil {
		return nil, err
	}
	hs.buf.Discard(n)
	return rec, nil
}

func (hs *handshakeSession) sendClientHello(tpl *fingerprint.Template) error {
	raw := tpl.Bytes()
	hs.transcript.Write(raw[tlsrecord.HeaderLen:]) // strip record header before hashing
	hs.mode.Suspend()
	_, err := hs.conn.Write(raw)
	if err != nil {
		return errors.NewIOError("writing client hello", err)
	}
	return nil
}

func (hs *handshakeSession) recvServerHello() error {
	rec, err := hs.readRecord()
	if err != nil {
		return err
	}
	if rec.Header.Type != tlsrecord.TypeHandshake {
		return errors.NewProtocolError("expected handshake record for ServerHello", nil)
	}
	msgs, err := tlsrecord.SplitHandshakeMessages(rec.Payload)
	if err != nil {
		return err
	}
	if len(msgs) == 0 || msgs[0].Type != tlsrecord.HSServerHello {
		return errors.NewProtocolError("expected ServerHello message", nil)
	}
	sh := msgs[0]
	hs.transcript.Write(sh.Raw)

	body := sh.Body
	if len(body) < 2+32+1 {
		return errors.NewInvalidHeadSizeError("server hello body", 35, len(body))
	}
	pos := 2 // server_version
	copy(hs.serverRandom[:], body[pos:pos+32])
	pos += 32
	sessIDLen := int(body[pos])
	pos += 1 + sessIDLen
	if pos+2 > len(body) {
		return errors.NewInvalidHeadSizeError("server hello cipher suite", pos+2, len(body))
	}
	suiteCode := uint16(body[pos])<<8 | uint16(body[pos+1])
	pos += 2
	pos++ // compression method

	suite, err := tlssuite.ByCode(suiteCode)
	if err != nil {
		return err
	}
	hs.suite = suite
	hs.transcript.SelectHash(suite.NewHash())

	if pos+2 <= len(body) {
		extLen := int(body[pos])<<8 | int(body[pos+1])
		pos += 2
		if pos+extLen <= len(body) {
			hs.parseServerHelloExtensions(body[pos : pos+extLen])
		}
	}

	// Any handshake sub-messages bundled into the same record after
	// ServerHello (Certificate, ServerKeyExchange, ServerHelloDone are
	// commonly split across records by real servers, but some coalesce
	// them) are pushed back for the subsequent Recv* steps to consume.
	if len(msgs) > 1 {
		hs.pending = msgs[1:]
	}
	return nil
}

func (hs *handshakeSession) parseServerHelloExtensions(ext []byte) {
	pos := 0
	for pos+4 <= len(ext) {
		typ := uint16(ext[pos])<<8 | uint16(ext[pos+1])
		length := int(ext[pos+2])<<8 | int(ext[pos+3])
		data := ext[pos+4 : min(pos+4+length, len(ext))]
		switch typ {
		case 0x0010: // application_layer_protocol_negotiation
			if len(data) > 2 {
				// list length(2) + proto_len(1) + proto
				protoLen := int(data[2])
				if 3+protoLen <= len(data) {
					hs.negotiatedALPN = string(data[3 : 3+protoLen])
				}
			}
		case 0x0017: // extended_master_secret
			hs.useEMS = true
		}
		pos += 4 + length
	}
}

func (hs *handshakeSession) nextHandshakeMessage() (tlsrecord.HandshakeMessage, error) {
	if len(hs.pending) > 0 {
		m := hs.pending[0]
		hs.pending = hs.pending[1:]
		return m, nil
	}
	rec, err := hs.readRecord()
	if err != nil {
		return tlsrecord.HandshakeMessage{}, err
	}
	if rec.Header.Type != tlsrecord.TypeHandshake {
		return tlsrecord.HandshakeMessage{}, errors.NewProtocolError("expected handshake record", nil)
	}
	msgs, err := tlsrecord.SplitHandshakeMessages(rec.Payload)
	if err != nil {
		return tlsrecord.HandshakeMessage{}, err
	}
	if len(msgs) == 0 {
		return tlsrecord.HandshakeMessage{}, errors.NewProtocolError("empty handshake record", nil)
	}
	hs.pending = msgs[1:]
	return msgs[0], nil
}

func (hs *handshakeSession) recvCertificate() error {
	msg, err := hs.nextHandshakeMessage()
	if err != nil {
		return err
	}
	if msg.Type != tlsrecord.HSCertificate {
		return errors.NewProtocolError("expected Certificate message", nil)
	}
	hs.transcript.Write(msg.Raw)
	// Certificate chain parsing and validation is intentionally not
	// performed: the custom TLS path trusts the peer unconditionally.
	return nil
}

func (hs *handshakeSession) recvServerKeyExchange(offeredGroups []tlsconn.NamedGroup) error {
	msg, err := hs.nextHandshakeMessage()
	if err != nil {
		return err
	}
	if msg.Type != tlsrecord.HSServerKeyExchange {
		return errors.NewProtocolError("expected ServerKeyExchange message", nil)
	}
	hs.transcript.Write(msg.Raw)

	body := msg.Body
	if len(body) < 4 || body[0] != 0x03 { // curve_type: named_curve
		return errors.NewProtocolError("unsupported ECDHE curve_type in ServerKeyExchange", nil)
	}
	group := tlsconn.NamedGroup(uint16(body[1])<<8 | uint16(body[2]))
	pubLen := int(body[3])
	if 4+pubLen > len(body) {
		return errors.NewInvalidHeadSizeError("server key exchange public key", 4+pubLen, len(body))
	}
	hs.serverPublicKey = append([]byte(nil), body[4:4+pubLen]...)

	matched := false
	for _, g := range offeredGroups {
		if g == group {
			matched = true
			break
		}
	}
	if !matched {
		return errors.NewProtocolError("server selected a named group the client did not offer", nil)
	}

	keyShare, err := tlsconn.GenerateKeyShare(group)
	if err != nil {
		return err
	}
	hs.keyShare = keyShare
	// Signature bytes covering (client_random||server_random||params)
	// follow but are not verified, per the certificate-validation non-goal.
	return nil
}

func (hs *handshakeSession) recvServerHelloDone() error {
	msg, err := hs.nextHandshakeMessage()
	if err != nil {
		return err
	}
	if msg.Type != tlsrecord.HSServerHelloDone {
		return errors.NewProtocolError("expected ServerHelloDone message", nil)
	}
	hs.transcript.Write(msg.Raw)
	return nil
}

func (hs *handshakeSession) sendClientKeyExchange() error {
	pub := hs.keyShare.Public()
	body := make([]byte, 1+len(pub))
	body[0] = byte(len(pub))
	copy(body[1:], pub)
	msg := tlsrecord.BuildHandshakeMessage(tlsrecord.HSClientKeyExchange, body)
	hs.transcript.Write(msg)

	rec := &tlsrecord.Record{
		Header:  tlsrecord.Header{Type: tlsrecord.TypeHandshake, Version: 0x0303, Length: uint16(len(msg))},
		Payload: msg,
	}
	hs.mode.Suspend()
	if _, err := hs.conn.Write(rec.Serialize()); err != nil {
		return errors.NewIOError("writing client key exchange", err)
	}

	sharedSecret, err := hs.keyShare.SharedSecret(hs.serverPublicKey)
	if err != nil {
		return err
	}

	msIn := tlsconn.MasterSecretInput{
		Suite:             hs.suite,
		SharedSecret:      sharedSecret,
		ClientRandom:      hs.clientRandom[:],
		ServerRandom:      hs.serverRandom[:],
		UseExtendedMaster: hs.useEMS,
	}
	if hs.useEMS {
		msIn.TranscriptAtClientKeyExchange = hs.transcript.Sum()
	}
	hs.masterSecret = tlsconn.DeriveMasterSecret(msIn)
	return nil
}

func (hs *handshakeSession) sendChangeCipherSpecAndFinished() error {
	ccs := &tlsrecord.Record{
		Header:  tlsrecord.Header{Type: tlsrecord.TypeChangeCipherSpec, Version: 0x0303, Length: 1},
		Payload: []byte{0x01},
	}
	hs.mode.Suspend()
	if _, err := hs.conn.Write(ccs.Serialize()); err != nil {
		return errors.NewIOError("writing change cipher spec", err)
	}

	writeCipher, readCipher, err := hs.deriveCiphers()
	if err != nil {
		return err
	}
	hs.writeCipher = writeCipher
	hs.readCipher = readCipher

	verifyData := tlsconn.FinishedVerifyData(hs.suite, hs.masterSecret, "client finished", hs.transcript.Sum())
	finishedBody := tlsconn.BuildFinishedBody(verifyData)
	finishedMsg := tlsrecord.BuildHandshakeMessage(tlsrecord.HSFinished, finishedBody)
	hs.transcript.Write(finishedMsg)

	sealed, err := writeCipher.Seal(tlsrecord.TypeHandshake, 0x0303, finishedMsg)
	if err != nil {
		return err
	}
	rec := &tlsrecord.Record{
		Header:  tlsrecord.Header{Type: tlsrecord.TypeHandshake, Version: 0x0303, Length: uint16(len(sealed))},
		Payload: sealed,
	}
	hs.mode.Suspend()
	if _, err := hs.conn.Write(rec.Serialize()); err != nil {
		return errors.NewIOError("writing finished", err)
	}
	return nil
}

// deriveCiphers derives the write/read AEAD ciphers from the master secret.
// Called exactly once, before the client Finished message is sealed.
func (hs *handshakeSession) deriveCiphers() (write, read *tlscipher.Cipher, err error) {
	kb := tlsconn.DeriveKeyBlock(hs.suite, hs.masterSecret, hs.serverRandom[:], hs.clientRandom[:])
	write, err = tlscipher.New(hs.suite, kb.ClientWriteKey, kb.ClientWriteIV, kb.ClientWriteExplicit)
	if err != nil {
		return nil, nil, err
	}
	read, err = tlscipher.New(hs.suite, kb.ServerWriteKey, kb.ServerWriteIV, kb.ServerWriteExplicit)
	if err != nil {
		return nil, nil, err
	}
	return write, read, nil
}

func (hs *handshakeSession) recvChangeCipherSpecAndFinished() error {
	rec, err := hs.readRecord()
	if err != nil {
		return err
	}
	if rec.Header.Type != tlsrecord.TypeChangeCipherSpec {
		return errors.NewProtocolError("expected ChangeCipherSpec record", nil)
	}

	rec2, err := hs.readRecord()
	if err != nil {
		return err
	}
	if rec2.Header.Type != tlsrecord.TypeHandshake {
		return errors.NewProtocolError("expected encrypted Finished record", nil)
	}
	plaintext, err := hs.readCipher.Open(tlsrecord.TypeHandshake, rec2.Header.Version, rec2.Payload)
	if err != nil {
		return err
	}
	msgs, err := tlsrecord.SplitHandshakeMessages(plaintext)
	if err != nil {
		return err
	}
	if len(msgs) == 0 || msgs[0].Type != tlsrecord.HSFinished {
		return errors.NewProtocolError("expected Finished message", nil)
	}

	expected := tlsconn.FinishedVerifyData(hs.suite, hs.masterSecret, "server finished", hs.transcript.Sum())
	if string(expected) != string(msgs[0].Body) {
		return errors.NewProtocolError("server Finished verify_data mismatch", nil)
	}
	return nil
}

// Write seals plaintext as one TLS application-data record and sends it.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errors.NewPeerClosedError("write", nil)
	}
	s.mode.Suspend()
	sealed, err := s.writeCipher.Seal(tlsrecord.TypeApplicationData, s.recordVersion, p)
	if err != nil {
		return 0, err
	}
	rec := &tlsrecord.Record{
		Header:  tlsrecord.Header{Type: tlsrecord.TypeApplicationData, Version: s.recordVersion, Length: uint16(len(sealed))},
		Payload: sealed,
	}
	if _, err := s.conn.Write(rec.Serialize()); err != nil {
		return 0, errors.NewIOError("writing application data", err)
	}
	return len(p), nil
}

// Read returns decrypted application data from at most one record per call;
// when p is shorter than a record's plaintext, the rest is returned by the
// following calls before another record is read. A peer close_notify alert
// is reported as io.EOF.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.pending) > 0 {
		n := copy(p, s.pending)
		s.pending = s.pending[n:]
		return n, nil
	}
	if s.closed {
		return 0, io.EOF
	}
	for {
		s.mode.Suspend()
		for s.readBuf.Len() < tlsrecord.HeaderLen {
			if _, err := s.readBuf.ReadUpTo(s.conn, s.readBuf.Remaining()); err != nil {
				return 0, err
			}
		}
		header, err := tlsrecord.ParseHeader(s.readBuf.Bytes()[:tlsrecord.HeaderLen])
		if err != nil {
			return 0, err
		}
		total := tlsrecord.HeaderLen + int(header.Length)
		for s.readBuf.Len() < total {
			if s.readBuf.Remaining() == 0 {
				return 0, errors.NewInvalidHeadSizeError("tls record exceeds read buffer capacity", total, s.readBuf.Cap())
			}
			if _, err := s.readBuf.ReadUpTo(s.conn, s.readBuf.Remaining()); err != nil {
				return 0, err
			}
		}
		rec, n, err := tlsrecord.Parse(s.readBuf.Bytes()[:total])
		if err != nil {
			return 0, err
		}
		s.readBuf.Discard(n)

		plaintext, err := s.readCipher.Open(rec.Header.Type, rec.Header.Version, rec.Payload)
		if err != nil {
			return 0, err
		}

		switch rec.Header.Type {
		case tlsrecord.TypeAlert:
			s.closed = true
			if len(plaintext) == 2 && plaintext[0] == 0x01 && plaintext[1] == 0x00 {
				return 0, io.EOF
			}
			return 0, errors.NewProtocolError("received fatal TLS alert", nil)
		case tlsrecord.TypeApplicationData:
			n := copy(p, plaintext)
			s.pending = append([]byte(nil), plaintext[n:]...)
			return n, nil
		default:
			// Stray handshake or change-cipher-spec records after
			// established state (e.g. session ticket updates) are
			// discarded; loop for the next record.
			continue
		}
	}
}

// Close sends a close_notify alert under the current write cipher, per
// an AEAD record-layer shutdown.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	sealed, err := s.writeCipher.Seal(tlsrecord.TypeAlert, s.recordVersion, []byte{0x01, 0x00})
	if err != nil {
		return err
	}
	rec := &tlsrecord.Record{
		Header:  tlsrecord.Header{Type: tlsrecord.TypeAlert, Version: s.recordVersion, Length: uint16(len(sealed))},
		Payload: sealed,
	}
	_, err = s.conn.Write(rec.Serialize())
	return err
}
