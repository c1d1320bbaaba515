package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// CurrentSchemaVersion is the version byte written by Encode.
const CurrentSchemaVersion uint8 = 1

const (
	flagPending uint8 = 1 << iota
	flagSecondFactorVerified
	flagRemember
)

const maxUserAgentLen = 512

var (
	errFieldTooLong   = errors.New("session field too long")
	errInvalidVersion = errors.New("invalid session version")
)

// Encode serialises s in the compact binary layout stored in Redis.
// The session ID is the key and is not part of the value.
func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(CurrentSchemaVersion)

	var flags uint8
	if s.Pending {
		flags |= flagPending
	}
	if s.SecondFactorVerified {
		flags |= flagSecondFactorVerified
	}
	if s.Remember {
		flags |= flagRemember
	}
	buf.WriteByte(flags)

	if err := writeShort(&buf, s.AccountID); err != nil {
		return nil, err
	}
	if err := writeShort(&buf, s.IP); err != nil {
		return nil, err
	}

	ua := s.UserAgent
	if len(ua) > maxUserAgentLen {
		ua = ua[:maxUserAgentLen]
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(ua))); err != nil {
		return nil, err
	}
	buf.WriteString(ua)

	if err := binary.Write(&buf, binary.BigEndian, s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, s.ExpiresAt); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a value written by Encode.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentSchemaVersion {
		return nil, errInvalidVersion
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	s := &Session{
		SchemaVersion:        version,
		Pending:              flags&flagPending != 0,
		SecondFactorVerified: flags&flagSecondFactorVerified != 0,
		Remember:             flags&flagRemember != 0,
	}

	if s.AccountID, err = readShort(reader); err != nil {
		return nil, err
	}
	if s.IP, err = readShort(reader); err != nil {
		return nil, err
	}

	var uaLen uint16
	if err := binary.Read(reader, binary.BigEndian, &uaLen); err != nil {
		return nil, err
	}
	if int(uaLen) > maxUserAgentLen {
		return nil, errFieldTooLong
	}
	ua := make([]byte, uaLen)
	if _, err := io.ReadFull(reader, ua); err != nil {
		return nil, err
	}
	s.UserAgent = string(ua)

	if err := binary.Read(reader, binary.BigEndian, &s.CreatedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &s.ExpiresAt); err != nil {
		return nil, err
	}

	return s, nil
}

func writeShort(buf *bytes.Buffer, v string) error {
	if len(v) > 255 {
		return errFieldTooLong
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func readShort(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
