package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// CurrentRecordVersion is the user record format written by [Encode].
const CurrentRecordVersion = 1

// Encode serializes the non-token part of s (identity, cached profile, expiry
// and last error) into the compact user record format.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.WriteByte(CurrentRecordVersion)

	if err := writeShort(&buf, "userID", s.UserID); err != nil {
		return nil, err
	}
	if err := writeShort(&buf, "username", s.Username); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "email", s.Email); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "avatarURL", s.AvatarURL); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "coverURL", s.CoverURL); err != nil {
		return nil, err
	}

	var dark byte
	if s.DarkMode {
		dark = 1
	}
	buf.WriteByte(dark)

	if err := binary.Write(&buf, binary.BigEndian, s.AccessTokenExpiresAt); err != nil {
		return nil, err
	}
	if err := writeLong(&buf, "lastError", s.LastError); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode parses a user record produced by [Encode]. Token fields of the
// returned session are empty.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != CurrentRecordVersion {
		return nil, fmt.Errorf("unsupported user record version %d", version)
	}

	s := &Session{}
	if s.UserID, err = readShort(reader); err != nil {
		return nil, err
	}
	if s.Username, err = readShort(reader); err != nil {
		return nil, err
	}
	if s.Email, err = readLong(reader); err != nil {
		return nil, err
	}
	if s.AvatarURL, err = readLong(reader); err != nil {
		return nil, err
	}
	if s.CoverURL, err = readLong(reader); err != nil {
		return nil, err
	}

	dark, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if dark > 1 {
		return nil, errors.New("invalid dark mode flag")
	}
	s.DarkMode = dark == 1

	if err := binary.Read(reader, binary.BigEndian, &s.AccessTokenExpiresAt); err != nil {
		return nil, err
	}
	if s.LastError, err = readLong(reader); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in user record")
	}

	return s, nil
}

func writeShort(buf *bytes.Buffer, field, v string) error {
	if len(v) > math.MaxUint8 {
		return fmt.Errorf("%s too long", field)
	}
	buf.WriteByte(byte(len(v)))
	buf.WriteString(v)
	return nil
}

func writeLong(buf *bytes.Buffer, field, v string) error {
	if len(v) > math.MaxUint16 {
		return fmt.Errorf("%s too long", field)
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readShort(r *bytes.Reader) (string, error) {
	n, err := r.ReadByte()
	if err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readLong(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	return readN(r, int(n))
}

func readN(r *bytes.Reader, n int) (string, error) {
	if n > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}
