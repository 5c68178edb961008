package session

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Wire format, one entry after another:
//
//	key|i:<signed digits>;
//	key|s:<length>:"<exactly length bytes>";
//	key|b:0; or key|b:1;
//	key|N;
//
// Keys end at the first '|'. String bodies are read by declared length and
// may contain any byte, including the delimiters.
const (
	keyDelim   = '|'
	tagDelim   = ':'
	entryDelim = ';'
	quote      = '"'
)

// DecodeError reports where and why decoding stopped.
type DecodeError struct {
	Offset int
	Key    string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("session: decode %q at offset %d: %v", e.Key, e.Offset, e.Err)
	}
	return fmt.Sprintf("session: decode at offset %d: %v", e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrDecode) match any decode failure.
func (e *DecodeError) Is(target error) bool { return target == ErrDecode }

// scanner walks the payload and tracks the current offset.
type scanner struct {
	buf []byte
	pos int
}

func (s *scanner) done() bool { return s.pos >= len(s.buf) }

// until returns the bytes up to (not including) the next delim and moves past it.
func (s *scanner) until(delim byte) ([]byte, error) {
	i := bytes.IndexByte(s.buf[s.pos:], delim)
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrMissingDelimiter, delim)
	}
	tok := s.buf[s.pos : s.pos+i]
	s.pos += i + 1
	return tok, nil
}

// expect consumes delim or fails without moving.
func (s *scanner) expect(delim byte) error {
	if s.done() || s.buf[s.pos] != delim {
		return fmt.Errorf("%w: %q", ErrMissingDelimiter, delim)
	}
	s.pos++
	return nil
}

// take returns the next n bytes.
func (s *scanner) take(n int) ([]byte, error) {
	if n < 0 || len(s.buf)-s.pos < n {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", ErrLengthMismatch, n, len(s.buf)-s.pos)
	}
	tok := s.buf[s.pos : s.pos+n]
	s.pos += n
	return tok, nil
}

// next returns the next byte.
func (s *scanner) next() (byte, error) {
	if s.done() {
		return 0, fmt.Errorf("%w: type tag", ErrMissingDelimiter)
	}
	b := s.buf[s.pos]
	s.pos++
	return b, nil
}

// Decode parses a payload into an ordered mapping.
//
// Decoding stops at the first structural failure and returns the entries
// parsed so far together with a *DecodeError. Entries with an unknown type
// tag are skipped. Decode never panics on malformed input.
func Decode(data []byte) (Values, error) {
	vs := NewValues(8)
	if len(data) == 0 {
		return vs, nil
	}

	s := &scanner{buf: data}
	for !s.done() {
		start := s.pos
		key, err := s.until(keyDelim)
		if err != nil {
			return vs, &DecodeError{Offset: start, Err: err}
		}

		v, ok, err := decodeValue(s)
		if err != nil {
			return vs, &DecodeError{Offset: start, Key: string(key), Err: err}
		}
		if ok {
			vs.Set(string(key), v)
		}
	}
	return vs, nil
}

// decodeValue parses one tagged value. ok is false for skipped entries.
func decodeValue(s *scanner) (v Value, ok bool, err error) {
	tag, err := s.next()
	if err != nil {
		return Value{}, false, err
	}

	switch tag {
	case 'N':
		// Null has no value; a trailing ';' is optional.
		if !s.done() && s.buf[s.pos] == entryDelim {
			s.pos++
		}
		return Null(), true, nil

	case 'i':
		if err := s.expect(tagDelim); err != nil {
			return Value{}, false, err
		}
		raw, err := s.until(entryDelim)
		if err != nil {
			return Value{}, false, err
		}
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return Value{}, false, fmt.Errorf("%w: %q", ErrInvalidInteger, raw)
		}
		return Int(n), true, nil

	case 'b':
		if err := s.expect(tagDelim); err != nil {
			return Value{}, false, err
		}
		raw, err := s.until(entryDelim)
		if err != nil {
			return Value{}, false, err
		}
		n, err := strconv.ParseInt(string(raw), 10, 64)
		if err != nil {
			return Value{}, false, fmt.Errorf("%w: %q", ErrInvalidInteger, raw)
		}
		return Bool(n != 0), true, nil

	case 's':
		if err := s.expect(tagDelim); err != nil {
			return Value{}, false, err
		}
		raw, err := s.until(tagDelim)
		if err != nil {
			return Value{}, false, err
		}
		n, err := strconv.Atoi(string(raw))
		if err != nil || n < 0 {
			return Value{}, false, fmt.Errorf("%w: length %q", ErrInvalidInteger, raw)
		}
		if err := s.expect(quote); err != nil {
			return Value{}, false, err
		}
		body, err := s.take(n)
		if err != nil {
			return Value{}, false, err
		}
		if err := s.expect(quote); err != nil {
			return Value{}, false, errors.Join(ErrLengthMismatch, err)
		}
		if err := s.expect(entryDelim); err != nil {
			return Value{}, false, err
		}
		return String(string(body)), true, nil

	default:
		if _, err := s.until(entryDelim); err != nil {
			return Value{}, false, err
		}
		return Value{}, false, nil
	}
}

// Encode serializes the mapping in insertion order.
// Keys containing '|' cannot be represented and yield ErrInvalidKey.
func Encode(vs Values) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(vs.Len() * 16)

	for _, key := range vs.keys {
		if strings.IndexByte(key, keyDelim) >= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		buf.WriteString(key)
		buf.WriteByte(keyDelim)

		v := vs.m[key]
		switch v.kind {
		case KindInt:
			buf.WriteString("i:")
			buf.WriteString(strconv.FormatInt(v.i, 10))
			buf.WriteByte(entryDelim)
		case KindBool:
			if v.i != 0 {
				buf.WriteString("b:1;")
			} else {
				buf.WriteString("b:0;")
			}
		case KindString:
			buf.WriteString("s:")
			buf.WriteString(strconv.Itoa(len(v.s)))
			buf.WriteByte(tagDelim)
			buf.WriteByte(quote)
			buf.WriteString(v.s)
			buf.WriteByte(quote)
			buf.WriteByte(entryDelim)
		default:
			buf.WriteString("N;")
		}
	}
	return buf.Bytes(), nil
}
