package metadata

import (
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	// ErrTruncated is returned when a payload ends inside a field.
	ErrTruncated = errors.New("metadata: truncated message")

	// ErrMalformed is returned for payloads that are not valid protobuf or
	// use the wrong wire type for a known field.
	ErrMalformed = errors.New("metadata: malformed message")
)

// DecodeError locates a decoding failure.
type DecodeError struct {
	Message string
	Offset  int
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("metadata: decode %s at byte %d: %v", e.Message, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func decodeErr(msg string, off int, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = ErrTruncated
	} else if !errors.Is(err, ErrMalformed) {
		err = fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &DecodeError{Message: msg, Offset: off, Err: err}
}

var errWireType = fmt.Errorf("%w: unexpected wire type", ErrMalformed)

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(v))
}

func appendPacked(b []byte, num protowire.Number, vs []int32) []byte {
	if len(vs) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(int64(v)))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

type marshaler interface {
	appendTo(b []byte) []byte
}

func appendMessage(b []byte, num protowire.Number, m marshaler) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.appendTo(nil))
}

func appendMessages[M marshaler](b []byte, num protowire.Number, ms []M) []byte {
	for _, m := range ms {
		b = appendMessage(b, num, m)
	}
	return b
}

// Marshal encodes the bundle.
func (m *Bundle) Marshal() []byte { return m.appendTo(nil) }

// Marshal encodes the class.
func (m *Class) Marshal() []byte { return m.appendTo(nil) }

// Marshal encodes the package.
func (m *Package) Marshal() []byte { return m.appendTo(nil) }

// Marshal encodes the callable.
func (m *Callable) Marshal() []byte { return m.appendTo(nil) }

func (m *Bundle) appendTo(b []byte) []byte {
	return appendMessages(b, 1, m.Entries)
}

func (m *Entry) appendTo(b []byte) []byte {
	b = appendString(b, 1, m.FQName)
	b = appendInt32(b, 2, int32(m.Kind))
	for _, n := range m.Names {
		b = protowire.AppendTag(b, 3, protowire.BytesType)
		b = protowire.AppendString(b, n)
	}
	return appendBytes(b, 4, m.Payload)
}

func (m *Class) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, m.Flags)
	b = appendInt32(b, 2, m.FQName)
	b = appendMessages(b, 3, m.TypeParameters)
	b = appendMessages(b, 4, m.Supertypes)
	b = appendMessages(b, 5, m.Members)
	return appendPacked(b, 6, m.NestedClassName)
}

func (m *Package) appendTo(b []byte) []byte {
	b = appendMessages(b, 1, m.Members)
	return appendPacked(b, 2, m.ClassName)
}

func (m *Callable) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, m.Flags)
	b = appendInt32(b, 2, m.Name)
	b = appendMessages(b, 3, m.TypeParameters)
	if m.ReceiverType != nil {
		b = appendMessage(b, 4, m.ReceiverType)
	}
	b = appendMessages(b, 5, m.ValueParameters)
	if m.ReturnType != nil {
		b = appendMessage(b, 6, m.ReturnType)
	}
	return appendMessages(b, 7, m.Annotations)
}

func (m *ValueParameter) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, m.Flags)
	b = appendInt32(b, 2, m.Name)
	if m.Type != nil {
		b = appendMessage(b, 3, m.Type)
	}
	if m.VarargElementType != nil {
		b = appendMessage(b, 4, m.VarargElementType)
	}
	return appendMessages(b, 5, m.Annotations)
}

func (m *TypeParameter) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, m.ID)
	b = appendInt32(b, 2, m.Name)
	b = appendBool(b, 3, m.Reified)
	b = appendInt32(b, 4, int32(m.Variance))
	return appendMessages(b, 5, m.UpperBounds)
}

func (m *TypeConstructor) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, int32(m.Kind))
	return appendInt32(b, 2, m.ID)
}

func (m *TypeArgument) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, int32(m.Projection))
	if m.Type != nil {
		b = appendMessage(b, 2, m.Type)
	}
	return b
}

func (m *Type) appendTo(b []byte) []byte {
	if m.Constructor != nil {
		b = appendMessage(b, 1, m.Constructor)
	}
	b = appendMessages(b, 2, m.Arguments)
	return appendBool(b, 3, m.Nullable)
}

func (m *Annotation) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, m.ID)
	return appendMessages(b, 2, m.Arguments)
}

func (m *AnnotationArgument) appendTo(b []byte) []byte {
	b = appendInt32(b, 1, m.NameID)
	return appendString(b, 2, m.Value)
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// fieldFunc consumes the value of one field from b and reports how many
// bytes it used. Returning 0 skips the field.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func walk(msg string, b []byte, fn fieldFunc) error {
	off := 0
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return decodeErr(msg, off, protowire.ParseError(n))
		}
		b, off = b[n:], off+n

		m, err := fn(num, typ, b)
		if err != nil {
			return decodeErr(msg, off, err)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return decodeErr(msg, off, protowire.ParseError(m))
			}
		}
		b, off = b[m:], off+m
	}
	return nil
}

func varint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, errWireType
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

func int32Field(typ protowire.Type, b []byte, dst *int32) (int, error) {
	v, n, err := varint(typ, b)
	*dst = int32(v)
	return n, err
}

func boolField(typ protowire.Type, b []byte, dst *bool) (int, error) {
	v, n, err := varint(typ, b)
	*dst = protowire.DecodeBool(v)
	return n, err
}

func bytesField(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, errWireType
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return v, n, nil
}

// repeatedInt32 accepts both packed and unpacked encodings.
func repeatedInt32(typ protowire.Type, b []byte, dst *[]int32) (int, error) {
	if typ == protowire.VarintType {
		var v int32
		n, err := int32Field(typ, b, &v)
		if err == nil {
			*dst = append(*dst, v)
		}
		return n, err
	}
	packed, n, err := bytesField(typ, b)
	if err != nil {
		return 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return 0, protowire.ParseError(m)
		}
		*dst = append(*dst, int32(v))
		packed = packed[m:]
	}
	return n, nil
}

type unmarshaler interface {
	Unmarshal(b []byte) error
}

func messageField[M any, PM interface {
	*M
	unmarshaler
}](typ protowire.Type, b []byte, dst *PM) (int, error) {
	payload, n, err := bytesField(typ, b)
	if err != nil {
		return 0, err
	}
	m := PM(new(M))
	if err := m.Unmarshal(payload); err != nil {
		return 0, err
	}
	*dst = m
	return n, nil
}

func repeatedMessage[M any, PM interface {
	*M
	unmarshaler
}](typ protowire.Type, b []byte, dst *[]PM) (int, error) {
	var m PM
	n, err := messageField(typ, b, &m)
	if err != nil {
		return 0, err
	}
	*dst = append(*dst, m)
	return n, nil
}

// Unmarshal decodes a bundle.
func (m *Bundle) Unmarshal(b []byte) error {
	return walk("Bundle", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return repeatedMessage(typ, b, &m.Entries)
		}
		return 0, nil
	})
}

func (m *Entry) Unmarshal(b []byte) error {
	return walk("Entry", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1, 3:
			v, n, err := bytesField(typ, b)
			if err != nil {
				return 0, err
			}
			if num == 1 {
				m.FQName = string(v)
			} else {
				m.Names = append(m.Names, string(v))
			}
			return n, nil
		case 2:
			return int32Field(typ, b, (*int32)(&m.Kind))
		case 4:
			v, n, err := bytesField(typ, b)
			m.Payload = append([]byte(nil), v...)
			return n, err
		}
		return 0, nil
	})
}

// Unmarshal decodes a class.
func (m *Class) Unmarshal(b []byte) error {
	return walk("Class", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(typ, b, &m.Flags)
		case 2:
			return int32Field(typ, b, &m.FQName)
		case 3:
			return repeatedMessage(typ, b, &m.TypeParameters)
		case 4:
			return repeatedMessage(typ, b, &m.Supertypes)
		case 5:
			return repeatedMessage(typ, b, &m.Members)
		case 6:
			return repeatedInt32(typ, b, &m.NestedClassName)
		}
		return 0, nil
	})
}

// Unmarshal decodes a package.
func (m *Package) Unmarshal(b []byte) error {
	return walk("Package", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return repeatedMessage(typ, b, &m.Members)
		case 2:
			return repeatedInt32(typ, b, &m.ClassName)
		}
		return 0, nil
	})
}

// Unmarshal decodes a callable.
func (m *Callable) Unmarshal(b []byte) error {
	return walk("Callable", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(typ, b, &m.Flags)
		case 2:
			return int32Field(typ, b, &m.Name)
		case 3:
			return repeatedMessage(typ, b, &m.TypeParameters)
		case 4:
			return messageField(typ, b, &m.ReceiverType)
		case 5:
			return repeatedMessage(typ, b, &m.ValueParameters)
		case 6:
			return messageField(typ, b, &m.ReturnType)
		case 7:
			return repeatedMessage(typ, b, &m.Annotations)
		}
		return 0, nil
	})
}

func (m *ValueParameter) Unmarshal(b []byte) error {
	return walk("ValueParameter", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(typ, b, &m.Flags)
		case 2:
			return int32Field(typ, b, &m.Name)
		case 3:
			return messageField(typ, b, &m.Type)
		case 4:
			return messageField(typ, b, &m.VarargElementType)
		case 5:
			return repeatedMessage(typ, b, &m.Annotations)
		}
		return 0, nil
	})
}

func (m *TypeParameter) Unmarshal(b []byte) error {
	return walk("TypeParameter", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(typ, b, &m.ID)
		case 2:
			return int32Field(typ, b, &m.Name)
		case 3:
			return boolField(typ, b, &m.Reified)
		case 4:
			return int32Field(typ, b, (*int32)(&m.Variance))
		case 5:
			return repeatedMessage(typ, b, &m.UpperBounds)
		}
		return 0, nil
	})
}

func (m *TypeConstructor) Unmarshal(b []byte) error {
	return walk("Type.Constructor", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(typ, b, (*int32)(&m.Kind))
		case 2:
			return int32Field(typ, b, &m.ID)
		}
		return 0, nil
	})
}

func (m *TypeArgument) Unmarshal(b []byte) error {
	return walk("Type.Argument", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(typ, b, (*int32)(&m.Projection))
		case 2:
			return messageField(typ, b, &m.Type)
		}
		return 0, nil
	})
}

func (m *Type) Unmarshal(b []byte) error {
	return walk("Type", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return messageField(typ, b, &m.Constructor)
		case 2:
			return repeatedMessage(typ, b, &m.Arguments)
		case 3:
			return boolField(typ, b, &m.Nullable)
		}
		return 0, nil
	})
}

func (m *Annotation) Unmarshal(b []byte) error {
	return walk("Annotation", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(typ, b, &m.ID)
		case 2:
			return repeatedMessage(typ, b, &m.Arguments)
		}
		return 0, nil
	})
}

func (m *AnnotationArgument) Unmarshal(b []byte) error {
	return walk("Annotation.Argument", b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return int32Field(typ, b, &m.NameID)
		case 2:
			v, n, err := bytesField(typ, b)
			m.Value = string(v)
			return n, err
		}
		return 0, nil
	})
}
