package binary

import (
	"errors"
	"testing"
)

func TestReaderReadByte(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	r := NewReader(data)

	for i, want := range data {
		if r.Position() != i {
			t.Errorf("position before read %d: got %d, want %d", i, r.Position(), i)
		}
		b, err := r.ReadByte()
		if err != nil {
			t.Fatalf("ReadByte %d: %v", i, err)
		}
		if b != want {
			t.Errorf("ReadByte %d: got 0x%02x, want 0x%02x", i, b, want)
		}
	}

	if _, err := r.ReadByte(); !errors.Is(err, ErrUnexpectedEnd) {
		t.Errorf("expected ErrUnexpectedEnd, got %v", err)
	}
}

func TestReaderReadBytes(t *testing.T) {
	r := NewReader([]byte{1, 2, 3, 4, 5})

	got, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("ReadBytes: got %v, want [1 2 3]", got)
	}
	if r.Len() != 2 {
		t.Errorf("Len: got %d, want 2", r.Len())
	}
	if _, err := r.ReadBytes(10); err == nil {
		t.Error("expected error for reading past the end")
	}
}

func TestReaderReadU32(t *testing.T) {
	tests := []struct {
		encoded []byte
		want    uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xFFFFFFFF},
	}

	for _, tt := range tests {
		got, err := NewReader(tt.encoded).ReadU32()
		if err != nil {
			t.Errorf("ReadU32(%v): %v", tt.encoded, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ReadU32(%v): got %d, want %d", tt.encoded, got, tt.want)
		}
	}
}

func TestReaderReadU32Overflow(t *testing.T) {
	_, err := NewReader([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01}).ReadU32()
	if !errors.Is(err, ErrOverflow) {
		t.Errorf("expected ErrOverflow, got %v", err)
	}
}

func TestReaderReadName(t *testing.T) {
	name, err := NewReader([]byte{0x02, 'h', 'i'}).ReadName()
	if err != nil || name != "hi" {
		t.Errorf("ReadName = %q, %v", name, err)
	}
	if _, err := NewReader([]byte{0x01, 0xff}).ReadName(); err == nil {
		t.Error("expected invalid UTF-8 error")
	}
}

func TestReaderReadU32LE(t *testing.T) {
	v, err := NewReader([]byte{0x00, 0x61, 0x73, 0x6d}).ReadU32LE()
	if err != nil || v != 0x6d736100 {
		t.Errorf("ReadU32LE = %#x, %v", v, err)
	}
}

func TestReaderRemaining(t *testing.T) {
	r := NewReader([]byte{1, 2, 3})
	_ = r.Skip(1)
	rest := r.Remaining()
	if len(rest) != 2 || r.Len() != 0 {
		t.Errorf("Remaining = %v, Len = %d", rest, r.Len())
	}
}

func TestParseError(t *testing.T) {
	r := NewReader(nil)
	err := r.WrapError("import section", ErrUnexpectedEnd)
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Section != "import section" {
		t.Fatalf("unexpected error %v", err)
	}
	if !errors.Is(err, ErrUnexpectedEnd) {
		t.Error("ParseError should unwrap to its cause")
	}
}
