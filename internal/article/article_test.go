package article

import (
	"bytes"
	"encoding/binary"
	"testing"
)

type sliceSource []byte

func (s sliceSource) ReadAt(offset int64, size int) ([]byte, error) {
	return s[offset : offset+int64(size)], nil
}

func taggedField(t byte, payload string) []byte {
	var buf bytes.Buffer
	buf.WriteByte(t)
	buf.WriteString(payload)
	buf.WriteByte(0)
	return buf.Bytes()
}

func TestWordDataNoSameTypeSequence(t *testing.T) {
	t.Parallel()

	raw := append(taggedField('m', "hello"), taggedField('l', "world")...)
	src := sliceSource(raw)
	r := New(src, "")

	got, err := r.WordData(0, len(raw))
	if err != nil {
		t.Fatalf("WordData: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Errorf("WordData = %q, want %q", got, raw)
	}
}

func TestWordDataExpandSameTypeSequence(t *testing.T) {
	t.Parallel()

	var raw bytes.Buffer
	raw.WriteString("hello")
	raw.WriteByte(0)
	raw.WriteString("world") // last field: no NUL, no type tag

	src := sliceSource(raw.Bytes())
	r := New(src, "ml")

	got, err := r.WordData(0, raw.Len())
	if err != nil {
		t.Fatalf("WordData: %v", err)
	}

	want := append(taggedField('m', "hello"), taggedField('l', "world")...)
	if !bytes.Equal(got, want) {
		t.Errorf("WordData = %q, want %q", got, want)
	}
}

func TestWordDataExpandWithResourceField(t *testing.T) {
	t.Parallel()

	var raw bytes.Buffer
	raw.WriteString("hello")
	raw.WriteByte(0)
	payload := []byte{0xde, 0xad, 0xbe, 0xef}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	raw.Write(payload) // last field: no length prefix, no type tag

	src := sliceSource(raw.Bytes())
	r := New(src, "mW")

	got, err := r.WordData(0, raw.Len())
	if err != nil {
		t.Fatalf("WordData: %v", err)
	}

	var want bytes.Buffer
	want.Write(taggedField('m', "hello"))
	want.WriteByte('W')
	want.Write(lenBuf[:])
	want.Write(payload)

	if !bytes.Equal(got, want.Bytes()) {
		t.Errorf("WordData = %x, want %x", got, want.Bytes())
	}
}

func TestWordDataCache(t *testing.T) {
	t.Parallel()

	raw := taggedField('m', "cached")
	src := sliceSource(raw)
	r := New(src, "")

	first, err := r.WordData(0, len(raw))
	if err != nil {
		t.Fatalf("WordData: %v", err)
	}
	second, err := r.WordData(0, len(raw))
	if err != nil {
		t.Fatalf("WordData: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("cached WordData mismatch: %q vs %q", first, second)
	}
}

func TestFindDataTaggedForm(t *testing.T) {
	t.Parallel()

	raw := append(taggedField('m', "a brown fox"), taggedField('l', "jumps")...)
	src := sliceSource(raw)
	r := New(src, "")

	ok, err := r.FindData([][]byte{[]byte("brown"), []byte("jumps")}, 0, len(raw))
	if err != nil {
		t.Fatalf("FindData: %v", err)
	}
	if !ok {
		t.Error("FindData = false, want true")
	}

	ok, err = r.FindData([][]byte{[]byte("missing")}, 0, len(raw))
	if err != nil {
		t.Fatalf("FindData: %v", err)
	}
	if ok {
		t.Error("FindData = true, want false")
	}
}

func TestFindDataSameTypeSequenceSkipsNonText(t *testing.T) {
	t.Parallel()

	var raw bytes.Buffer
	raw.WriteString("quick fox")
	raw.WriteByte(0)
	payload := []byte("quick fox") // would match if wrongly scanned as text
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	raw.Write(lenBuf[:])
	raw.Write(payload)

	src := sliceSource(raw.Bytes())
	r := New(src, "mW")

	ok, err := r.FindData([][]byte{[]byte("quick")}, 0, raw.Len())
	if err != nil {
		t.Fatalf("FindData: %v", err)
	}
	if !ok {
		t.Error("FindData = false, want true (text field 'm' should match)")
	}
}

func TestContainFindData(t *testing.T) {
	t.Parallel()

	cases := []struct {
		seq  string
		want bool
	}{
		{"", true},
		{"m", true},
		{"mW", true},
		{"W", false},
		{"WP", false},
	}
	for _, c := range cases {
		if got := ContainFindData(c.seq); got != c.want {
			t.Errorf("ContainFindData(%q) = %v, want %v", c.seq, got, c.want)
		}
	}
}
