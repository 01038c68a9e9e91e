package dict

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeFixture creates a minimal single-entry StarDict dictionary (.ifo,
// .idx, .dict) under dir and returns the .ifo path.
func writeFixture(t *testing.T, dir string, sameTypeSequence string, body string) string {
	t.Helper()

	dictBody := []byte(body)
	if err := os.WriteFile(filepath.Join(dir, "test.dict"), dictBody, 0o644); err != nil {
		t.Fatalf("WriteFile .dict: %v", err)
	}

	var idx bytes.Buffer
	idx.WriteString("hello")
	idx.WriteByte(0)
	var off [4]byte
	binary.BigEndian.PutUint32(off[:], 0)
	idx.Write(off[:])
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(dictBody)))
	idx.Write(size[:])
	if err := os.WriteFile(filepath.Join(dir, "test.idx"), idx.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile .idx: %v", err)
	}

	ifoDoc := "StarDict's dict ifo file\n" +
		"version=2.4.2\n" +
		"bookname=Test\n" +
		"wordcount=1\n" +
		"idxfilesize=" + itoa(idx.Len()) + "\n"
	if sameTypeSequence != "" {
		ifoDoc += "sametypesequence=" + sameTypeSequence + "\n"
	}

	ifoPath := filepath.Join(dir, "test.ifo")
	if err := os.WriteFile(ifoPath, []byte(ifoDoc), 0o644); err != nil {
		t.Fatalf("WriteFile .ifo: %v", err)
	}
	return ifoPath
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func TestLoadAndLookup(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ifoPath := writeFixture(t, dir, "m", "greeting")

	d, err := Load(ifoPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer d.Close()

	if d.ArticleCount() != 1 {
		t.Errorf("ArticleCount = %d, want 1", d.ArticleCount())
	}
	if d.Name() != "Test" {
		t.Errorf("Name = %q, want %q", d.Name(), "Test")
	}
	if d.IfoPath() != ifoPath {
		t.Errorf("IfoPath = %q, want %q", d.IfoPath(), ifoPath)
	}

	found, pos, err := d.Lookup([]byte("hello"))
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !found || pos != 0 {
		t.Fatalf("Lookup(hello) = (%v, %d), want (true, 0)", found, pos)
	}

	key, err := d.Key(0)
	if err != nil {
		t.Fatalf("Key: %v", err)
	}
	if string(key) != "hello" {
		t.Errorf("Key(0) = %q, want %q", key, "hello")
	}

	data, err := d.Data(0)
	if err != nil {
		t.Fatalf("Data: %v", err)
	}
	want := "m" + "greeting" + "\x00"
	if string(data) != want {
		t.Errorf("Data(0) = %q, want %q", data, want)
	}
}

func TestLoadZeroWordCount(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ifoPath := filepath.Join(dir, "empty.ifo")
	doc := "StarDict's dict ifo file\nversion=2.4.2\nbookname=Empty\nwordcount=0\nidxfilesize=0\n"
	if err := os.WriteFile(ifoPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := Load(ifoPath); err == nil {
		t.Fatal("Load: got nil error, want ErrLoadFailed for wordcount=0")
	}
}

func TestFindData(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	ifoPath := writeFixture(t, dir, "m", "a quick brown fox")

	d, err := Load(ifoPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer d.Close()

	if !d.ContainFindData() {
		t.Fatal("ContainFindData = false, want true")
	}

	found, err := d.FindData([][]byte{[]byte("quick"), []byte("fox")}, 0, uint32(len("a quick brown fox")))
	if err != nil {
		t.Fatalf("FindData: %v", err)
	}
	if !found {
		t.Error("FindData = false, want true")
	}
}
