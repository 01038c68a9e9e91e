package query

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ianlewis/go-stardict/internal/dict"
	"github.com/ianlewis/go-stardict/internal/dictset"
)

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// writeFixtureDict creates a one-or-more-entry dictionary under dir with
// the given sorted (headword, body) entries, each body tagged 'm'.
func writeFixtureDict(t *testing.T, dir, name string, entries [][2]string) string {
	t.Helper()

	var dictBuf bytes.Buffer
	var idxBuf bytes.Buffer
	for _, e := range entries {
		word, body := e[0], e[1]
		offset := dictBuf.Len()
		dictBuf.WriteString(body)

		idxBuf.WriteString(word)
		idxBuf.WriteByte(0)
		var off [4]byte
		binary.BigEndian.PutUint32(off[:], uint32(offset))
		idxBuf.Write(off[:])
		var size [4]byte
		binary.BigEndian.PutUint32(size[:], uint32(len(body)))
		idxBuf.Write(size[:])
	}

	if err := os.WriteFile(filepath.Join(dir, name+".dict"), dictBuf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile .dict: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name+".idx"), idxBuf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile .idx: %v", err)
	}

	ifoDoc := "StarDict's dict ifo file\n" +
		"version=2.4.2\n" +
		"bookname=" + name + "\n" +
		"wordcount=" + itoa(len(entries)) + "\n" +
		"idxfilesize=" + itoa(idxBuf.Len()) + "\n" +
		"sametypesequence=m\n"
	ifoPath := filepath.Join(dir, name+".ifo")
	if err := os.WriteFile(ifoPath, []byte(ifoDoc), 0o644); err != nil {
		t.Fatalf("WriteFile .ifo: %v", err)
	}
	return ifoPath
}

func loadOneDict(t *testing.T, entries [][2]string) *dict.Dict {
	t.Helper()
	dir := t.TempDir()
	ifoPath := writeFixtureDict(t, dir, "d", entries)
	d, err := dict.Load(ifoPath)
	if err != nil {
		t.Fatalf("dict.Load: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestSimpleLookupDirectHit(t *testing.T) {
	t.Parallel()

	d := loadOneDict(t, [][2]string{{"hello", "greeting"}})

	_, matched, ok, err := SimpleLookup(d, "hello")
	if err != nil {
		t.Fatalf("SimpleLookup: %v", err)
	}
	if !ok || matched != "hello" {
		t.Errorf("SimpleLookup = (%q, %v), want (hello, true)", matched, ok)
	}
}

func TestSimpleLookupCaseFallback(t *testing.T) {
	t.Parallel()

	d := loadOneDict(t, [][2]string{{"hello", "greeting"}})

	_, matched, ok, err := SimpleLookup(d, "HELLO")
	if err != nil {
		t.Fatalf("SimpleLookup: %v", err)
	}
	if !ok {
		t.Fatal("SimpleLookup(HELLO) = false, want true (case-variant cascade)")
	}
	if matched != "hello" && matched != "HELLO" {
		t.Errorf("SimpleLookup(HELLO) matched %q", matched)
	}
}

func TestSimpleLookupSuffixFallback(t *testing.T) {
	t.Parallel()

	d := loadOneDict(t, [][2]string{{"running", "in motion"}})

	_, _, ok, err := SimpleLookup(d, "ran")
	if err != nil {
		t.Fatalf("SimpleLookup: %v", err)
	}
	if ok {
		t.Error("SimpleLookup(ran) = true, want false (NotFound)")
	}

	_, matched, ok, err := SimpleLookup(d, "runs")
	if err != nil {
		t.Fatalf("SimpleLookup: %v", err)
	}
	if !ok || matched != "running" {
		t.Errorf("SimpleLookup(runs) = (%q, %v), want (running, true)", matched, ok)
	}
}

func TestFuzzyLookup(t *testing.T) {
	t.Parallel()

	// Entries in ascending stardict-collation order, per the index's
	// monotonicity invariant. "caat" is edit distance 1 from "cart"
	// (only the 3rd letter differs) and from "cat" (one deletion), and
	// distance 2 from "car" and "card"; with k=3 the tie at distance 2 is
	// broken in "car"'s favor since it sorts before "card".
	d := loadOneDict(t, [][2]string{
		{"car", "vehicle"},
		{"card", "paper"},
		{"cart", "wagon"},
		{"cat", "animal"},
	})

	got, err := FuzzyLookup(d, "caat", 3, nil)
	if err != nil {
		t.Fatalf("FuzzyLookup: %v", err)
	}

	want := []FuzzyMatch{
		{Headword: "cart", Distance: 1},
		{Headword: "cat", Distance: 1},
		{Headword: "car", Distance: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FuzzyLookup mismatch (-want +got):\n%s", diff)
	}
}

func TestFuzzyLookupProgressCancel(t *testing.T) {
	t.Parallel()

	d := loadOneDict(t, [][2]string{{"cat", "animal"}})

	var visited []string
	got, err := FuzzyLookup(d, "caat", 3, func(name string) bool {
		visited = append(visited, name)
		return true
	})
	if err != nil {
		t.Fatalf("FuzzyLookup: %v", err)
	}
	if got != nil {
		t.Errorf("FuzzyLookup with canceling progress = %v, want nil", got)
	}
	if diff := cmp.Diff([]string{"d"}, visited); diff != "" {
		t.Errorf("visited dictionaries mismatch (-want +got):\n%s", diff)
	}
}

func TestPatternLookup(t *testing.T) {
	t.Parallel()

	d := loadOneDict(t, [][2]string{
		{"apple", "a"}, {"apply", "b"}, {"apricot", "c"}, {"banana", "d"},
	})

	set := dictset.New(nil)
	// Exercise the real load path so PatternLookup runs over the set's
	// dictionary snapshot rather than a single dict.
	dir := filepath.Dir(d.IfoPath())
	if err := set.Load(dictset.Sources{Directories: []string{dir}}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	got, err := PatternLookup(set, "ap*")
	if err != nil {
		t.Fatalf("PatternLookup: %v", err)
	}
	want := []string{"apple", "apply", "apricot"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("PatternLookup mismatch (-want +got):\n%s", diff)
	}
}

func TestDataLookup(t *testing.T) {
	t.Parallel()

	d := loadOneDict(t, [][2]string{
		{"x", "a foo and a bar"},
	})
	set := dictset.New(nil)
	dir := filepath.Dir(d.IfoPath())
	if err := set.Load(dictset.Sources{Directories: []string{dir}}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	_, q := Classify("|foo bar")
	got, err := DataLookup(set, q, nil)
	if err != nil {
		t.Fatalf("DataLookup: %v", err)
	}
	if len(got) != 1 || got[0].Headword != "x" {
		t.Errorf("DataLookup(|foo bar) = %v, want one match for x", got)
	}

	_, q = Classify("|foo baz")
	got, err = DataLookup(set, q, nil)
	if err != nil {
		t.Fatalf("DataLookup: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("DataLookup(|foo baz) = %v, want empty", got)
	}
}

func TestDataLookupProgressCancel(t *testing.T) {
	t.Parallel()

	d := loadOneDict(t, [][2]string{{"x", "a foo and a bar"}})
	set := dictset.New(nil)
	dir := filepath.Dir(d.IfoPath())
	if err := set.Load(dictset.Sources{Directories: []string{dir}}); err != nil {
		t.Fatalf("Load: %v", err)
	}

	var visited []string
	got, err := DataLookup(set, "|foo bar", func(name string) bool {
		visited = append(visited, name)
		return true
	})
	if err != nil {
		t.Fatalf("DataLookup: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("DataLookup with canceling progress = %v, want empty", got)
	}
	if diff := cmp.Diff([]string{"d"}, visited); diff != "" {
		t.Errorf("visited dictionaries mismatch (-want +got):\n%s", diff)
	}
}

func TestTokenize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want []string
	}{
		{"foo bar", []string{"foo", "bar"}},
		{`foo\ bar`, []string{"foo bar"}},
		{`a\tb`, []string{"a\tb"}},
		{"", nil},
	}
	for _, c := range cases {
		got := Tokenize(c.in)
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", c.in, diff)
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in       string
		wantKind Kind
		wantStr  string
	}{
		{"/foo", KindFuzzy, "foo"},
		{"|foo bar", KindData, "foo bar"},
		{"foo*", KindGlob, "foo*"},
		{"foo", KindSimple, "foo"},
	}
	for _, c := range cases {
		kind, s := Classify(c.in)
		if kind != c.wantKind || s != c.wantStr {
			t.Errorf("Classify(%q) = (%v, %q), want (%v, %q)", c.in, kind, s, c.wantKind, c.wantStr)
		}
	}
}
