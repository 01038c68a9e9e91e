package dictset

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeFixtureDict creates a minimal one-entry dictionary named word under
// dir/name.{ifo,idx,dict} and returns its .ifo path.
func writeFixtureDict(t *testing.T, dir, name, word, body string) string {
	t.Helper()

	dictBody := []byte(body)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".dict"), dictBody, 0o644))

	var idx bytes.Buffer
	idx.WriteString(word)
	idx.WriteByte(0)
	var off [4]byte
	binary.BigEndian.PutUint32(off[:], 0)
	idx.Write(off[:])
	var size [4]byte
	binary.BigEndian.PutUint32(size[:], uint32(len(dictBody)))
	idx.Write(size[:])
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".idx"), idx.Bytes(), 0o644))

	ifoDoc := "StarDict's dict ifo file\n" +
		"version=2.4.2\n" +
		"bookname=" + name + "\n" +
		"wordcount=1\n" +
		"idxfilesize=" + itoa(idx.Len()) + "\n" +
		"sametypesequence=m\n"
	ifoPath := filepath.Join(dir, name+".ifo")
	require.NoError(t, os.WriteFile(ifoPath, []byte(ifoDoc), 0o644))
	return ifoPath
}

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

func TestLoadDiscoversDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixtureDict(t, dir, "apple", "apple", "a fruit")
	writeFixtureDict(t, dir, "banana", "banana", "another fruit")

	s := New(nil)
	require.NoError(t, s.Load(Sources{Directories: []string{dir}}))
	require.Equal(t, 2, s.Len())
}

func TestLoadDisableList(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	applePath := writeFixtureDict(t, dir, "apple", "apple", "a fruit")
	writeFixtureDict(t, dir, "banana", "banana", "another fruit")

	s := New(nil)
	require.NoError(t, s.Load(Sources{Directories: []string{dir}, Disable: []string{applePath}}))
	require.Equal(t, 1, s.Len())
	require.Equal(t, "banana", s.Dicts()[0].Name())
}

func TestReloadPreservesIdentity(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixtureDict(t, dir, "apple", "apple", "a fruit")
	bananaPath := writeFixtureDict(t, dir, "banana", "banana", "another fruit")

	s := New(nil)
	require.NoError(t, s.Load(Sources{Directories: []string{dir}}))

	var appleBefore interface{}
	for _, d := range s.Dicts() {
		if d.Name() == "apple" {
			appleBefore = d
		}
	}
	require.NotNil(t, appleBefore, "apple not loaded")

	require.NoError(t, os.Remove(bananaPath))
	require.NoError(t, os.Remove(dir+"/banana.idx"))
	require.NoError(t, os.Remove(dir+"/banana.dict"))

	require.NoError(t, s.Reload(Sources{Directories: []string{dir}}))
	require.Equal(t, 1, s.Len())

	var appleAfter interface{}
	for _, d := range s.Dicts() {
		if d.Name() == "apple" {
			appleAfter = d
		}
	}
	require.Same(t, appleBefore, appleAfter, "apple instance identity changed across reload")
}

func TestEnumerationTotality(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFixtureDict(t, dir, "apple", "apple", "a")
	writeFixtureDict(t, dir, "banana", "banana", "b")
	writeFixtureDict(t, dir, "cherry", "cherry", "c")

	s := New(nil)
	require.NoError(t, s.Load(Sources{Directories: []string{dir}}))

	cur := s.NewCursor()
	var got []string
	for {
		word, ok, err := s.NextWord(nil, cur)
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, word)
	}

	require.Equal(t, []string{"apple", "banana", "cherry"}, got)
}
