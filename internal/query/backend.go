package query

import (
	"errors"
	"fmt"

	"github.com/ianlewis/go-stardict/internal/dict"
	"github.com/ianlewis/go-stardict/internal/dictset"
	"github.com/ianlewis/go-stardict/internal/ifo"
	"github.com/ianlewis/go-stardict/internal/render"
)

// ErrUnknownDictionary is returned by a [Backend] method given a
// dictionary name that isn't currently loaded.
var ErrUnknownDictionary = errors.New("query: unknown dictionary")

// ErrNotFound is returned by Translate when the headword has no match,
// even after the similar-word cascade.
var ErrNotFound = errors.New("query: not found")

// DictInfo is the metadata a [Backend] exposes for one loaded dictionary.
type DictInfo struct {
	Name        string
	WordCount   int
	Author      string
	Email       string
	Website     string
	Date        string
	Description string
}

// Backend is the minimum surface spec §6 describes for alternative,
// non-StarDict dictionary sources to implement: name/availability,
// the loaded-set accessor, translatability, translation, similar-word
// search, and metadata. [Engine] implements it over a StarDict
// [dictset.Set].
type Backend interface {
	Name() string
	Available() bool
	Loaded() []string
	SetLoaded(paths []string) error
	IsTranslatable(dictName, word string) (bool, error)
	Translate(dictName, word string) (Translation, error)
	FindSimilar(dictName, word string) ([]string, error)
	Info(dictName string) (DictInfo, error)
}

// Engine is the StarDict [Backend] implementation: a thin adapter over a
// [dictset.Set] that resolves dictionary names to instances.
type Engine struct {
	set *dictset.Set
}

// NewEngine returns a Backend backed by set.
func NewEngine(set *dictset.Set) *Engine {
	return &Engine{set: set}
}

// Name identifies this backend.
func (e *Engine) Name() string { return "stardict" }

// Available reports whether any dictionary is currently loaded.
func (e *Engine) Available() bool { return e.set.Len() > 0 }

// Loaded returns the .ifo paths of every currently loaded dictionary.
func (e *Engine) Loaded() []string {
	var out []string
	for _, d := range e.set.Dicts() {
		out = append(out, d.IfoPath())
	}
	return out
}

// SetLoaded reloads the set so that exactly paths are loaded, in order,
// reusing already-loaded instances by identity.
func (e *Engine) SetLoaded(paths []string) error {
	return e.set.Reload(dictset.Sources{Order: paths})
}

func (e *Engine) findDict(name string) *dict.Dict {
	for _, d := range e.set.Dicts() {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// IsTranslatable reports whether word resolves to an entry in dictName,
// honoring the similar-word cascade.
func (e *Engine) IsTranslatable(dictName, word string) (bool, error) {
	d := e.findDict(dictName)
	if d == nil {
		return false, fmt.Errorf("%w: %s", ErrUnknownDictionary, dictName)
	}
	_, _, ok, err := SimpleLookup(d, word)
	return ok, err
}

// Translate resolves word in dictName and returns its rendered article.
func (e *Engine) Translate(dictName, word string) (Translation, error) {
	d := e.findDict(dictName)
	if d == nil {
		return Translation{}, fmt.Errorf("%w: %s", ErrUnknownDictionary, dictName)
	}

	pos, matched, ok, err := SimpleLookup(d, word)
	if err != nil {
		return Translation{}, err
	}
	if !ok {
		return Translation{}, fmt.Errorf("%w: %s", ErrNotFound, word)
	}

	data, err := d.Data(pos)
	if err != nil {
		return Translation{}, err
	}
	html, err := render.Render(d, data)
	if err != nil {
		return Translation{}, err
	}

	return Translation{Title: matched, DictionaryName: d.Name(), Translation: html}, nil
}

// FindSimilar returns the similar-word cascade's hits for word in
// dictName, without rendering their articles.
func (e *Engine) FindSimilar(dictName, word string) ([]string, error) {
	d := e.findDict(dictName)
	if d == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDictionary, dictName)
	}

	var out []string
	for _, candidate := range similarCandidates(word) {
		found, _, err := d.Lookup([]byte(candidate))
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// Info returns dictName's full .ifo metadata.
func (e *Engine) Info(dictName string) (DictInfo, error) {
	d := e.findDict(dictName)
	if d == nil {
		return DictInfo{}, fmt.Errorf("%w: %s", ErrUnknownDictionary, dictName)
	}
	m := d.Info()
	return dictInfoFromMetadata(m), nil
}

func dictInfoFromMetadata(m ifo.Metadata) DictInfo {
	return DictInfo{
		Name:        m.Bookname,
		WordCount:   m.WordCount,
		Author:      m.Author,
		Email:       m.Email,
		Website:     m.Website,
		Date:        m.Date,
		Description: m.Description,
	}
}
