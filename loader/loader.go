// Package loader is an in-process stand-in for a JVM class loader. Classes
// are written into it by name, parsed with the classfile reader when the
// writer closes, and later looked up the way a direct class loader would
// define them.
package loader

import (
	"bytes"
	"io"
	"sort"

	"github.com/dhamidi/classgen/classfile"
	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/typeref"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("classgen.loader")

var (
	ErrAlreadyRegistered = errkind.New(errkind.Duplicate, "class already registered")
	ErrClassNotFound     = errkind.New(errkind.Resolution, "class not found")
	ErrEmptyName         = errkind.New(errkind.Invalid, "empty class name")
	ErrNameMismatch      = errkind.New(errkind.Invalid, "class file declares a different name")
	ErrClosed            = errkind.New(errkind.State, "class writer already closed")
)

// DefaultCacheSize is the number of looked-up classes a Loader caches.
const DefaultCacheSize = 256

// Domain is attached to a class when it is written and handed back with
// the defined class. The loader never interprets it.
type Domain struct {
	CodeSource string
}

// Class is a class defined by a Loader.
type Class struct {
	Name   string
	Domain *Domain
	File   *classfile.ClassFile
	Bytes  []byte
}

// Finder looks classes up by dotted name.
type Finder interface {
	FindClass(name string) (*Class, error)
}

type entry struct {
	domain *Domain
	class  *Class
	closed bool
}

// Loader holds classfiles written by name. The zero value is not usable;
// use New.
type Loader struct {
	parent Finder

	mu      deadlock.Mutex
	entries map[string]*entry

	defined *lru.Cache
}

type Option func(*Loader)

// WithParent delegates lookups of unknown names to parent.
func WithParent(parent Finder) Option {
	return func(l *Loader) { l.parent = parent }
}

// WithCacheSize sets how many parsed classes are kept.
func WithCacheSize(n int) Option {
	return func(l *Loader) {
		if cache, err := lru.New(n); err == nil {
			l.defined = cache
		}
	}
}

func New(opts ...Option) *Loader {
	defined, _ := lru.New(DefaultCacheSize)
	l := &Loader{
		entries: make(map[string]*entry),
		defined: defined,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// WriteClass reserves name and returns a writer for its classfile. The
// class becomes visible to FindClass when the writer is closed. A name can
// only be committed once.
func (l *Loader) WriteClass(name string, domain *Domain) (io.WriteCloser, error) {
	if name == "" {
		return nil, errors.WithStack(ErrEmptyName)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[name]; ok {
		return nil, errors.Wrapf(ErrAlreadyRegistered, "%s", name)
	}
	e := &entry{domain: domain}
	l.entries[name] = e
	log.Debugf("registered %s", name)
	return &classWriter{loader: l, name: name, entry: e}, nil
}

// Define writes data as the classfile of name in one step.
func (l *Loader) Define(name string, data []byte, domain *Domain) (*Class, error) {
	w, err := l.WriteClass(name, domain)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return l.FindClass(name)
}

// FindClass returns the class committed under name. Names that were never
// written, or whose writer is still open, are looked up in the parent.
// Results, including those found by the parent, are cached.
func (l *Loader) FindClass(name string) (*Class, error) {
	if cached, ok := l.defined.Get(name); ok {
		return cached.(*Class), nil
	}

	l.mu.Lock()
	var class *Class
	if e := l.entries[name]; e != nil && e.closed {
		class = e.class
	}
	l.mu.Unlock()

	if class == nil {
		if l.parent == nil {
			return nil, errors.Wrapf(ErrClassNotFound, "%s", name)
		}
		var err error
		if class, err = l.parent.FindClass(name); err != nil {
			return nil, err
		}
	}
	l.defined.Add(name, class)
	return class, nil
}

func define(name string, data []byte, domain *Domain) (*Class, error) {
	cf, err := classfile.ParseBytes(data)
	if err != nil {
		return nil, errors.Wrapf(err, "defining %s", name)
	}
	declared, err := typeref.ClassFromInternalName(cf.ClassName())
	if err != nil {
		return nil, errors.Wrapf(err, "defining %s", name)
	}
	if declared.Name() != name {
		return nil, errors.Wrapf(ErrNameMismatch, "%s declares %s", name, declared.Name())
	}
	return &Class{Name: name, Domain: domain, File: cf, Bytes: data}, nil
}

// Names lists the committed classes in sorted order.
func (l *Loader) Names() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var names []string
	for name, e := range l.entries {
		if e.closed {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type classWriter struct {
	loader *Loader
	name   string
	entry  *entry
	buf    bytes.Buffer
	closed bool
}

func (w *classWriter) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.Wrapf(ErrClosed, "%s", w.name)
	}
	return w.buf.Write(p)
}

// Close parses the written bytes and commits the class. If they do not
// parse, or declare another class, the name is released and can be
// written again. Closing twice is a no-op.
func (w *classWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	class, err := define(w.name, w.buf.Bytes(), w.entry.domain)

	l := w.loader
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		delete(l.entries, w.name)
		log.Debugf("released %s: %v", w.name, err)
		return err
	}
	w.entry.class = class
	w.entry.closed = true
	log.Debugf("committed %s (%d bytes)", w.name, w.buf.Len())
	return nil
}
