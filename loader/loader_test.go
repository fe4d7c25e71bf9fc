package loader

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dhamidi/classgen/errkind"
	"github.com/dhamidi/classgen/synth"
)

func classBytes(t *testing.T, name string) []byte {
	t.Helper()
	c, err := synth.NewClass(name)
	if err != nil {
		t.Fatalf("NewClass(%q) error = %v", name, err)
	}
	data, err := c.Bytes()
	if err != nil {
		t.Fatalf("Bytes() error = %v", err)
	}
	return data
}

func TestWriteThenFind(t *testing.T) {
	l := New()
	domain := &Domain{CodeSource: "memory:"}

	w, err := l.WriteClass("com.example.Foo", domain)
	if err != nil {
		t.Fatalf("WriteClass() error = %v", err)
	}
	if _, err := w.Write(classBytes(t, "com.example.Foo")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if _, err := l.FindClass("com.example.Foo"); !errors.Is(err, ErrClassNotFound) {
		t.Fatalf("FindClass() before Close error = %v, want %v", err, ErrClassNotFound)
	}
	if got := l.Names(); len(got) != 0 {
		t.Errorf("Names() before Close = %q, want none", got)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := w.Write([]byte{0}); !errors.Is(err, ErrClosed) {
		t.Errorf("Write() after Close error = %v, want %v", err, ErrClosed)
	}

	c, err := l.FindClass("com.example.Foo")
	if err != nil {
		t.Fatalf("FindClass() error = %v", err)
	}
	if c.Domain != domain {
		t.Errorf("Domain = %v, want %v", c.Domain, domain)
	}
	if got := c.File.SuperClassName(); got != "java/lang/Object" {
		t.Errorf("SuperClassName() = %q, want %q", got, "java/lang/Object")
	}

	again, err := l.FindClass("com.example.Foo")
	if err != nil {
		t.Fatalf("second FindClass() error = %v", err)
	}
	if again != c {
		t.Errorf("second FindClass() returned a new class, want the cached one")
	}
}

func TestWriteClassErrors(t *testing.T) {
	l := New()
	if _, err := l.WriteClass("", nil); !errors.Is(err, errkind.Invalid) {
		t.Errorf("WriteClass(\"\") error = %v, want kind %v", err, errkind.Invalid)
	}

	if _, err := l.WriteClass("a.B", nil); err != nil {
		t.Fatalf("WriteClass() error = %v", err)
	}
	_, err := l.WriteClass("a.B", nil)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Errorf("second WriteClass() error = %v, want %v", err, ErrAlreadyRegistered)
	}
	if !errors.Is(err, errkind.Duplicate) {
		t.Errorf("second WriteClass() error = %v, want kind %v", err, errkind.Duplicate)
	}
}

func TestFindClassErrors(t *testing.T) {
	l := New()

	if _, err := l.FindClass("missing.Class"); !errors.Is(err, ErrClassNotFound) {
		t.Errorf("FindClass(missing) error = %v, want %v", err, ErrClassNotFound)
	}

	if _, err := l.Define("com.example.Bar", classBytes(t, "com.example.Foo"), nil); !errors.Is(err, ErrNameMismatch) {
		t.Errorf("Define() with wrong name error = %v, want %v", err, ErrNameMismatch)
	}

	if _, err := l.Define("com.example.Junk", []byte{1, 2, 3}, nil); !errors.Is(err, errkind.Invalid) {
		t.Errorf("Define() with junk error = %v, want kind %v", err, errkind.Invalid)
	}
}

func TestParent(t *testing.T) {
	parent := New()
	if _, err := parent.Define("p.Base", classBytes(t, "p.Base"), nil); err != nil {
		t.Fatalf("Define() error = %v", err)
	}
	child := New(WithParent(parent), WithCacheSize(4))

	c, err := child.FindClass("p.Base")
	if err != nil {
		t.Fatalf("FindClass() through parent error = %v", err)
	}
	if c.Name != "p.Base" {
		t.Errorf("Name = %q, want %q", c.Name, "p.Base")
	}
	if got := child.Names(); len(got) != 0 {
		t.Errorf("child Names() = %q, want none", got)
	}
}

func TestFailedDefineReleasesName(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"declared name differs", classBytes(t, "com.example.Other"), ErrNameMismatch},
		{"not a class file", []byte{1, 2, 3}, errkind.Invalid},
		{"nothing written", nil, errkind.Invalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New()
			if _, err := l.Define("com.example.Foo", tt.data, nil); !errors.Is(err, tt.want) {
				t.Fatalf("Define() error = %v, want %v", err, tt.want)
			}
			if got := l.Names(); len(got) != 0 {
				t.Errorf("Names() after failed Define = %q, want none", got)
			}
			if _, err := l.FindClass("com.example.Foo"); !errors.Is(err, ErrClassNotFound) {
				t.Errorf("FindClass() after failed Define error = %v, want %v", err, ErrClassNotFound)
			}
			if _, err := l.Define("com.example.Foo", classBytes(t, "com.example.Foo"), nil); err != nil {
				t.Errorf("Define() after release error = %v", err)
			}
		})
	}
}

func TestConcurrentRegistration(t *testing.T) {
	const workers = 16
	l := New()

	data := make([][]byte, workers)
	for i := range data {
		data[i] = classBytes(t, fmt.Sprintf("own.C%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := l.WriteClass("shared.Name", nil); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
			name := fmt.Sprintf("own.C%d", i)
			w, err := l.WriteClass(name, nil)
			if err != nil {
				t.Errorf("WriteClass(%q) error = %v", name, err)
				return
			}
			w.Write(data[i])
			if err := w.Close(); err != nil {
				t.Errorf("Close(%q) error = %v", name, err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("shared name registered %d times, want 1", wins)
	}
	if got := len(l.Names()); got != workers {
		t.Errorf("len(Names()) = %d, want %d", got, workers)
	}
}
