package tracker

import (
	"errors"
	"sync"
	"testing"
)

func png(name string) ImageBlob {
	return ImageBlob{Name: name, MIMEType: "image/png", Data: []byte(name)}
}

func TestValidateEntry(t *testing.T) {
	tests := []struct {
		name  string
		entry Entry
		want  error
	}{
		{"valid", Entry{URL: "https://a.com", Screenshots: []ImageBlob{png("a")}}, nil},
		{"blank url", Entry{URL: "   ", Screenshots: []ImageBlob{png("a")}}, ErrEmptyURL},
		{"no screenshots", Entry{URL: "https://a.com"}, ErrNoScreenshots},
		{"not an image", Entry{URL: "https://a.com", Screenshots: []ImageBlob{
			png("a"), {Name: "notes.txt", MIMEType: "text/plain"},
		}}, ErrNotImage},
		{"uppercase mime", Entry{URL: "https://a.com", Screenshots: []ImageBlob{{MIMEType: "IMAGE/JPEG"}}}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEntry(tt.entry)
			if !errors.Is(err, tt.want) {
				t.Errorf("ValidateEntry() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFilterImages(t *testing.T) {
	in := []ImageBlob{png("a"), {Name: "b.pdf", MIMEType: "application/pdf"}, png("c")}
	kept, rejected := FilterImages(in)
	if rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}
	if len(kept) != 2 || kept[0].Name != "a" || kept[1].Name != "c" {
		t.Errorf("kept = %+v", kept)
	}
}

func TestStore_CRUD(t *testing.T) {
	s := NewStore()

	i, err := s.Add(Entry{URL: " https://a.com ", Screenshots: []ImageBlob{png("a")}})
	if err != nil || i != 0 {
		t.Fatalf("Add() = %d, %v", i, err)
	}
	if _, err := s.Add(Entry{URL: "https://b.com", Screenshots: []ImageBlob{png("b")}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(Entry{URL: "https://c.com", Screenshots: []ImageBlob{png("c")}}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(0)
	if err != nil {
		t.Fatal(err)
	}
	if got.URL != "https://a.com" {
		t.Errorf("URL not trimmed: %q", got.URL)
	}

	if err := s.Update(1, Entry{URL: "https://b2.com", Screenshots: []ImageBlob{png("b1"), png("b2")}}); err != nil {
		t.Fatal(err)
	}
	if err := s.Remove(0); err != nil {
		t.Fatal(err)
	}

	snap := s.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(snapshot) = %d, want 2", len(snap))
	}
	if snap[0].URL != "https://b2.com" || len(snap[0].Screenshots) != 2 {
		t.Errorf("snap[0] = %+v", snap[0])
	}
	if snap[1].URL != "https://c.com" {
		t.Errorf("snap[1] = %+v", snap[1])
	}
}

func TestStore_Errors(t *testing.T) {
	s := NewStore()
	if _, err := s.Add(Entry{URL: ""}); !errors.Is(err, ErrEmptyURL) {
		t.Errorf("Add empty url: %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("invalid entry was stored")
	}
	for _, i := range []int{-1, 0, 5} {
		if _, err := s.Get(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Get(%d) = %v", i, err)
		}
		if err := s.Remove(i); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Remove(%d) = %v", i, err)
		}
		if err := s.Update(i, Entry{URL: "x", Screenshots: []ImageBlob{png("x")}}); !errors.Is(err, ErrIndexOutOfRange) {
			t.Errorf("Update(%d) = %v", i, err)
		}
	}
}

func TestStore_SnapshotDoesNotAlias(t *testing.T) {
	s := NewStore()
	shots := []ImageBlob{png("a")}
	if _, err := s.Add(Entry{URL: "https://a.com", Screenshots: shots}); err != nil {
		t.Fatal(err)
	}
	// Mutating the caller's slice must not reach the store.
	shots[0] = png("mutated")

	snap := s.Snapshot()
	if snap[0].Screenshots[0].Name != "a" {
		t.Fatalf("store aliased caller slice: %+v", snap[0].Screenshots[0])
	}

	if err := s.Update(0, Entry{URL: "https://z.com", Screenshots: []ImageBlob{png("z")}}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(Entry{URL: "https://b.com", Screenshots: []ImageBlob{png("b")}}); err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 || snap[0].URL != "https://a.com" || snap[0].Screenshots[0].Name != "a" {
		t.Errorf("snapshot changed after store mutation: %+v", snap)
	}

	snap[0].Screenshots[0] = png("local")
	got, _ := s.Get(0)
	if got.Screenshots[0].Name != "z" {
		t.Errorf("snapshot mutation leaked into store: %+v", got)
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.Add(Entry{URL: "https://a.com", Screenshots: []ImageBlob{png("a")}})
		}()
		go func() {
			defer wg.Done()
			_ = s.Snapshot()
		}()
	}
	wg.Wait()
	if s.Len() != 20 {
		t.Errorf("Len() = %d, want 20", s.Len())
	}
}
