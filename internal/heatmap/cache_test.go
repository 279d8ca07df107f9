package heatmap

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		species  string
		date     string
		want     string
	}{
		{"two-part name", "Turdus migratorius", "2023-01-15", "Turdus_migratorius_2023-01-15.png"},
		{"single word", "Cardinalis", "2024-12-01", "Cardinalis_2024-12-01.png"},
		{"surrounding whitespace trimmed", " Cyanocitta cristata ", "2023-06-30", "Cyanocitta_cristata_2023-06-30.png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			date, err := time.Parse("2006-01-02", tt.date)
			if err != nil {
				t.Fatal(err)
			}
			if got := Filename(tt.species, date); got != tt.want {
				t.Errorf("Filename(%q, %s) = %q, want %q", tt.species, tt.date, got, tt.want)
			}
		})
	}
}

func TestFilename_Deterministic(t *testing.T) {
	date := time.Date(2023, 1, 15, 0, 0, 0, 0, time.UTC)
	a := Filename("Turdus migratorius", date)
	b := Filename("Turdus migratorius", date)
	if a != b {
		t.Errorf("filenames differ: %q vs %q", a, b)
	}
}

func TestDirStore_RoundTrip(t *testing.T) {
	store, err := NewDirStore(t.TempDir(), "/static/")
	if err != nil {
		t.Fatal(err)
	}

	key := "Turdus_migratorius_2023-01-15.png"
	if store.Exists(key) {
		t.Fatal("key should not exist before write")
	}

	data := []byte("png-bytes")
	if err := store.Write(key, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !store.Exists(key) {
		t.Fatal("key should exist after write")
	}

	got, err := store.Read(key)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Read = %q, want %q", got, data)
	}

	if got := store.URL(key); got != "/static/"+key {
		t.Errorf("URL = %q, want %q", got, "/static/"+key)
	}

	if err := store.Invalidate(key); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if store.Exists(key) {
		t.Error("key should not exist after invalidate")
	}

	// Invalidating a missing key is not an error.
	if err := store.Invalidate(key); err != nil {
		t.Errorf("Invalidate of missing key: %v", err)
	}
}

func TestDirStore_EmptyFileIsNotAHit(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDirStore(dir, "/static")
	if err != nil {
		t.Fatal(err)
	}

	key := "truncated.png"
	if err := os.WriteFile(filepath.Join(dir, key), nil, 0644); err != nil {
		t.Fatal(err)
	}
	if store.Exists(key) {
		t.Error("zero-byte file must not count as a cached asset")
	}
}
