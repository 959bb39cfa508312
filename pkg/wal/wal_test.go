package wal

import (
	"encoding/json"
	"path/filepath"
	"testing"
)

type record struct {
	Seq  int    `json:"seq"`
	Name string `json:"name"`
}

func TestWriteAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.wal")

	w, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i <= 3; i++ {
		if err := w.Write(record{Seq: i, Name: "r"}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	w, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	var got []record
	err = w.ReadAll(func(raw json.RawMessage) error {
		var r record
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	for i, r := range got {
		if r.Seq != i+1 {
			t.Errorf("record %d seq = %d", i, r.Seq)
		}
	}

	// 读完后继续追加
	if err := w.Write(record{Seq: 4}); err != nil {
		t.Fatal(err)
	}
}

func TestReadAllEmpty(t *testing.T) {
	w, err := Open(filepath.Join(t.TempDir(), "empty.wal"))
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	n := 0
	if err := w.ReadAll(func(json.RawMessage) error { n++; return nil }); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("read %d records from empty wal", n)
	}
}
