package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fadden/ciderpress-sub006/archive"
	"github.com/fadden/ciderpress-sub006/codec"
	"github.com/fadden/ciderpress-sub006/datax"
	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/record"
	"github.com/fadden/ciderpress-sub006/thread"
)

func buildTestArchive(t *testing.T, path string, name string, data []byte) {
	t.Helper()
	a, err := archive.Create(path, filepath.Join(filepath.Dir(path), "tmp-*"), nufx.DefaultConfig(), nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	recIdx, err := a.AddRecord(name, record.FSProDOS)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.AddThread(recIdx, thread.IDDataFork, codec.FormatUncompressed, datax.NewBufferSource(data, nil)); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunListsRecords(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.shk")
	buildTestArchive(t, path, "FOO.TXT", []byte("hello"))

	var out, errOut bytes.Buffer
	code := run([]string{path}, &out, &errOut)
	if code != 0 {
		t.Fatalf("run() exit = %d, stderr = %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "FOO.TXT") {
		t.Fatalf("stdout = %q, want it to mention FOO.TXT", out.String())
	}
}

func TestRunExtractsDataFork(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.shk")
	buildTestArchive(t, path, "FOO.TXT", []byte("hello"))
	outDir := filepath.Join(dir, "out")

	var out, errOut bytes.Buffer
	code := run([]string{"-x", "-o", outDir, path}, &out, &errOut)
	if code != 0 {
		t.Fatalf("run() exit = %d, stderr = %s", code, errOut.String())
	}

	got, err := os.ReadFile(filepath.Join(outDir, "FOO.TXT"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "hello" {
		t.Fatalf("extracted data = %q, want %q", got, "hello")
	}
}

func TestRunRejectsMissingArchive(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"/nonexistent/path.shk"}, &out, &errOut)
	if code != 1 {
		t.Fatalf("run() exit = %d, want 1", code)
	}
	if errOut.Len() == 0 {
		t.Fatal("expected an error message on stderr")
	}
}

func TestRunRejectsBadArgCount(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(nil, &out, &errOut)
	if code != 2 {
		t.Fatalf("run() exit = %d, want 2", code)
	}
}
