package archive_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fadden/ciderpress-sub006/archive"
	"github.com/fadden/ciderpress-sub006/binio"
	"github.com/fadden/ciderpress-sub006/codec"
	"github.com/fadden/ciderpress-sub006/crc16"
	"github.com/fadden/ciderpress-sub006/datax"
	"github.com/fadden/ciderpress-sub006/nufx"
	"github.com/fadden/ciderpress-sub006/record"
	"github.com/fadden/ciderpress-sub006/thread"
)

func tempArchivePaths(t *testing.T) (path, tempTemplate string) {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.shk"), filepath.Join(dir, "tmp-*")
}

func TestEmptyArchiveRemovedOnClose(t *testing.T) {
	path, tempTemplate := tempArchivePaths(t)

	a, err := archive.Create(path, tempTemplate, nufx.DefaultConfig(), nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected %s to be removed, stat err = %v", path, err)
	}
}

func TestAddRecordFlushReopenExtract(t *testing.T) {
	path, tempTemplate := tempArchivePaths(t)
	cfg := nufx.DefaultConfig()

	a, err := archive.Create(path, tempTemplate, cfg, nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}

	recIdx, err := a.AddRecord("FOO.TXT", record.FSProDOS)
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte("hello world")
	src := datax.NewBufferSource(payload, nil)
	if _, err := a.AddThread(recIdx, thread.IDDataFork, codec.FormatLZW2, src); err != nil {
		t.Fatal(err)
	}

	if status, err := a.Flush(); err != nil || status != 0 {
		t.Fatalf("Flush() = (%v, %v), want (0, nil)", status, err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := archive.Open(path, archive.ModeReadOnly, "", cfg, nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	records, err := b.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.Name() != "FOO.TXT" {
		t.Fatalf("Name() = %q, want FOO.TXT", rec.Name())
	}
	if len(rec.Threads) != 1 || rec.Threads[0].ID() != thread.IDDataFork {
		t.Fatalf("unexpected thread set: %+v", rec.Threads)
	}

	sink := datax.NewBufferSink()
	if err := b.ExtractThread(rec.Idx, rec.Threads[0].Idx, sink); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(sink.Bytes(), payload) {
		t.Fatalf("extracted payload = %q, want %q", sink.Bytes(), payload)
	}
}

func TestRenamePersistsAcrossFlush(t *testing.T) {
	path, tempTemplate := tempArchivePaths(t)
	cfg := nufx.DefaultConfig()

	a, err := archive.Create(path, tempTemplate, cfg, nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	recIdx, err := a.AddRecord("OLD.TXT", record.FSProDOS)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Flush(); err != nil {
		t.Fatal(err)
	}

	if err := a.Rename(recIdx, "NEW.TXT"); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := archive.Open(path, archive.ModeReadOnly, "", cfg, nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	records, err := b.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Name() != "NEW.TXT" {
		t.Fatalf("got records %+v, want one named NEW.TXT", records)
	}
}

func TestDeleteRecordRemovesItOnFlush(t *testing.T) {
	path, tempTemplate := tempArchivePaths(t)
	cfg := nufx.DefaultConfig()

	a, err := archive.Create(path, tempTemplate, cfg, nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	keepIdx, err := a.AddRecord("KEEP.TXT", record.FSProDOS)
	if err != nil {
		t.Fatal(err)
	}
	dropIdx, err := a.AddRecord("DROP.TXT", record.FSProDOS)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := a.DeleteRecord(dropIdx); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Flush(); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}
	_ = keepIdx

	b, err := archive.Open(path, archive.ModeReadOnly, "", cfg, nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	records, err := b.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Name() != "KEEP.TXT" {
		t.Fatalf("got records %+v, want only KEEP.TXT", records)
	}
}

func TestOpenRejectsShortFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tiny.shk")
	if err := os.WriteFile(path, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := archive.Open(path, archive.ModeReadOnly, "", nufx.DefaultConfig(), nufx.Callbacks{})
	if !nufx.Is(err, nufx.ErrNotNuFX) {
		t.Fatalf("Open() err = %v, want ErrNotNuFX", err)
	}
}

// buildStreamingArchive hand-assembles a one-record archive whose data
// fork thread precedes its filename thread, a shape a well-behaved writer
// never produces but a streaming reader must still tolerate (spec.md §8,
// "data thread before its filename thread").
func buildStreamingArchive(t *testing.T, path string, data, name []byte) {
	t.Helper()

	rec := &record.Record{
		Version: 3,
		Threads: []*thread.Thread{
			{Class: thread.ClassData, Kind: thread.KindDataFork, Format: codec.FormatUncompressed,
				UncompressedEOF: uint32(len(data)), CompressedEOF: uint32(len(data)), StoredCRC: crc16.Of(data)},
			{Class: thread.ClassFilename, Kind: thread.KindFilename, Format: codec.FormatUncompressed,
				UncompressedEOF: uint32(len(name)), CompressedEOF: uint32(len(name))},
		},
	}

	var recordBuf bytes.Buffer
	if err := rec.WriteHeader(binio.NewWriter(&recordBuf)); err != nil {
		t.Fatal(err)
	}
	recordBuf.Write(data)
	recordBuf.Write(name)

	mh := archive.MasterHeader{
		TotalRecords: 1,
		Version:      2,
		MasterEOF:    uint32(archive.MasterHeaderSize + recordBuf.Len()),
	}
	var fileBuf bytes.Buffer
	if err := mh.WriteTo(&fileBuf); err != nil {
		t.Fatal(err)
	}
	fileBuf.Write(recordBuf.Bytes())

	if err := os.WriteFile(path, fileBuf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStreamingDefaultsToUnknownBeforeFilenameThread(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.shk")
	buildStreamingArchive(t, path, []byte("payload"), []byte("REAL.TXT"))

	a, err := archive.Open(path, archive.ModeStreaming, "", nufx.DefaultConfig(), nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	var names []string
	err = a.Stream(func(entry archive.StreamEntry, extract func(*datax.Sink) error) bool {
		names = append(names, entry.Record.Name())
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Fatalf("got %d stream entries, want 2", len(names))
	}
	if names[0] != "UNKNOWN" {
		t.Fatalf("data-fork entry name = %q, want UNKNOWN", names[0])
	}
	if names[1] != "REAL.TXT" {
		t.Fatalf("filename-thread entry name = %q, want REAL.TXT", names[1])
	}
}

func TestStreamingRejectsSeekBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stream2.shk")
	buildStreamingArchive(t, path, []byte("abc"), []byte("X"))

	a, err := archive.Open(path, archive.ModeStreaming, "", nufx.DefaultConfig(), nufx.Callbacks{})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	err = a.Stream(func(entry archive.StreamEntry, extract func(*datax.Sink) error) bool {
		if entry.Thread.ID() != thread.IDDataFork {
			return true
		}
		sink := datax.NewBufferSink()
		if err := extract(sink); err != nil {
			t.Fatalf("first extract failed: %v", err)
		}
		if err := extract(sink); err == nil {
			t.Fatal("second extract call should fail in streaming mode")
		}
		return true
	})
	if err != nil {
		t.Fatal(err)
	}
}
