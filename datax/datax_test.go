package datax

import (
	"bytes"
	"io"
	"testing"

	"github.com/fadden/ciderpress-sub006/nufx"
)

func TestBufferSourceRoundTrip(t *testing.T) {
	data := []byte("hello, nufx")
	src := NewBufferSource(data, nil)

	r, err := src.Open()
	if err != nil {
		t.Fatal(err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("got %q, want %q", got, data)
	}

	if err := src.Rewind(); err != nil {
		t.Fatal(err)
	}
	got2, err := io.ReadAll(src.opened)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got2, data) {
		t.Fatalf("after rewind got %q, want %q", got2, data)
	}
}

func TestBufferSourceFreeInvokesCallback(t *testing.T) {
	freed := false
	src := NewBufferSource([]byte("x"), func() { freed = true })
	if err := src.Free(); err != nil {
		t.Fatal(err)
	}
	if !freed {
		t.Fatal("expected free callback to be invoked")
	}
}

func TestBufferSinkAccumulates(t *testing.T) {
	sink := NewBufferSink()
	if _, err := sink.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	if _, err := sink.Write([]byte("def")); err != nil {
		t.Fatal(err)
	}
	if got := string(sink.Bytes()); got != "abcdef" {
		t.Fatalf("got %q, want abcdef", got)
	}
	if sink.Written() != 6 {
		t.Fatalf("Written() = %d, want 6", sink.Written())
	}
}

func TestVoidSinkDiscards(t *testing.T) {
	sink := NewVoidSink()
	n, err := sink.Write([]byte("discarded"))
	if err != nil || n != len("discarded") {
		t.Fatalf("Write = %d, %v", n, err)
	}
}

func TestFunnelEOLConversion(t *testing.T) {
	sink := NewBufferSink()
	f := NewFunnel(sink, nil, "test", 0)
	f.SetEOLConvert("\n")

	if _, err := f.Write([]byte("a\r\nb\rc\nd")); err != nil {
		t.Fatal(err)
	}
	f.Finish()

	if got := string(sink.Bytes()); got != "a\nb\nc\nd" {
		t.Fatalf("got %q", got)
	}
}

func TestFunnelEOLConversionSplitCRLF(t *testing.T) {
	sink := NewBufferSink()
	f := NewFunnel(sink, nil, "test", 0)
	f.SetEOLConvert("\n")

	if _, err := f.Write([]byte("a\r")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte("\nb")); err != nil {
		t.Fatal(err)
	}

	if got := string(sink.Bytes()); got != "a\nb" {
		t.Fatalf("got %q, want a\\nb", got)
	}
}

func TestFunnelAbortPropagates(t *testing.T) {
	sink := NewBufferSink()
	progress := func(u nufx.ProgressUpdate) nufx.Decision { return nufx.DecisionAbort }
	f := NewFunnel(sink, progress, "test", 0)
	f.sinceCheck = progressEvery // force the next write to check

	_, err := f.Write([]byte("x"))
	if err != ErrAborted {
		t.Fatalf("got %v, want ErrAborted", err)
	}
}

func TestStrawReadsThrough(t *testing.T) {
	straw := NewStraw(bytes.NewReader([]byte("payload")), nil, "test", 7)
	got, err := io.ReadAll(straw)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("got %q", got)
	}
	straw.Finish()
}
