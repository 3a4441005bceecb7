package binio

import (
	"bytes"
	"testing"
	"time"
)

func TestRoundTripIntegers(t *testing.T) {
	var buf bytes.Buffer
	w := NewCRCWriter(&buf)
	if err := w.PutByte(0xAB); err != nil {
		t.Fatal(err)
	}
	if err := w.PutWord(0x1234); err != nil {
		t.Fatal(err)
	}
	if err := w.PutLong(0xDEADBEEF); err != nil {
		t.Fatal(err)
	}

	r := NewCRCReader(&buf)
	b, err := r.Byte()
	if err != nil || b != 0xAB {
		t.Fatalf("Byte() = %#x, %v", b, err)
	}
	word, err := r.Word()
	if err != nil || word != 0x1234 {
		t.Fatalf("Word() = %#x, %v", word, err)
	}
	long, err := r.Long()
	if err != nil || long != 0xDEADBEEF {
		t.Fatalf("Long() = %#x, %v", long, err)
	}
	if r.CRC() != w.CRC() {
		t.Fatalf("CRC mismatch: read %#04x, wrote %#04x", r.CRC(), w.CRC())
	}
}

func TestShortReadFails(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01}))
	if _, err := r.Word(); err == nil {
		t.Fatal("expected error reading a word from a single byte")
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	in := time.Date(2023, time.June, 15, 13, 45, 30, 0, time.Local)
	dt := FromTime(in)
	out := dt.Time()

	if out.Year() != in.Year() || out.Month() != in.Month() || out.Day() != in.Day() ||
		out.Hour() != in.Hour() || out.Minute() != in.Minute() || out.Second() != in.Second() {
		t.Fatalf("round trip mismatch: got %v, want %v", out, in)
	}
}

func TestDateTimeYearBands(t *testing.T) {
	cases := []struct {
		raw  byte
		want int
	}{
		{0, 2000},
		{39, 2039},
		{40, 1940},
		{99, 1999},
		{120, 2020},
	}
	for _, c := range cases {
		// Hour is set so that year byte 0 is not the all-zero "no timestamp" value.
		dt := DateTime{Year: c.raw, Day: 0, Month: 0, Hour: 1}
		got := dt.Time().Year()
		if got != c.want {
			t.Errorf("year byte %d => %d, want %d", c.raw, got, c.want)
		}
	}
}

func TestDateTimeZero(t *testing.T) {
	var dt DateTime
	if !dt.IsZero() {
		t.Fatal("expected zero DateTime")
	}
	if !dt.Time().IsZero() {
		t.Fatal("expected zero time.Time")
	}
}

func TestDateTimeWriteRead(t *testing.T) {
	var buf bytes.Buffer
	dt := DateTime{Second: 1, Minute: 2, Hour: 3, Year: 23, Day: 4, Month: 5, Extra: 0, Weekday: 3}
	if err := dt.Write(NewWriter(&buf)); err != nil {
		t.Fatal(err)
	}
	got, err := ReadDateTime(NewReader(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if got != dt {
		t.Fatalf("got %+v, want %+v", got, dt)
	}
}
