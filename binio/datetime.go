package binio

import "time"

// DateTime is the 8-byte Apple II DateTime structure used for the master
// header's create/mod timestamps and each record's create/mod/archive
// timestamps (spec.md §6). Its year-encoding quirk (a single byte spanning
// three different centuries) is preserved verbatim on round-trip even
// though Time()/FromTime() normalize it to a Go time.Time.
type DateTime struct {
	Second  byte
	Minute  byte
	Hour    byte
	Year    byte // 0-39 => 2000-2039, 40-99 => 1940-1999, >=100 => 1900+n
	Day     byte // 0-based day of month
	Month   byte // 0-based month
	Extra   byte
	Weekday byte // 0 or 1-7
}

// DateTimeSize is the on-disk size of a DateTime field.
const DateTimeSize = 8

// ReadDateTime decodes an 8-byte DateTime.
func ReadDateTime(r *Reader) (DateTime, error) {
	b, err := r.Bytes(DateTimeSize)
	if err != nil {
		return DateTime{}, err
	}
	return DateTime{
		Second:  b[0],
		Minute:  b[1],
		Hour:    b[2],
		Year:    b[3],
		Day:     b[4],
		Month:   b[5],
		Extra:   b[6],
		Weekday: b[7],
	}, nil
}

// Write encodes the DateTime as 8 bytes.
func (d DateTime) Write(w *Writer) error {
	return w.PutBytes([]byte{d.Second, d.Minute, d.Hour, d.Year, d.Day, d.Month, d.Extra, d.Weekday})
}

// IsZero reports whether every field of the DateTime is zero, the
// convention nufxlib uses for "no timestamp".
func (d DateTime) IsZero() bool {
	return d == DateTime{}
}

// Time converts the DateTime to a time.Time in the local zone. Returns the
// zero time for a zero DateTime.
func (d DateTime) Time() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	var year int
	switch {
	case d.Year <= 39:
		year = 2000 + int(d.Year)
	case d.Year <= 99:
		year = 1900 + int(d.Year)
	default:
		year = 1900 + int(d.Year)
	}
	return time.Date(year, time.Month(int(d.Month)+1), int(d.Day)+1,
		int(d.Hour), int(d.Minute), int(d.Second), 0, time.Local)
}

// FromTime builds a DateTime from a time.Time. Years before 1940 or after
// 2039 cannot be represented and are clamped to the nearest representable
// boundary (1940 or 2039).
func FromTime(t time.Time) DateTime {
	if t.IsZero() {
		return DateTime{}
	}
	year := t.Year()
	var yb int
	switch {
	case year >= 2000 && year <= 2039:
		yb = year - 2000
	case year >= 1940 && year <= 1999:
		yb = year - 1900
	case year > 2039:
		yb = 39
	default:
		yb = 40
	}
	weekday := int(t.Weekday()) // 0=Sunday ... matches Apple's 1-7 with 0=unset convention closely enough to round-trip within a session
	if weekday == 0 {
		weekday = 7
	}
	return DateTime{
		Second:  byte(t.Second()),
		Minute:  byte(t.Minute()),
		Hour:    byte(t.Hour()),
		Year:    byte(yb),
		Day:     byte(t.Day() - 1),
		Month:   byte(int(t.Month()) - 1),
		Weekday: byte(weekday),
	}
}
