package archive

import (
	"bytes"
	"io"

	"github.com/fadden/ciderpress-sub006/binio"
	"github.com/fadden/ciderpress-sub006/nufx"
)

// MasterHeaderSize is the on-disk size of the fixed master header
// (spec.md §3, §6).
const MasterHeaderSize = 48

// maxMasterVersion is the highest master-header version this engine
// accepts on input (spec.md §3: "version (must be <= current-max;
// current-max is 2)").
const maxMasterVersion = 2

var masterMagic = [6]byte{0x4e, 0xf5, 0x46, 0xe9, 0x6c, 0xe5}

// MasterHeader is the fixed 48-byte record that opens every NuFX archive
// (spec.md §3, "Master header"; §6's field table).
type MasterHeader struct {
	StoredCRC    uint16
	TotalRecords uint32
	CreateWhen   binio.DateTime
	ModWhen      binio.DateTime
	Version      uint16
	MasterEOF    uint32
}

// ReadMasterHeader decodes the 48-byte master header starting at r's
// current position, validates its magic, header CRC (unless
// cfg.IgnoreCRC), and version, and enforces the truncated/legacy-EOF
// invariants named in spec.md §3 and §8.
func ReadMasterHeader(r io.Reader, cfg nufx.Config) (MasterHeader, error) {
	plain := binio.NewReader(r)
	magic, err := plain.Bytes(len(masterMagic))
	if err != nil {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrNotNuFX, err)
	}
	for i := range masterMagic {
		if magic[i] != masterMagic[i] {
			return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrNotNuFX, nil)
		}
	}

	storedCRC, err := plain.Word()
	if err != nil {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrTruncated, err)
	}

	body := binio.NewCRCReader(r)
	totalRecords, err := body.Long()
	if err != nil {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrTruncated, err)
	}
	createWhen, err := binio.ReadDateTime(body)
	if err != nil {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrTruncated, err)
	}
	modWhen, err := binio.ReadDateTime(body)
	if err != nil {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrTruncated, err)
	}
	version, err := body.Word()
	if err != nil {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrTruncated, err)
	}
	if _, err := body.Bytes(8); err != nil { // reserved1
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrTruncated, err)
	}
	masterEOF, err := body.Long()
	if err != nil {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrTruncated, err)
	}
	if _, err := body.Bytes(6); err != nil { // reserved2
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrTruncated, err)
	}

	if version > maxMasterVersion {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrBadMasterVersion, nil)
	}

	if !cfg.IgnoreCRC && body.CRC() != storedCRC {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrBadMHCRC, nil)
	}

	// masterEOF == 0 is a tolerated legacy-producer quirk; masterEOF
	// exactly equal to the header size means the archive was truncated
	// right after the header and carries no records (spec.md §3, §8).
	if masterEOF == MasterHeaderSize {
		return MasterHeader{}, nufx.New("ReadMasterHeader", nufx.ErrNoRecords, nil)
	}

	return MasterHeader{
		StoredCRC:    storedCRC,
		TotalRecords: totalRecords,
		CreateWhen:   createWhen,
		ModWhen:      modWhen,
		Version:      version,
		MasterEOF:    masterEOF,
	}, nil
}

// WriteTo encodes the master header and back-computes the header CRC;
// setting MasterEOF to the post-flush archive length is the caller's
// responsibility (Flush does so before calling WriteTo, per spec.md
// §4.6).
func (m MasterHeader) WriteTo(w io.Writer) error {
	plain := binio.NewWriter(w)
	if err := plain.PutBytes(masterMagic[:]); err != nil {
		return err
	}

	var body bytes.Buffer
	bw := binio.NewCRCWriter(&body)
	if err := bw.PutLong(m.TotalRecords); err != nil {
		return err
	}
	if err := m.CreateWhen.Write(bw); err != nil {
		return err
	}
	if err := m.ModWhen.Write(bw); err != nil {
		return err
	}
	if err := bw.PutWord(m.Version); err != nil {
		return err
	}
	if err := bw.PutBytes(make([]byte, 8)); err != nil {
		return err
	}
	if err := bw.PutLong(m.MasterEOF); err != nil {
		return err
	}
	if err := bw.PutBytes(make([]byte, 6)); err != nil {
		return err
	}

	if err := plain.PutWord(bw.CRC()); err != nil {
		return err
	}
	return plain.PutBytes(body.Bytes())
}
