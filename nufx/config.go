package nufx

// EOLConversion controls whether/how line endings are translated while
// extracting a thread (spec.md §4.2, §6).
type EOLConversion int

const (
	EOLOff EOLConversion = iota
	EOLOn
	EOLAuto
)

// EOLStyle names the target line ending when EOLConversion requests one.
type EOLStyle int

const (
	EOLUnknown EOLStyle = iota
	EOLLF
	EOLCR
	EOLCRLF
)

// DataCompression selects the codec used for newly added data-fork
// threads (spec.md §6).
type DataCompression int

const (
	CompressNone DataCompression = iota
	CompressSQ
	CompressLZW1
	CompressLZW2
	CompressLZC12
	CompressLZC16
	CompressDeflate
	CompressBzip2
)

func (c DataCompression) String() string {
	switch c {
	case CompressNone:
		return "none"
	case CompressSQ:
		return "SQ"
	case CompressLZW1:
		return "LZW1"
	case CompressLZW2:
		return "LZW2"
	case CompressLZC12:
		return "LZC12"
	case CompressLZC16:
		return "LZC16"
	case CompressDeflate:
		return "Deflate"
	case CompressBzip2:
		return "Bzip2"
	default:
		return "unknown"
	}
}

// HandleExisting controls how AddRecord/AddThread react to a pathname
// that already exists in the archive (spec.md §6).
type HandleExisting int

const (
	ExistingMaybeOverwrite HandleExisting = iota
	ExistingNeverOverwrite
	ExistingAlwaysOverwrite
	ExistingMustOverwrite
)

// Config holds the getter/setter configuration values named in spec.md
// §6. Unlike the original's individually-guarded accessor functions, Go
// callers set exported fields directly before passing a Config to
// archive.Open or archive.Create. The Archive keeps its own copy made at
// that point and has no setter, so later changes to the caller's Config
// value do not reach an archive that is already open.
type Config struct {
	AllowDuplicates   bool
	ConvertExtractEOL EOLConversion
	EOLTarget         EOLStyle
	DataCompression   DataCompression
	DiscardWrapper    bool
	HandleExisting    HandleExisting
	IgnoreCRC         bool
	MaskDataless      bool
	MimicSHK          bool
	ModifyOrig        bool
	OnlyUpdateOlder   bool
	StripHighASCII    bool
	JunkSkipMax       int
	IgnoreLZW2Len     bool
	HandleBadMac      bool
}

// DefaultJunkSkipMax and MaxJunkSkipMax bound Config.JunkSkipMax
// (spec.md §4.5, §6).
const (
	DefaultJunkSkipMax = 1024
	MaxJunkSkipMax     = 8192
)

// DefaultConfig returns the configuration nufxlib ships with: mask-dataless
// on, junk-skip-max at its default, everything else conservative.
func DefaultConfig() Config {
	return Config{
		MaskDataless: true,
		JunkSkipMax:  DefaultJunkSkipMax,
	}
}

// Normalize clamps JunkSkipMax into [0, MaxJunkSkipMax] in place.
func (c *Config) Normalize() {
	if c.JunkSkipMax < 0 {
		c.JunkSkipMax = 0
	}
	if c.JunkSkipMax > MaxJunkSkipMax {
		c.JunkSkipMax = MaxJunkSkipMax
	}
}
