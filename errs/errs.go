// Package errs defines the sentinel errors shared by all mipsnap packages.
//
// Callers match them with errors.Is; packages wrap them with fmt.Errorf("...: %w")
// when extra context is useful.
package errs

import "errors"

// Range and argument errors. These are caller contract violations; they are
// reported instead of panicking so a bad request never yields a wrong answer.
var (
	ErrInvalidRange     = errors.New("invalid sample range")
	ErrInvalidMinLength = errors.New("min length must be positive")
	ErrInvalidChannel   = errors.New("invalid channel index")
	ErrInvalidLevel     = errors.New("invalid mip-map level")
	ErrUnitSizeMismatch = errors.New("packet unit size does not match snapshot")
	ErrInvalidUnitSize  = errors.New("invalid unit size")
	ErrPartialSample    = errors.New("packet length is not a multiple of the unit size")
)

// Allocation errors.
var (
	// ErrOutOfMemory is returned by the append call that would exceed the memory limit.
	ErrOutOfMemory = errors.New("sample memory limit exceeded")
	// ErrMemoryFailed is returned by every append after an allocation failure.
	ErrMemoryFailed = errors.New("snapshot memory failed, capture must be aborted")
)

// Group errors.
var (
	ErrEmptyGroup     = errors.New("group has no channels")
	ErrGroupTooWide   = errors.New("group has more than 16 channels")
	ErrDuplicateGroup = errors.New("channel listed twice in group")
	ErrNoLogicData    = errors.New("no logic snapshot available")
)

// Capture archive errors.
var (
	ErrInvalidHeader    = errors.New("invalid capture header")
	ErrInvalidMagic     = errors.New("invalid capture magic")
	ErrInvalidVersion   = errors.New("unsupported capture version")
	ErrChecksumMismatch = errors.New("capture block checksum mismatch")
	ErrKindMismatch     = errors.New("capture holds a different snapshot kind")
	ErrTruncated        = errors.New("capture data truncated")
	ErrCorruptBlock     = errors.New("capture block is corrupt")
	ErrInvalidCodec     = errors.New("unsupported compression type")
)

// Decoder errors.
var (
	ErrUnknownDecoder   = errors.New("unknown decoder")
	ErrDuplicateDecoder = errors.New("decoder id already registered")
	ErrMissingProbe     = errors.New("decoder probe not assigned")
	ErrDuplicateProbes  = errors.New("decoder probes share a channel")
)

// Session errors.
var (
	ErrNotRunning      = errors.New("session is not capturing")
	ErrAlreadyRunning  = errors.New("session is already capturing")
	ErrNoChannels      = errors.New("session has no enabled channels")
	ErrInvalidChannels = errors.New("invalid channel list")
	ErrUnknownGroup    = errors.New("unknown group")
	ErrGroupExists     = errors.New("group name already in use")
)
