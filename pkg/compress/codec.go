// Package compress provides the codecs used for curve archives.
package compress

import (
	pkgerrors "github.com/pkg/errors"
)

// Codec names accepted by ByName.
const (
	None = "none"
	Zstd = "zstd"
	LZ4  = "lz4"
	S2   = "s2"
)

// Names lists the supported codec names.
var Names = []string{None, Zstd, LZ4, S2}

type Compressor interface {
	// Compress returns a newly allocated compressed copy of data.
	Compress(data []byte) ([]byte, error)
}

type Decompressor interface {
	// Decompress reverses Compress. It fails on corrupted input or input
	// produced by another codec.
	Decompress(data []byte) ([]byte, error)
}

// Codec combines both directions. Implementations are safe for concurrent use.
type Codec interface {
	Compressor
	Decompressor
	// Name returns the registry name of the codec.
	Name() string
	// Extension is the file name suffix for archives in this format,
	// including the dot, or "" for None.
	Extension() string
}

var builtinCodecs = map[string]Codec{
	None: NewNoOpCodec(),
	Zstd: NewZstdCodec(),
	LZ4:  NewLZ4Codec(),
	S2:   NewS2Codec(),
}

// ByName returns the built-in codec called name. An empty name selects None.
func ByName(name string) (Codec, error) {
	if name == "" {
		name = None
	}
	if codec, ok := builtinCodecs[name]; ok {
		return codec, nil
	}
	return nil, pkgerrors.Errorf("unsupported compression %q, expected one of %v", name, Names)
}

// ByExtension returns the codec whose Extension matches ext, e.g. ".zst".
// Unknown extensions select None.
func ByExtension(ext string) Codec {
	for _, name := range Names {
		if c := builtinCodecs[name]; c.Extension() != "" && c.Extension() == ext {
			return c
		}
	}
	return builtinCodecs[None]
}
