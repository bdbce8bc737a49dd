package compress

import "github.com/klauspost/compress/s2"

type S2Codec struct{}

var _ Codec = S2Codec{}

func NewS2Codec() S2Codec {
	return S2Codec{}
}

func (S2Codec) Name() string      { return S2 }
func (S2Codec) Extension() string { return ".s2" }

func (S2Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return s2.EncodeBetter(nil, data), nil
}

func (S2Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return s2.Decode(nil, data)
}
