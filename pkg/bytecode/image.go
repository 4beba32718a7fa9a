package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ImageVersion is the current image format version.
// Increment when making incompatible changes to the format.
const ImageVersion uint16 = 1

// Magic bytes for image files: "MVBC" (MiniVM ByteCode).
var ImageMagic = []byte{'M', 'V', 'B', 'C'}

// cborEncMode uses canonical encoding for deterministic images.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// EncodeModule serializes a module to an image: a 6-byte header (magic +
// version) followed by a canonical CBOR payload.
func EncodeModule(m *Module) ([]byte, error) {
	payload, err := cborEncMode.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("bytecode: encode module: %w", err)
	}
	buf := make([]byte, 0, 6+len(payload))
	buf = append(buf, ImageMagic...)
	buf = binary.BigEndian.AppendUint16(buf, ImageVersion)
	return append(buf, payload...), nil
}

// DecodeModule deserializes an image produced by EncodeModule.
func DecodeModule(data []byte) (*Module, error) {
	if len(data) < 6 || !bytes.Equal(data[:4], ImageMagic) {
		return nil, fmt.Errorf("bytecode: bad image magic")
	}
	if version := binary.BigEndian.Uint16(data[4:6]); version != ImageVersion {
		return nil, fmt.Errorf("bytecode: unsupported image version %d (want %d)", version, ImageVersion)
	}
	var m Module
	if err := cbor.Unmarshal(data[6:], &m); err != nil {
		return nil, fmt.Errorf("bytecode: decode module: %w", err)
	}
	if m.Functions == nil {
		m.Functions = make(map[string]*Function)
	}
	return &m, nil
}
