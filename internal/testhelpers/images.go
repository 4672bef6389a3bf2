package testhelpers

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"hash/crc32"
)

// DeclaredSizePNG returns a well-formed PNG whose header declares a
// width x height 16-bit RGBA bitmap while carrying almost no pixel data.
// Decoding it in full would allocate the whole declared bitmap.
func DeclaredSizePNG(width, height uint32) []byte {
	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")

	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], width)
	binary.BigEndian.PutUint32(ihdr[4:8], height)
	ihdr[8] = 16 // bit depth
	ihdr[9] = 6  // truecolor with alpha
	writeChunk(&buf, "IHDR", ihdr)

	var idat bytes.Buffer
	zw := zlib.NewWriter(&idat)
	_, _ = zw.Write(make([]byte, 64))
	_ = zw.Close()
	writeChunk(&buf, "IDAT", idat.Bytes())

	writeChunk(&buf, "IEND", nil)
	return buf.Bytes()
}

func writeChunk(buf *bytes.Buffer, kind string, data []byte) {
	var length [4]byte
	binary.BigEndian.PutUint32(length[:], uint32(len(data)))
	buf.Write(length[:])

	crc := crc32.NewIEEE()
	_, _ = crc.Write([]byte(kind))
	_, _ = crc.Write(data)
	buf.WriteString(kind)
	buf.Write(data)

	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	buf.Write(sum[:])
}
