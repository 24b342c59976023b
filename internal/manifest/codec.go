package manifest

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/zeebo/blake3"
)

const (
	magic       = 0x50534d46 // "PSMF"
	versionV1   = 1
	headerLen   = 4 + 4
	checksumLen = 32

	// maxCount caps decoded group/bundle counts so corrupt length fields
	// cannot drive huge allocations.
	maxCount = 1 << 20
)

// Codec serializes and deserializes manifests for durable storage.
type Codec interface {
	Encode(w io.Writer, m *Manifest) error
	Decode(r io.Reader) (*Manifest, error)
}

// BinaryCodec implements a compact binary manifest format with a header and
// a trailing BLAKE3 checksum over the body.
type BinaryCodec struct{}

// Encode writes a manifest with a header and checksum.
func (c *BinaryCodec) Encode(w io.Writer, m *Manifest) error {
	if m == nil {
		return errors.New("manifest: nil manifest")
	}
	buf := make([]byte, 0, 512)
	buf = appendU32(buf, magic)
	buf = appendU32(buf, versionV1)
	buf = appendU64(buf, m.LastUpdate)
	buf = appendU32(buf, uint32(len(m.Groups)))
	for _, g := range m.Groups {
		buf = appendString(buf, g.Name)
		buf = appendU32(buf, uint32(len(g.Bundles)))
		for _, b := range g.Bundles {
			buf = appendString(buf, b.Name)
			buf = appendString(buf, b.FetchURL)
			buf = appendU64(buf, b.Size)
			buf = appendBytes(buf, b.Hash)
			buf = appendU32(buf, uint32(b.PartIndex))
			buf = appendU32(buf, uint32(b.PartCount))
		}
	}
	checksum := blake3.Sum256(buf[headerLen:])
	if _, err := w.Write(buf); err != nil {
		return err
	}
	_, err := w.Write(checksum[:])
	return err
}

// Decode reads a manifest, validates header and checksum, and returns the manifest.
func (c *BinaryCodec) Decode(r io.Reader) (*Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) < headerLen+checksumLen {
		return nil, errors.New("manifest: truncated")
	}
	body := data[:len(data)-checksumLen]
	checksum := data[len(data)-checksumLen:]
	sum := blake3.Sum256(body[headerLen:])
	if !equalBytes(sum[:], checksum) {
		return nil, errors.New("manifest: checksum mismatch")
	}
	if binary.LittleEndian.Uint32(body[0:4]) != magic {
		return nil, errors.New("manifest: bad magic")
	}
	if binary.LittleEndian.Uint32(body[4:8]) != versionV1 {
		return nil, errors.New("manifest: unsupported version")
	}
	offset := headerLen
	if offset+8+4 > len(body) {
		return nil, errors.New("manifest: truncated body")
	}
	lastUpdate := binary.LittleEndian.Uint64(body[offset:])
	offset += 8
	groupCount := int(binary.LittleEndian.Uint32(body[offset:]))
	offset += 4
	if groupCount > maxCount {
		return nil, errors.New("manifest: group count out of range")
	}
	groups := make([]ContentGroup, 0, groupCount)
	for i := 0; i < groupCount; i++ {
		name, n, err := readString(body[offset:])
		if err != nil {
			return nil, err
		}
		offset += n
		if offset+4 > len(body) {
			return nil, errors.New("manifest: truncated group")
		}
		bundleCount := int(binary.LittleEndian.Uint32(body[offset:]))
		offset += 4
		if bundleCount > maxCount {
			return nil, errors.New("manifest: bundle count out of range")
		}
		bundles := make([]Bundle, 0, bundleCount)
		for j := 0; j < bundleCount; j++ {
			var b Bundle
			b.Name, n, err = readString(body[offset:])
			if err != nil {
				return nil, err
			}
			offset += n
			b.FetchURL, n, err = readString(body[offset:])
			if err != nil {
				return nil, err
			}
			offset += n
			if offset+8 > len(body) {
				return nil, errors.New("manifest: truncated bundle")
			}
			b.Size = binary.LittleEndian.Uint64(body[offset:])
			offset += 8
			b.Hash, n, err = readBytes(body[offset:])
			if err != nil {
				return nil, err
			}
			offset += n
			if offset+4+4 > len(body) {
				return nil, errors.New("manifest: truncated bundle")
			}
			b.PartIndex = int32(binary.LittleEndian.Uint32(body[offset:]))
			offset += 4
			b.PartCount = int32(binary.LittleEndian.Uint32(body[offset:]))
			offset += 4
			bundles = append(bundles, b)
		}
		groups = append(groups, ContentGroup{Name: name, Bundles: bundles})
	}
	if offset != len(body) {
		return nil, errors.New("manifest: trailing bytes")
	}
	return &Manifest{
		LastUpdate: lastUpdate,
		Groups:     groups,
	}, nil
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, v string) []byte {
	buf = appendU32(buf, uint32(len(v)))
	return append(buf, v...)
}

func appendBytes(buf, v []byte) []byte {
	buf = appendU32(buf, uint32(len(v)))
	return append(buf, v...)
}

func readString(data []byte) (string, int, error) {
	raw, n, err := readBytes(data)
	if err != nil {
		return "", 0, err
	}
	return string(raw), n, nil
}

func readBytes(data []byte) ([]byte, int, error) {
	if len(data) < 4 {
		return nil, 0, errors.New("manifest: truncated length")
	}
	length := int(binary.LittleEndian.Uint32(data))
	if length > len(data)-4 {
		return nil, 0, errors.New("manifest: truncated value")
	}
	if length == 0 {
		return nil, 4, nil
	}
	out := make([]byte, length)
	copy(out, data[4:4+length])
	return out, 4 + length, nil
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
