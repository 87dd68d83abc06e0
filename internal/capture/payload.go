package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// payloadKeyword is the tEXt keyword under which snapshot payloads are stored.
const payloadKeyword = "simloop"

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// embedPayload inserts a tEXt chunk carrying payload right after IHDR.
func embedPayload(pngData []byte, payload string) ([]byte, error) {
	if !bytes.HasPrefix(pngData, pngSignature) || len(pngData) < len(pngSignature)+8 {
		return nil, errors.New("embed payload: not a png stream")
	}
	ihdrLen := int(binary.BigEndian.Uint32(pngData[8:12]))
	ihdrEnd := len(pngSignature) + 12 + ihdrLen
	if ihdrEnd > len(pngData) || string(pngData[12:16]) != "IHDR" {
		return nil, errors.New("embed payload: missing IHDR")
	}
	if bytes.IndexByte([]byte(payload), 0) >= 0 {
		return nil, fmt.Errorf("embed payload: payload contains NUL")
	}

	data := append([]byte(payloadKeyword+"\x00"), payload...)
	var chunk bytes.Buffer
	chunk.Grow(12 + len(data))
	_ = binary.Write(&chunk, binary.BigEndian, uint32(len(data)))
	chunk.WriteString("tEXt")
	chunk.Write(data)
	crc := crc32.NewIEEE()
	crc.Write([]byte("tEXt"))
	crc.Write(data)
	_ = binary.Write(&chunk, binary.BigEndian, crc.Sum32())

	out := make([]byte, 0, len(pngData)+chunk.Len())
	out = append(out, pngData[:ihdrEnd]...)
	out = append(out, chunk.Bytes()...)
	out = append(out, pngData[ihdrEnd:]...)
	return out, nil
}

// ExtractPayload returns the payload embedded in a PNG snapshot.
func ExtractPayload(pngData []byte) (string, bool) {
	if !bytes.HasPrefix(pngData, pngSignature) {
		return "", false
	}
	pos := len(pngSignature)
	for pos+12 <= len(pngData) {
		length := int(binary.BigEndian.Uint32(pngData[pos : pos+4]))
		typ := string(pngData[pos+4 : pos+8])
		end := pos + 12 + length
		if length < 0 || end > len(pngData) {
			return "", false
		}
		if typ == "tEXt" {
			body := pngData[pos+8 : pos+8+length]
			if key, value, ok := bytes.Cut(body, []byte{0}); ok && string(key) == payloadKeyword {
				return string(value), true
			}
		}
		if typ == "IEND" {
			break
		}
		pos = end
	}
	return "", false
}
