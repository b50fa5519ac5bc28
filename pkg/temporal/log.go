// ABOUTME: Append-only partition log with checksummed records
// ABOUTME: Format per record: keyLen(4) valLen(4) key value CRC32(4)

package temporal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
)

// recordHeaderSize is keyLen(4) + valLen(4)
const recordHeaderSize = 8

// encodeRecord frames a key/value pair with a trailing CRC32 checksum
func encodeRecord(key string, value []byte) []byte {
	keyLen := len(key)
	valLen := len(value)
	buf := make([]byte, recordHeaderSize+keyLen+valLen+4)

	binary.LittleEndian.PutUint32(buf[0:4], uint32(keyLen))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(valLen))

	offset := recordHeaderSize
	copy(buf[offset:], key)
	offset += keyLen
	copy(buf[offset:], value)
	offset += valLen

	crc := crc32.ChecksumIEEE(buf[:offset])
	binary.LittleEndian.PutUint32(buf[offset:], crc)
	return buf
}

// appendRecord durably appends one framed record to a partition file
func appendRecord(path, key string, value []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("cannot open partition %s: %w", path, err)
	}

	_, werr := f.Write(encodeRecord(key, value))
	if werr == nil {
		werr = f.Sync()
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("cannot append to partition %s: %w", path, werr)
	}
	return nil
}

// scanRecords walks a partition file, invoking fn per valid record.
// Scanning stops at the first torn or corrupt record: everything past
// a bad frame is unreadable by construction. The error describes why
// the scan stopped early, with all preceding records already
// delivered.
func scanRecords(path string, fn func(key string, value []byte) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	pos := 0
	for pos < len(data) {
		if len(data)-pos < recordHeaderSize+4 {
			return ErrTruncated
		}

		keyLen := int(binary.LittleEndian.Uint32(data[pos : pos+4]))
		valLen := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		total := recordHeaderSize + keyLen + valLen + 4
		if len(data)-pos < total {
			return ErrTruncated
		}

		body := data[pos : pos+recordHeaderSize+keyLen+valLen]
		stored := binary.LittleEndian.Uint32(data[pos+recordHeaderSize+keyLen+valLen : pos+total])
		if crc32.ChecksumIEEE(body) != stored {
			return ErrCorrupted
		}

		key := string(data[pos+recordHeaderSize : pos+recordHeaderSize+keyLen])
		value := data[pos+recordHeaderSize+keyLen : pos+recordHeaderSize+keyLen+valLen]
		if !fn(key, value) {
			return nil
		}
		pos += total
	}
	return nil
}
