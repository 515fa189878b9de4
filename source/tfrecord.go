package source

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
)

// TFRecord framing: every record is
//
//	uint64 length (little endian)
//	uint32 masked CRC-32C of the length bytes
//	[length]byte data
//	uint32 masked CRC-32C of the data
const (
	tfrecordHeaderLen = 12
	tfrecordFooterLen = 4
	crcMaskDelta      = 0xa282ead8

	// maxTFRecordLen guards against reading garbage lengths from a corrupt
	// or non-TFRecord file.
	maxTFRecordLen = 256 << 20
)

var crc32c = crc32.MakeTable(crc32.Castagnoli)

// ErrCorruptRecord is returned when a TFRecord checksum does not match.
var ErrCorruptRecord = errors.New("source: corrupt tfrecord")

func maskedCRC(b []byte) uint32 {
	crc := crc32.Checksum(b, crc32c)
	return ((crc >> 15) | (crc << 17)) + crcMaskDelta
}

// WriteTFRecord writes data to w as a single TFRecord.
func WriteTFRecord(w io.Writer, data []byte) error {
	var header [tfrecordHeaderLen]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(data)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))

	var footer [tfrecordFooterLen]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(data))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	_, err := w.Write(footer[:])
	return err
}

// ReadTFRecords calls fn with every record in r until r is exhausted. The
// slice passed to fn is not reused. A truncated final record is reported as
// io.ErrUnexpectedEOF.
func ReadTFRecords(r io.Reader, fn func(data []byte) error) error {
	br := bufio.NewReader(r)
	var header [tfrecordHeaderLen]byte
	var footer [tfrecordFooterLen]byte

	for n := 0; ; n++ {
		if _, err := io.ReadFull(br, header[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("record %d header: %w", n, err)
		}

		length := binary.LittleEndian.Uint64(header[:8])
		if binary.LittleEndian.Uint32(header[8:]) != maskedCRC(header[:8]) {
			return fmt.Errorf("record %d length: %w", n, ErrCorruptRecord)
		}
		if length > maxTFRecordLen {
			return fmt.Errorf("record %d length %d: %w", n, length, ErrCorruptRecord)
		}

		data := make([]byte, length)
		if _, err := io.ReadFull(br, data); err != nil {
			return fmt.Errorf("record %d data: %w", n, noEOF(err))
		}
		if _, err := io.ReadFull(br, footer[:]); err != nil {
			return fmt.Errorf("record %d footer: %w", n, noEOF(err))
		}
		if binary.LittleEndian.Uint32(footer[:]) != maskedCRC(data) {
			return fmt.Errorf("record %d data: %w", n, ErrCorruptRecord)
		}

		if err := fn(data); err != nil {
			return err
		}
	}
}

func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
