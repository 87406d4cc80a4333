package objectfs

import (
	"encoding/binary"
	"fmt"
)

// encodeMetaInfo serializes info as length(8) || backupVersionTable ||
// counter(4), all little-endian. This is the explicitly-accepted
// ABI break from the original host-native encoding.
func encodeMetaInfo(info fileMetaInfo, numBlocksPerFile int) []byte {
	tableLen := bitmapBytes(numBlocksPerFile)
	buf := make([]byte, 8+tableLen+4)

	binary.LittleEndian.PutUint64(buf[0:8], info.length)

	table := info.backupVersionTable
	copy(buf[8:8+tableLen], table)

	binary.LittleEndian.PutUint32(buf[8+tableLen:8+tableLen+4], info.counter)
	return buf
}

// decodeMetaInfo parses the layout encodeMetaInfo produces.
func decodeMetaInfo(buf []byte, numBlocksPerFile int) (fileMetaInfo, error) {
	tableLen := bitmapBytes(numBlocksPerFile)
	want := 8 + tableLen + 4
	if int64(len(buf)) != want {
		return fileMetaInfo{}, fmt.Errorf("objectfs: %w: meta info size mismatch", ErrCorruptObject)
	}

	length := binary.LittleEndian.Uint64(buf[0:8])
	table := make([]byte, tableLen)
	copy(table, buf[8:8+tableLen])
	counter := binary.LittleEndian.Uint32(buf[8+tableLen : 8+tableLen+4])

	return fileMetaInfo{
		length:             length,
		backupVersionTable: table,
		counter:            counter,
	}, nil
}
