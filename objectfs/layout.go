package objectfs

// Layout is the pure, I/O-free offset calculator for the container
// format (C1). Every method is a function of its explicit inputs —
// no state is mutated and no transport call is ever made here.
type Layout struct {
	hMeta            int64
	hBlock           int64
	metaInfoSize     int64
	numBlocksPerFile int

	sMeta  int64
	sBlock int64
}

// NewLayout builds a Layout for the given key-manager header sizes
// and block count. The three quantities are ABI-visible: changing
// any of them for an existing container breaks it.
func NewLayout(hMeta, hBlock int64, numBlocksPerFile int) Layout {
	infoSize := metaInfoSize(numBlocksPerFile)
	return Layout{
		hMeta:            hMeta,
		hBlock:           hBlock,
		metaInfoSize:     infoSize,
		numBlocksPerFile: numBlocksPerFile,
		sMeta:            hMeta + infoSize,
		sBlock:           hBlock + BlockSize,
	}
}

// metaInfoSize returns the plaintext byte length of a serialized
// fileMetaInfo for a container sized for numBlocksPerFile blocks:
// an 8-byte length, a bit-per-block backup-version table, and a
// 4-byte redundant counter copy.
func metaInfoSize(numBlocksPerFile int) int64 {
	return 8 + bitmapBytes(numBlocksPerFile) + 4
}

func bitmapBytes(numBlocksPerFile int) int64 {
	return int64((numBlocksPerFile + 7) / 8)
}

// SMeta returns the on-disk size of one meta slot (header + info).
func (l Layout) SMeta() int64 { return l.sMeta }

// SBlock returns the on-disk size of one block slot (header + payload).
func (l Layout) SBlock() int64 { return l.sBlock }

// MetaInfoSize returns the plaintext meta-info body size.
func (l Layout) MetaInfoSize() int64 { return l.metaInfoSize }

// BlockOf maps a byte position to its logical block index.
func BlockOf(pos int64) int64 { return pos >> blockShift }

// MetaOffset returns the byte offset of the meta slot satisfying
// wantActive, given the current on-disk counter's parity.
// wantActive = true selects the slot the counter currently names
// authoritative; false selects its shadow (the one safe to
// overwrite out-of-place).
func (l Layout) MetaOffset(counter uint32, wantActive bool) int64 {
	activeSlot := counter & 1
	slot := activeSlot
	if !wantActive {
		slot = 1 - activeSlot
	}
	if slot == 0 {
		return 4
	}
	return 4 + l.sMeta
}

// BlockOffset returns the byte offset of block n's slot satisfying
// wantActive, given meta's backup-version table. bitN(meta, n) == true
// means slot 0 is the currently-active slot for block n.
func (l Layout) BlockOffset(m fileMeta, n int, wantActive bool) int64 {
	base := int64(4) + 2*l.sMeta
	slot := int64(1)
	if bitN(m.info.backupVersionTable, n) == wantActive {
		slot = 0
	}
	return base + (2*int64(n)+slot)*l.sBlock
}

// bitN reads bit n of table. true means slot 0 is the active slot
// for block n.
func bitN(table []byte, n int) bool {
	byteIdx, bitIdx := n/8, n%8
	if byteIdx >= len(table) {
		return false
	}
	return table[byteIdx]&(1<<uint(bitIdx)) != 0
}

// toggleBitN flips bit n of table in place, growing it if necessary.
func toggleBitN(table []byte, n int) []byte {
	byteIdx, bitIdx := n/8, n%8
	if byteIdx >= len(table) {
		grown := make([]byte, byteIdx+1)
		copy(grown, table)
		table = grown
	}
	table[byteIdx] ^= 1 << uint(bitIdx)
	return table
}
