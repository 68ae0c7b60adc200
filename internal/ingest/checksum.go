package ingest

import (
	"encoding/binary"
	"fmt"

	"github.com/minio/highwayhash"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
)

// checksumKey is fixed: checksums are compared across process restarts.
var checksumKey = []byte("aru-kb-chunk-checksum-key-000032")

// Checksum fingerprints the indexed content of a chunk (title, text and
// signature). A chunk re-imported with an unchanged checksum is not rewritten.
func Checksum(c domain.Chunk) string {
	buf := make([]byte, 0, len(c.Title)+len(c.Text)+2+4*len(c.Signature))
	buf = append(buf, c.Title...)
	buf = append(buf, 0x1f)
	buf = append(buf, c.Text...)
	buf = append(buf, 0x1f)
	for _, v := range c.Signature {
		buf = binary.LittleEndian.AppendUint32(buf, v)
	}
	return fmt.Sprintf("%016x", highwayhash.Sum64(buf, checksumKey))
}
