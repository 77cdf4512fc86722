package optimizer

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash"
	"github.com/vmihailenco/msgpack/v5"
)

// BlobStore persists encoded responses by key. Implemented by resultcache.Repository.
type BlobStore interface {
	GetIfFresh(ctx context.Context, key string) ([]byte, error)
	Store(ctx context.Context, key, mode, solveID string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Fingerprint hashes the canonical form of a validated request: mode, typed parameters,
// budget, stake filter and the normalised candidates with their exact multipliers.
func (in *solveInput) Fingerprint() string {
	d := xxhash.New()
	var buf [8]byte
	writeString := func(s string) {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(s)))
		_, _ = d.Write(buf[:])
		_, _ = d.Write([]byte(s))
	}
	writeUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}

	writeString(string(in.mode))
	writeString(fmt.Sprintf("%#v", in.params))
	writeUint(uint64(in.budget))
	writeUint(uint64(in.filter.Min))
	writeUint(uint64(in.filter.Max))
	writeUint(uint64(len(in.candidates)))
	for _, c := range in.candidates {
		writeString(c.Name)
		writeUint(math.Float64bits(c.P))
		writeString(c.Multiplier.String())
	}
	// notes depend only on the raw request, so they are part of the key as well
	for _, note := range in.notes {
		writeString(note)
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

func encodeResponse(resp *Response) ([]byte, error) {
	return msgpack.Marshal(resp)
}

func decodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := msgpack.Unmarshal(data, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
