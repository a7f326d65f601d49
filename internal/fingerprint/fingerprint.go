// Package fingerprint maps file paths to content checksums and answers
// whether a file changed since it was last observed.
//
// Checksums are 32-bit, non-cryptographic and computed over the whole file.
// Adler-32 is the default; CRC-32C and a folded xxHash64 are available for
// trees where Adler-32's weak distribution on short files matters.
package fingerprint

import (
	"fmt"
	"hash"
	"hash/adler32"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Algorithm names a checksum function.
type Algorithm string

const (
	Adler32 Algorithm = "adler32"
	CRC32C  Algorithm = "crc32c"
	XXHash  Algorithm = "xxhash"
)

// Algorithms lists every supported algorithm in display order.
var Algorithms = []Algorithm{Adler32, CRC32C, XXHash}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Hasher computes a checksum over everything read from r.
type Hasher func(r io.Reader) (uint32, error)

// NewHasher returns the Hasher for alg.
func NewHasher(alg Algorithm) (Hasher, error) {
	switch alg {
	case Adler32, "":
		return sum32(func() hash.Hash32 { return adler32.New() }), nil
	case CRC32C:
		return sum32(func() hash.Hash32 { return crc32.New(castagnoli) }), nil
	case XXHash:
		return sumXXHash, nil
	default:
		return nil, fmt.Errorf("unknown checksum algorithm %q", alg)
	}
}

func sum32(newHash func() hash.Hash32) Hasher {
	return func(r io.Reader) (uint32, error) {
		h := newHash()
		if _, err := io.Copy(h, r); err != nil {
			return 0, err
		}
		return h.Sum32(), nil
	}
}

// sumXXHash folds the 64-bit digest into 32 bits.
func sumXXHash(r io.Reader) (uint32, error) {
	h := xxhash.New()
	if _, err := io.Copy(h, r); err != nil {
		return 0, err
	}
	sum := h.Sum64()
	return uint32(sum>>32) ^ uint32(sum), nil
}

// Checksum returns the default (Adler-32) checksum of data.
func Checksum(data []byte) uint32 {
	return adler32.Checksum(data)
}

// FileRecord is the fingerprint of a single file.
type FileRecord struct {
	Path     string
	Checksum uint32
}

// Store holds the last observed checksum for every tracked path. Entries
// are only ever added or overwritten; the store is never cleared.
type Store struct {
	hasher Hasher
	mu     sync.RWMutex
	hashes map[string]uint32
}

// NewStore creates an empty store using hasher. A nil hasher means Adler-32.
func NewStore(hasher Hasher) *Store {
	if hasher == nil {
		hasher, _ = NewHasher(Adler32)
	}

	return &Store{
		hasher: hasher,
		hashes: make(map[string]uint32),
	}
}

// HashFile reads path in full and returns its record.
func (s *Store) HashFile(path string) (FileRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileRecord{}, err
	}
	defer func() { _ = f.Close() }()

	sum, err := s.hasher(f)
	if err != nil {
		return FileRecord{}, fmt.Errorf("failed to hash %s: %w", path, err)
	}

	return FileRecord{Path: path, Checksum: sum}, nil
}

// Record stores rec without reporting whether it changed. Used for the
// baseline pass.
func (s *Store) Record(rec FileRecord) {
	s.mu.Lock()
	s.hashes[rec.Path] = rec.Checksum
	s.mu.Unlock()
}

// Observe stores rec and reports whether it differs from what was stored
// before. A path seen for the first time counts as changed. The stored value
// is always replaced, so the next comparison is against this observation.
func (s *Store) Observe(rec FileRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.hashes[rec.Path]
	s.hashes[rec.Path] = rec.Checksum

	return !ok || prev != rec.Checksum
}

// Lookup returns the stored checksum for path.
func (s *Store) Lookup(path string) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum, ok := s.hashes[path]
	return sum, ok
}

// Len returns the number of tracked files.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.hashes)
}
