package service

import (
	"bytes"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	cache "github.com/patrickmn/go-cache"
	"github.com/yourusername/race-escrow/internal/models"
)

// decodedPrefix namespaces audit decodes, which are validated by account data
// rather than invalidated by writes.
const decodedPrefix = "decoded:"

// decodedRace is a race decoded from exactly these account bytes
type decodedRace struct {
	data []byte
	race *models.Race
}

// RaceCache holds decoded race records keyed by race address. Callers get
// copies, so a cached record is never mutated.
//
// Every Invalidate bumps the address generation. A reader takes the generation
// before loading and fills with SetIfUnchanged, so a load that overlapped a
// write is never cached.
type RaceCache struct {
	cache       *cache.Cache
	ttl         time.Duration
	maxSize     int
	mu          sync.Mutex
	generations map[solana.PublicKey]uint64
	hitCount    uint64
	missCount   uint64
}

// NewRaceCache creates a new race cache
func NewRaceCache(ttl time.Duration, maxSize int) *RaceCache {
	return &RaceCache{
		cache:       cache.New(ttl, ttl*2),
		ttl:         ttl,
		maxSize:     maxSize,
		generations: make(map[solana.PublicKey]uint64),
	}
}

// Get retrieves a cached race
func (rc *RaceCache) Get(address solana.PublicKey) *models.Race {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if item, found := rc.cache.Get(address.String()); found {
		if race, ok := item.(*models.Race); ok {
			rc.hitCount++
			return race.Clone()
		}
	}
	rc.missCount++
	return nil
}

// Generation returns the write generation of address
func (rc *RaceCache) Generation(address solana.PublicKey) uint64 {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.generations[address]
}

// Set stores a race in the cache unconditionally
func (rc *RaceCache) Set(address solana.PublicKey, race *models.Race) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.store(address.String(), race.Clone())
}

// SetIfUnchanged stores race only if address has not been invalidated since
// generation gen was read. It reports whether the race was stored.
func (rc *RaceCache) SetIfUnchanged(address solana.PublicKey, gen uint64, race *models.Race) bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.generations[address] != gen {
		return false
	}
	return rc.store(address.String(), race.Clone())
}

// Decoded returns the race previously decoded from data at address. It misses
// whenever the account data has changed since.
func (rc *RaceCache) Decoded(address solana.PublicKey, data []byte) *models.Race {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if item, found := rc.cache.Get(decodedPrefix + address.String()); found {
		if d, ok := item.(*decodedRace); ok && bytes.Equal(d.data, data) {
			rc.hitCount++
			return d.race.Clone()
		}
	}
	rc.missCount++
	return nil
}

// SetDecoded remembers that data at address decodes to race
func (rc *RaceCache) SetDecoded(address solana.PublicKey, data []byte, race *models.Race) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.store(decodedPrefix+address.String(), &decodedRace{data: bytes.Clone(data), race: race.Clone()})
}

// store must be called with mu held
func (rc *RaceCache) store(key string, value interface{}) bool {
	if _, exists := rc.cache.Get(key); !exists && rc.cache.ItemCount() >= rc.maxSize {
		rc.cache.DeleteExpired()
		if rc.cache.ItemCount() >= rc.maxSize {
			return false
		}
	}
	rc.cache.Set(key, value, rc.ttl)
	return true
}

// Invalidate drops the cached race at address and bumps its generation
func (rc *RaceCache) Invalidate(address solana.PublicKey) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.generations[address]++
	rc.cache.Delete(address.String())
}

// Clear flushes the entire cache
func (rc *RaceCache) Clear() {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.cache.Flush()
	rc.hitCount = 0
	rc.missCount = 0
}

// Stats returns cache statistics
func (rc *RaceCache) Stats() (hits, misses uint64, ratio float64) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	hits = rc.hitCount
	misses = rc.missCount
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (rc *RaceCache) ItemCount() int {
	return rc.cache.ItemCount()
}
