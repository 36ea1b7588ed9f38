package testutil

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/taggo/inverted"
)

// Record is one document with its tag set, in ingestion format order.
type Record struct {
	Doc  string
	Tags []string
}

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Zipf returns a Zipfian-distributed value in [0, n). Tag popularity in
// real corpora follows a power law; s controls the skew (1.0 is
// standard Zipf, higher values concentrate more mass on the head).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// Records generates num records over a tag universe of tagCount names.
// Each record carries between one and maxTags distinct tags, drawn with
// Zipfian popularity so a few tags dominate, like real tag data.
// Duplicate document names never occur.
func (r *RNG) Records(num, tagCount, maxTags int, s float64) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	records := make([]Record, num)
	for i := range num {
		n := 1 + r.rand.Intn(maxTags)
		seen := make(map[int]struct{}, n)
		tags := make([]string, 0, n)
		for len(tags) < n {
			t := r.zipfLocked(tagCount, s)
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			tags = append(tags, fmt.Sprintf("tag-%03d", t))
		}
		records[i] = Record{
			Doc:  fmt.Sprintf("doc-%05d", i),
			Tags: tags,
		}
	}

	return records
}

// Lines renders records in the line-oriented ingestion format, one
// record per line with the given field delimiter.
func Lines(records []Record, delimiter byte) []byte {
	var buf bytes.Buffer
	for _, rec := range records {
		buf.WriteString(rec.Doc)
		for _, tag := range rec.Tags {
			buf.WriteByte(delimiter)
			buf.WriteString(tag)
		}
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// ExactQuery evaluates a query naively over the records, as ground
// truth for the bitmap engine. Later records replace earlier tag sets
// of the same document; results come back in first-ingestion order.
func ExactQuery(records []Record, tags []string, op inverted.Op) []string {
	if len(tags) == 0 {
		return nil
	}

	order, sets := currentSets(records)

	member := func(doc, tag string) bool {
		_, ok := sets[doc][tag]
		return ok
	}

	var out []string
	for _, doc := range order {
		var match bool
		switch op {
		case inverted.OpAnd:
			match = true
			for _, tag := range tags {
				if !member(doc, tag) {
					match = false
					break
				}
			}
		case inverted.OpOr:
			for _, tag := range tags {
				if member(doc, tag) {
					match = true
					break
				}
			}
		case inverted.OpXor:
			count := 0
			for _, tag := range tags {
				if member(doc, tag) {
					count++
				}
			}
			match = count%2 == 1
		case inverted.OpAndNot:
			match = member(doc, tags[0])
			for _, tag := range tags[1:] {
				if member(doc, tag) {
					match = false
					break
				}
			}
		}
		if match {
			out = append(out, doc)
		}
	}
	return out
}

// ExactTagsFor returns the document's current tag set, honoring replace
// semantics. Duplicate tags within a record count once, keeping first
// occurrence order.
func ExactTagsFor(records []Record, doc string) []string {
	var tags []string
	for _, rec := range records {
		if rec.Doc != doc {
			continue
		}
		tags = tags[:0]
		for _, tag := range rec.Tags {
			var dup bool
			for _, seen := range tags {
				if seen == tag {
					dup = true
					break
				}
			}
			if !dup {
				tags = append(tags, tag)
			}
		}
	}
	return tags
}

// currentSets folds the record stream into per-document tag sets plus
// the first-ingestion document order.
func currentSets(records []Record) ([]string, map[string]map[string]struct{}) {
	var order []string
	sets := make(map[string]map[string]struct{})
	for _, rec := range records {
		if _, ok := sets[rec.Doc]; !ok {
			order = append(order, rec.Doc)
		}
		set := make(map[string]struct{}, len(rec.Tags))
		for _, tag := range rec.Tags {
			set[tag] = struct{}{}
		}
		sets[rec.Doc] = set
	}
	return order, sets
}
