package pipeline

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

// errAgg aggregates row-level problems: it keeps the first few messages
// verbatim plus a count per distinct message, so a million bad rows cost
// a handful of summary lines instead of a million log lines.
type errAgg struct {
	mu      sync.Mutex
	limit   int
	count   int
	first   []string
	buckets map[string]int
}

func newErrAgg(limit int) *errAgg {
	return &errAgg{limit: limit, buckets: make(map[string]int)}
}

func (a *errAgg) add(msg string) {
	a.mu.Lock()
	a.buckets[msg]++
	if a.count < a.limit {
		a.first = append(a.first, msg)
	}
	a.count++
	a.mu.Unlock()
}

func (a *errAgg) total() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

func (a *errAgg) samples() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.first...)
}

// top returns the n most frequent messages as "<count>x <msg>" lines,
// most frequent first. Equal counts order by message so output is
// stable.
func (a *errAgg) top(n int) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	type bucket struct {
		msg   string
		count int
	}
	bs := make([]bucket, 0, len(a.buckets))
	for m, c := range a.buckets {
		bs = append(bs, bucket{msg: m, count: c})
	}
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].count != bs[j].count {
			return bs[i].count > bs[j].count
		}
		return bs[i].msg < bs[j].msg
	})
	if len(bs) > n {
		bs = bs[:n]
	}

	out := make([]string, len(bs))
	for i, b := range bs {
		out[i] = fmt.Sprintf("%dx %s", b.count, b.msg)
	}
	return out
}

// logSummaries prints aggregated decode-fault and read-error summaries
// at the end of a run: the total, the earliest samples, and the most
// frequent messages.
func logSummaries(faultAgg, readAgg *errAgg) {
	logSummary("decode faults", faultAgg)
	logSummary("read errors", readAgg)
}

func logSummary(label string, agg *errAgg) {
	n := agg.total()
	if n == 0 {
		return
	}
	log.Printf("%s: %d total; first %d:", label, n, len(agg.samples()))
	for _, s := range agg.samples() {
		log.Printf("  %s", s)
	}
	log.Printf("%s: most frequent:", label)
	for _, s := range agg.top(sampleErrs) {
		log.Printf("  %s", s)
	}
}
