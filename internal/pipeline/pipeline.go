// Package pipeline wires the four stages end to end: loan extraction
// into a person/day index, IRPF extraction and probing, latest-revision
// ranking, and batched loading into storage.
//
// Concurrency model:
//
//	Loan reader (1) → row numbering (1) → N extract workers → index router
//	IRPF reader (1) → row numbering (1) → N extract workers → shard workers
//	     (join + rank) → winners gathered, enriched, sorted → batched loader
//
// Shards are selected by xxh3 of person_id, so a (person, day) group
// never crosses a shard and the group-by needs no cross-shard movement.
// Rows whose person_id failed to decode all route to shard 0.
//
// Row-level problems (payload decode faults, malformed source lines)
// are counted and aggregated, never fatal. The run only fails on
// unreachable sources, storage errors, or cancellation.
package pipeline

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"irpfetl/internal/config"
	"irpfetl/internal/enrich"
	"irpfetl/internal/extract"
	"irpfetl/internal/join"
	"irpfetl/internal/metrics"
	"irpfetl/internal/model"
	"irpfetl/internal/rank"
	"irpfetl/internal/source"
	"irpfetl/internal/storage"
	"irpfetl/pkg/records"
)

// keep the first few examples of each problem class in the summary
const sampleErrs = 3

// numbered pairs a raw row with its 1-based position in the source
// stream. Positions are stamped before the worker pool so fault reports
// and loan ordering reflect source order, not extraction-completion
// order.
type numbered struct {
	row int
	rec records.Record
}

// counters holds cross-goroutine statistics for one run. All fields are
// updated atomically.
type counters struct {
	irpfRows     atomic.Int64 // raw IRPF rows read
	loanRows     atomic.Int64 // raw loan rows read
	decodeFaults atomic.Int64 // field-level payload decode faults
	readErrors   atomic.Int64 // malformed source lines
	matched      atomic.Int64 // joined rows with a loan
	missed       atomic.Int64 // joined rows with null loan fields
	groups       atomic.Int64 // distinct (person, day) partitions
	inserted     atomic.Int64 // rows flushed to storage
}

// Stats is the exported snapshot of a finished run.
type Stats struct {
	IrpfRows     int64
	LoanRows     int64
	DecodeFaults int64
	ReadErrors   int64
	Matched      int64
	Missed       int64
	Groups       int64
	Inserted     int64
}

// test seams; production values point at the real implementations.
var (
	newSourceFn = source.New
	clockNowFn  = time.Now
)

// Run executes one full pipeline run against an already-open
// repository. It returns the run statistics and the first fatal error.
func Run(ctx context.Context, spec config.Pipeline, repo storage.Repository) (Stats, error) {
	rt := newRuntime(spec)
	log.Printf(
		"runtime: workers=%d shards=%d batch=%d buffer=%d",
		rt.workers, rt.shards, rt.batchSize, rt.bufferSize,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stats counters
	faultAgg := newErrAgg(sampleErrs) // payload decode faults
	readAgg := newErrAgg(sampleErrs)  // malformed source lines

	onFault := func(f extract.Fault) {
		stats.decodeFaults.Add(1)
		faultAgg.add(fmt.Sprintf("row %d: %s: %s", f.Row, f.Field, f.Reason))
	}

	columns := model.OutputColumns()
	withBank := spec.Enrich.Banks != ""
	if withBank {
		columns = append(columns, "bank")
	}

	// Phase 1: index the loan side. The join needs it complete before
	// any IRPF row probes.
	stepStart := clockNowFn()
	indexes, err := buildLoanIndexes(ctx, spec, rt, &stats, onFault, readAgg)
	metrics.RecordStep(spec.Job, "index_loans", err, clockNowFn().Sub(stepStart))
	if err != nil {
		return stats.snapshot(), fmt.Errorf("loan index: %w", err)
	}
	indexed := 0
	for _, ix := range indexes {
		indexed += ix.Len()
	}
	log.Printf("loan index: rows=%d indexed=%d shards=%d", stats.loanRows.Load(), indexed, len(indexes))

	// Phase 2: stream IRPF rows through join and rank, sharded.
	stepStart = clockNowFn()
	accs, err := joinAndRank(ctx, spec, rt, indexes, &stats, onFault, readAgg)
	metrics.RecordStep(spec.Job, "join_rank", err, clockNowFn().Sub(stepStart))
	if err != nil {
		return stats.snapshot(), fmt.Errorf("join: %w", err)
	}

	// Phase 3: gather winners, enrich, load.
	stepStart = clockNowFn()
	err = loadWinners(ctx, spec, rt, columns, accs, repo, &stats)
	metrics.RecordStep(spec.Job, "load", err, clockNowFn().Sub(stepStart))
	if err != nil {
		return stats.snapshot(), err
	}

	logSummaries(faultAgg, readAgg)
	s := stats.snapshot()
	log.Printf(
		"done: irpf_rows=%d loan_rows=%d decode_faults=%d read_errors=%d matched=%d missed=%d groups=%d inserted=%d",
		s.IrpfRows, s.LoanRows, s.DecodeFaults, s.ReadErrors, s.Matched, s.Missed, s.Groups, s.Inserted,
	)
	recordRowMetrics(spec.Job, s)

	return s, nil
}

// buildLoanIndexes reads and extracts every loan row, routing each into
// its shard's index.
func buildLoanIndexes(
	ctx context.Context,
	spec config.Pipeline,
	rt runtimeConfig,
	stats *counters,
	onFault func(extract.Fault),
	readAgg *errAgg,
) ([]*join.Index, error) {
	src, err := newSourceFn(spec.Loans)
	if err != nil {
		return nil, err
	}

	indexes := make([]*join.Index, rt.shards)
	for i := range indexes {
		indexes[i] = join.NewIndex()
	}

	recCh := make(chan records.Record, rt.bufferSize)
	rawCh := make(chan numbered, rt.bufferSize)
	loanCh := make(chan model.LoanRecord, rt.bufferSize)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(recCh)
		return src.Read(ctx, recCh, func(row int, err error) {
			stats.readErrors.Add(1)
			readAgg.add(fmt.Sprintf("loans row %d: %v", row, err))
		})
	})

	g.Go(func() error {
		defer close(rawCh)
		return stampRows(ctx, recCh, rawCh)
	})

	var wgExtract sync.WaitGroup
	ex := extract.LoanExtractor{OnFault: onFault}
	for i := 0; i < rt.workers; i++ {
		wgExtract.Add(1)
		g.Go(func() error {
			defer wgExtract.Done()
			for nb := range rawCh {
				stats.loanRows.Add(1)
				loan := ex.Extract(nb.row, nb.rec)
				select {
				case loanCh <- loan:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wgExtract.Wait()
		close(loanCh)
	}()

	// Single router; Index.Add is cheap next to payload decoding.
	g.Go(func() error {
		for loan := range loanCh {
			indexes[shardOf(loan.PersonID, rt.shards)].Add(loan)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// Workers race into the router, so buckets arrive shuffled; sealing
	// restores loan source order before any probe sees them.
	for _, ix := range indexes {
		ix.Seal()
	}
	return indexes, nil
}

// stampRows numbers raw rows 1..n in source order and forwards them to
// the extract workers.
func stampRows(ctx context.Context, in <-chan records.Record, out chan<- numbered) error {
	n := 0
	for rec := range in {
		n++
		select {
		case out <- numbered{row: n, rec: rec}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// joinAndRank streams IRPF rows through extraction, probes the loan
// index of the row's shard, and accumulates group winners per shard.
func joinAndRank(
	ctx context.Context,
	spec config.Pipeline,
	rt runtimeConfig,
	indexes []*join.Index,
	stats *counters,
	onFault func(extract.Fault),
	readAgg *errAgg,
) ([]*rank.Accumulator, error) {
	src, err := newSourceFn(spec.Irpf)
	if err != nil {
		return nil, err
	}

	accs := make([]*rank.Accumulator, rt.shards)
	shardChs := make([]chan model.IrpfRecord, rt.shards)
	for i := range accs {
		accs[i] = rank.NewAccumulator()
		shardChs[i] = make(chan model.IrpfRecord, rt.bufferSize)
	}

	recCh := make(chan records.Record, rt.bufferSize)
	rawCh := make(chan numbered, rt.bufferSize)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(recCh)
		return src.Read(ctx, recCh, func(row int, err error) {
			stats.readErrors.Add(1)
			readAgg.add(fmt.Sprintf("irpf row %d: %v", row, err))
		})
	})

	g.Go(func() error {
		defer close(rawCh)
		return stampRows(ctx, recCh, rawCh)
	})

	var wgExtract sync.WaitGroup
	ex := extract.IrpfExtractor{OnFault: onFault}
	for i := 0; i < rt.workers; i++ {
		wgExtract.Add(1)
		g.Go(func() error {
			defer wgExtract.Done()
			for nb := range rawCh {
				stats.irpfRows.Add(1)
				irpf := ex.Extract(nb.row, nb.rec)
				sh := shardOf(irpf.PersonID, rt.shards)
				select {
				case shardChs[sh] <- irpf:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wgExtract.Wait()
		for _, ch := range shardChs {
			close(ch)
		}
	}()

	// One worker per shard owns that shard's index and accumulator, so
	// neither needs locking.
	for i := 0; i < rt.shards; i++ {
		sh := i
		g.Go(func() error {
			for irpf := range shardChs[sh] {
				for _, jr := range indexes[sh].Probe(irpf) {
					if jr.LoanID != nil {
						stats.matched.Add(1)
					} else {
						stats.missed.Add(1)
					}
					accs[sh].Add(jr)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return accs, nil
}

// loadWinners gathers per-shard winners, applies optional enrichment,
// restores a deterministic global order, and batches rows into storage.
func loadWinners(
	ctx context.Context,
	spec config.Pipeline,
	rt runtimeConfig,
	columns []string,
	accs []*rank.Accumulator,
	repo storage.Repository,
	stats *counters,
) error {
	var winners []model.OutputRecord
	for _, a := range accs {
		winners = append(winners, a.Winners()...)
		stats.groups.Add(int64(a.Groups()))
	}

	// Per-shard slices are already ordered; a global sort restores one
	// reproducible output order across shard counts.
	sort.Slice(winners, func(i, j int) bool {
		di, dj := model.Day(winners[i].TimeStamp), model.Day(winners[j].TimeStamp)
		if di != dj {
			return di < dj
		}
		pi, pj := winners[i].PersonID, winners[j].PersonID
		switch {
		case pi == nil && pj == nil:
			return winners[i].IrpfID < winners[j].IrpfID
		case pi == nil:
			return false
		case pj == nil:
			return true
		case *pi != *pj:
			return *pi < *pj
		}
		return winners[i].IrpfID < winners[j].IrpfID
	})

	withBank := spec.Enrich.Banks != ""
	if withBank {
		dir, err := enrich.LoadBankDirectory(spec.Enrich.Banks, spec.Enrich.Options)
		if err != nil {
			return err
		}
		log.Printf("bank directory: entries=%d", dir.Len())
		dir.Apply(winners)
	}

	if spec.Storage.DB.AutoCreateTable {
		if err := repo.EnsureTable(ctx, columns); err != nil {
			return fmt.Errorf("apply DDL: %w", err)
		}
	}

	log.Printf("output: table=%s columns=%v rows=%d", spec.Storage.DB.Table, columns, len(winners))

	rowCh := make(chan []any, rt.bufferSize)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(rowCh)
		for _, w := range winners {
			row := w.Row()
			if withBank {
				if w.Bank != nil {
					row = append(row, *w.Bank)
				} else {
					row = append(row, nil)
				}
			}
			select {
			case rowCh <- row:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		n, err := storage.LoadBatches(ctx, columns, rowCh, rt.batchSize, repo.CopyFrom)
		stats.inserted.Add(n)
		if n > 0 {
			metrics.RecordBatches(spec.Job, (n+int64(rt.batchSize)-1)/int64(rt.batchSize))
		}
		if err != nil {
			return fmt.Errorf("load: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// shardOf routes a person to a shard. Undecodable persons all land in
// shard 0; they only ever join-miss, so the skew is harmless.
func shardOf(person *int64, shards int) int {
	if person == nil || shards <= 1 {
		return 0
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(*person))
	return int(xxh3.Hash(b[:]) % uint64(shards))
}

func (c *counters) snapshot() Stats {
	return Stats{
		IrpfRows:     c.irpfRows.Load(),
		LoanRows:     c.loanRows.Load(),
		DecodeFaults: c.decodeFaults.Load(),
		ReadErrors:   c.readErrors.Load(),
		Matched:      c.matched.Load(),
		Missed:       c.missed.Load(),
		Groups:       c.groups.Load(),
		Inserted:     c.inserted.Load(),
	}
}

func recordRowMetrics(job string, s Stats) {
	metrics.RecordRow(job, "irpf_rows", s.IrpfRows)
	metrics.RecordRow(job, "loan_rows", s.LoanRows)
	metrics.RecordRow(job, "decode_faults", s.DecodeFaults)
	metrics.RecordRow(job, "join_misses", s.Missed)
	metrics.RecordRow(job, "groups", s.Groups)
	metrics.RecordRow(job, "inserted", s.Inserted)
}
