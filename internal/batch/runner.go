// Package batch runs nonce extraction and signature verification over many
// captured records using a pool of parallel workers.
package batch

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tpmscan/tpm-nonce/pkg/tpmnonce"
)

// Outcome holds the per-record analysis result. Nonce is empty when no
// private key accompanied the record. Err is set when the record could not
// be analyzed at all, in which case the counters ignore it.
type Outcome struct {
	Record  *tpmnonce.Record
	Nonce   string
	Verdict tpmnonce.Verdict
	Err     error
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	Processed     int64
	Extracted     int64
	Valid         int64
	Invalid       int64
	Indeterminate int64
	Failed        int64
}

// Options tunes a run. Zero workers auto-detects based on CPU cores.
type Options struct {
	Workers int
	Logger  zerolog.Logger
}

// Run analyzes every record: verifies the signature, and extracts the nonce
// when a private key is present. Records that fail are logged and skipped,
// never aborting the run. Outcomes keep the input order.
func Run(ctx context.Context, records []*tpmnonce.Record, opts Options) ([]Outcome, *Summary) {
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if numWorkers > len(records) && len(records) > 0 {
		numWorkers = len(records)
	}
	log := opts.Logger

	outcomes := make([]Outcome, len(records))
	summary := &Summary{}

	workChan := make(chan int, numWorkers*10)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case idx, ok := <-workChan:
					if !ok {
						return
					}
					outcomes[idx] = analyze(records[idx], summary, log)
				}
			}
		}()
	}

	// Feed indexes so outcomes can be written in place without locking.
	go func() {
		defer close(workChan)
		for i := range records {
			select {
			case <-ctx.Done():
				return
			case workChan <- i:
			}
		}
	}()

	wg.Wait()
	return outcomes, summary
}

func analyze(rec *tpmnonce.Record, summary *Summary, log zerolog.Logger) Outcome {
	out := Outcome{Record: rec}

	verdict, err := rec.Verify()
	if err != nil {
		atomic.AddInt64(&summary.Failed, 1)
		log.Warn().Err(err).
			Str("curve", rec.Curve).
			Str("algorithm", rec.Algorithm.String()).
			Msg("skipping unverifiable record")
		out.Err = err
		return out
	}
	out.Verdict = verdict

	atomic.AddInt64(&summary.Processed, 1)
	switch verdict {
	case tpmnonce.VerdictValid:
		atomic.AddInt64(&summary.Valid, 1)
	case tpmnonce.VerdictInvalid:
		atomic.AddInt64(&summary.Invalid, 1)
	case tpmnonce.VerdictIndeterminate:
		atomic.AddInt64(&summary.Indeterminate, 1)
		log.Warn().
			Str("curve", rec.Curve).
			Str("algorithm", rec.Algorithm.String()).
			Msg("verification indeterminate, no commitment point captured")
	}

	if rec.Private != nil {
		nonce, err := rec.ExtractNonce()
		if err != nil {
			atomic.AddInt64(&summary.Failed, 1)
			log.Warn().Err(err).
				Str("curve", rec.Curve).
				Str("algorithm", rec.Algorithm.String()).
				Msg("nonce extraction failed")
			out.Err = err
			return out
		}
		out.Nonce = nonce
		atomic.AddInt64(&summary.Extracted, 1)
	}

	return out
}
