package main

import (
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"mtkflash/internal/daprotocol"
)

// progressBar wraps one mpb.Bar behind a daprotocol.ProgressFunc, the
// same pairing the teacher's processor.go uses for PDF-ingest progress:
// one bar owned by the caller, updated from a per-item callback.
func progressBar(p *mpb.Progress, label string, total uint64) daprotocol.ProgressFunc {
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(label+": "),
			decor.Percentage(decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.AverageETA(decor.ET_STYLE_GO), "done!"),
		),
	)
	var last uint64
	return func(done, total uint64) {
		bar.IncrInt64(int64(done - last))
		last = done
	}
}
