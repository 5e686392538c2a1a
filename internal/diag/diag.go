// Package diag logs the counter snapshot a SIGUSR1 dumps: capture and
// assembler drop/correction tallies plus per-decoder attempt/success
// counts, grounded on the source's signal-driven diagnostic dump.
package diag

import (
	"github.com/akonshin-labs/rfgateway/internal/capture"
	"github.com/akonshin-labs/rfgateway/internal/decode"
	"github.com/akonshin-labs/rfgateway/internal/rlog"
)

// Dump logs src's and asm's counters and every registered decoder's
// attempt/success tally to log.
func Dump(log *rlog.Logger, src capture.Source, asm *capture.Assembler, decodeRegistry *decode.Registry) {
	stats := src.Stats()
	log.Info("capture: interrupts=%d skipped=%d corrected=%d dropped=%d pool_overflow=%d driver_overflow=%d sequences=%d",
		stats.Interrupts, stats.Skipped, stats.Corrected, stats.Dropped, stats.SequencePoolOverflow, stats.DriverOverflow, stats.Sequences)
	astats := asm.Stats()
	log.Info("assembler: interrupts=%d skipped=%d corrected=%d dropped=%d pool_overflow=%d sequences=%d",
		astats.Interrupts, astats.Skipped, astats.Corrected, astats.Dropped, astats.SequencePoolOverflow, astats.Sequences)
	for _, d := range decodeRegistry.Decoders() {
		log.Info("decoder %s: attempts=%d successes=%d", d.Name(), decodeRegistry.Attempts(d.Name()), decodeRegistry.Successes(d.Name()))
	}
}
