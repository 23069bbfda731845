package lotto

import (
	"encoding/binary"
	"slices"

	"github.com/cespare/xxhash/v2"
)

// Draw is one published draw result.
type Draw struct {
	Round   int    `json:"round" yaml:"round"`
	Date    string `json:"date,omitempty" yaml:"date,omitempty"`
	Numbers []int  `json:"numbers" yaml:"numbers"`
}

// Validate checks that the draw holds drawSize distinct numbers in [1, maxNumber].
func (d Draw) Validate(maxNumber, drawSize int) error {
	if err := validateNumbers(d.Numbers, maxNumber, drawSize); err != nil {
		return err.(*LotteryError).WithMetadata("round", d.Round)
	}
	return nil
}

// Sorted returns a copy of the draw with its numbers in ascending order.
func (d Draw) Sorted() Draw {
	d.Numbers = sortedCopy(d.Numbers)
	return d
}

// HistoricalRecord is the chronological list of past draws, most recent draw last.
type HistoricalRecord []Draw

// Validate validates every draw in the record.
func (h HistoricalRecord) Validate(maxNumber, drawSize int) error {
	for i, d := range h {
		if err := d.Validate(maxNumber, drawSize); err != nil {
			return err.(*LotteryError).WithMetadata("index", i)
		}
	}
	return nil
}

// Window returns the most recent size draws. A size of zero, or one larger than
// the record, returns the whole record.
func (h HistoricalRecord) Window(size int) HistoricalRecord {
	if size <= 0 || size >= len(h) {
		return h
	}
	return h[len(h)-size:]
}

// Append returns a new record with d appended. The receiver is not modified.
func (h HistoricalRecord) Append(d Draw) HistoricalRecord {
	out := make(HistoricalRecord, 0, len(h)+1)
	out = append(out, h...)
	return append(out, d)
}

// HasRound reports whether a draw with the given round number is recorded.
func (h HistoricalRecord) HasRound(round int) bool {
	return slices.ContainsFunc(h, func(d Draw) bool { return d.Round == round })
}

// CheckNext returns ErrDuplicateDraw when d's round is already recorded and
// ErrInvalidDraw when it is older than the latest draw. Appending only newer
// rounds keeps the record in round order for every store.
func (h HistoricalRecord) CheckNext(d Draw) error {
	if h.HasRound(d.Round) {
		return ErrDuplicateDraw.WithDetailsf("round %d", d.Round)
	}
	if last, ok := h.Latest(); ok && d.Round < last.Round {
		return ErrInvalidDraw.WithDetailsf("round %d is older than the latest round %d", d.Round, last.Round)
	}
	return nil
}

// Latest returns the most recent draw.
func (h HistoricalRecord) Latest() (Draw, bool) {
	if len(h) == 0 {
		return Draw{}, false
	}
	return h[len(h)-1], true
}

// Fingerprint hashes the record contents in order. Records with equal draws in the
// same order share a fingerprint; any appended, removed or edited draw changes it.
func (h HistoricalRecord) Fingerprint() uint64 {
	d := xxhash.New()
	var buf [8]byte
	write := func(v int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = d.Write(buf[:])
	}
	write(len(h))
	for _, draw := range h {
		write(draw.Round)
		_, _ = d.WriteString(draw.Date)
		write(len(draw.Numbers))
		for _, n := range draw.Numbers {
			write(n)
		}
	}
	return d.Sum64()
}
