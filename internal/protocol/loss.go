package protocol

import (
	"encoding/binary"
	"slices"
)

// LossRange is an inclusive interval of lost sequence numbers.
type LossRange struct {
	Start SequenceNumber
	End   SequenceNumber
}

// Len returns the number of sequence numbers in the range, or 0 if End < Start.
func (r LossRange) Len() uint64 {
	if r.End < r.Start {
		return 0
	}
	return uint64(r.End-r.Start) + 1
}

func (r LossRange) Contains(s SequenceNumber) bool {
	return s >= r.Start && s <= r.End
}

// NegativeAck reports lost packets as an ordered list of ranges.
//
// On the wire a single loss is one word with the top bit clear. A range is a
// start word with the top bit set followed by an end word, whose own top bit
// must be clear. Ranges with Start == End are always written in the
// single-word form, so a received pair such as 80000005 00000005 decodes to
// {5, 5} and re-encodes as the single word 00000005.
type NegativeAck struct {
	Ranges []LossRange
}

func decodeNegativeAck(b []byte) (ControlPayload, error) {
	if rem := len(b) % 4; rem != 0 {
		return nil, &MalformedPayloadError{Type: ControlTypeNegativeAck, Expected: len(b) - rem, Observed: len(b)}
	}
	nak := &NegativeAck{}
	for i := 0; i < len(b)/4; i++ {
		v := word(b, i)
		start := SequenceNumber(v & sequenceMask)
		if v&familyBit == 0 {
			nak.Ranges = append(nak.Ranges, LossRange{Start: start, End: start})
			continue
		}
		if (i+2)*4 > len(b) {
			// range start without its end word
			return nil, &MalformedPayloadError{Type: ControlTypeNegativeAck, Expected: len(b) + 4, Observed: len(b)}
		}
		i++
		if err := checkSeqWords(ControlTypeNegativeAck, b, i); err != nil {
			return nil, err
		}
		nak.Ranges = append(nak.Ranges, LossRange{Start: start, End: seqWord(b, i)})
	}
	return nak, nil
}

func (*NegativeAck) Type() ControlType { return ControlTypeNegativeAck }

func (n *NegativeAck) Len() int {
	size := 0
	for _, r := range n.Ranges {
		if r.Start == r.End {
			size += 4
		} else {
			size += 8
		}
	}
	return size
}

func (n *NegativeAck) AppendTo(b []byte) []byte {
	for _, r := range n.Ranges {
		if r.Start == r.End {
			b = appendSeq(b, r.Start)
			continue
		}
		b = binary.BigEndian.AppendUint32(b, uint32(r.Start)&sequenceMask|familyBit)
		b = appendSeq(b, r.End)
	}
	return b
}

// Lost returns the total count of sequence numbers covered by the report.
func (n *NegativeAck) Lost() uint64 {
	var total uint64
	for _, r := range n.Ranges {
		total += r.Len()
	}
	return total
}

// Contains reports whether s is listed as lost.
func (n *NegativeAck) Contains(s SequenceNumber) bool {
	for _, r := range n.Ranges {
		if r.Contains(s) {
			return true
		}
	}
	return false
}

// CompressLosses turns a set of lost sequence numbers into the minimal
// ordered list of ranges. Duplicates are ignored. Wrap-around is not
// considered: numbers are ordered by value.
func CompressLosses(seqs []SequenceNumber) []LossRange {
	if len(seqs) == 0 {
		return nil
	}
	sorted := slices.Clone(seqs)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	ranges := []LossRange{{Start: sorted[0], End: sorted[0]}}
	for _, s := range sorted[1:] {
		last := &ranges[len(ranges)-1]
		if s == last.End+1 {
			last.End = s
			continue
		}
		ranges = append(ranges, LossRange{Start: s, End: s})
	}
	return ranges
}
