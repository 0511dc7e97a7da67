package leasing

import (
	"fmt"
	"time"
)

// Sequence names for the billing document counters.
const (
	SequenceInvoice    = "lease_invoice"
	SequenceCreditNote = "lease_credit_note"
)

// DocumentSequence is a named monotonic counter backing document numbering.
// Numbers are strictly increasing and never reused; a number consumed by a
// transaction that later aborts simply leaves a gap.
type DocumentSequence struct {
	Name      string
	Prefix    string
	NextValue int64
	Padding   int
	UpdatedAt time.Time
}

// Format renders a counter value as a document number, e.g. INV-LE-0042.
func (s *DocumentSequence) Format(value int64) string {
	return fmt.Sprintf("%s%0*d", s.Prefix, s.Padding, value)
}

// Advance consumes and returns the next formatted number.
func (s *DocumentSequence) Advance() string {
	number := s.Format(s.NextValue)
	s.NextValue++
	s.UpdatedAt = time.Now()
	return number
}

// Peek returns the number the next Advance would produce. Advisory only;
// another caller may consume it first.
func (s *DocumentSequence) Peek() string {
	return s.Format(s.NextValue)
}
