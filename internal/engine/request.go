package engine

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"io"
	"sort"
	"strconv"
)

// Request is a structurally valid calculation request. It is produced only
// by Schema.Parse and has no mutating methods.
type Request struct {
	order   []string
	numbers map[string]float64
	enums   map[string]string
}

// Number returns a numeric field, or 0 when it is absent.
func (r Request) Number(name string) float64 {
	return r.numbers[name]
}

// Int returns an integer field.
func (r Request) Int(name string) int {
	return int(r.numbers[name])
}

// Optional returns an optional numeric field and whether it was supplied.
func (r Request) Optional(name string) (float64, bool) {
	v, ok := r.numbers[name]
	return v, ok
}

// Enum returns an enumeration field.
func (r Request) Enum(name string) string {
	return r.enums[name]
}

// Has reports whether the field carries a value after defaulting.
func (r Request) Has(name string) bool {
	if _, ok := r.numbers[name]; ok {
		return true
	}
	_, ok := r.enums[name]
	return ok
}

// Values returns a copy of every field value after defaulting.
func (r Request) Values() map[string]any {
	out := make(map[string]any, len(r.order))
	for name, v := range r.numbers {
		out[name] = v
	}
	for name, v := range r.enums {
		out[name] = v
	}
	return out
}

// Normalized returns "name=value" pairs sorted by name with numbers in
// their shortest round-trip form.
func (r Request) Normalized() []string {
	pairs := make([]string, 0, len(r.order))
	for name, v := range r.numbers {
		pairs = append(pairs, name+"="+strconv.FormatFloat(v, 'g', -1, 64))
	}
	for name, v := range r.enums {
		pairs = append(pairs, name+"="+v)
	}
	sort.Strings(pairs)
	return pairs
}

// Fingerprint is the sha256 of the calculator id and the normalized request.
// Every component is length-prefixed so that no two distinct requests can
// concatenate to the same byte stream.
func Fingerprint(calculatorID string, r Request) string {
	h := sha256.New()
	writeField(h, calculatorID)
	for _, p := range r.Normalized() {
		writeField(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	w.Write(n[:])
	w.Write([]byte(s))
}
