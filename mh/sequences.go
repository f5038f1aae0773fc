package mh

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
)

// DefaultSequencesFile is the per-folder sequences file name.
const DefaultSequencesFile = ".mh_sequences"

// Sequence names that carry message flags.
const (
	seqUnseen  = "unseen"
	seqFlagged = "flagged"
	seqReplied = "replied"
)

// sequences maps a sequence name to its sorted message numbers.
type sequences struct {
	names []string // in file order
	nums  map[string][]int
}

func newSequences() *sequences {
	return &sequences{nums: make(map[string][]int)}
}

// readSequences parses a sequences file. A missing file is empty.
// Malformed entries are skipped and ranges are cut at highest, the
// largest message number in the folder.
func readSequences(path string, highest int) (*sequences, error) {
	seqs := newSequences()
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return seqs, nil
		}
		return nil, err
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		name, ranges, ok := strings.Cut(sc.Text(), ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		seqs.set(name, parseRanges(ranges, highest))
	}
	return seqs, sc.Err()
}

// parseRanges reads "1-3 5 7-9", dropping numbers above highest.
func parseRanges(s string, highest int) []int {
	var out []int
	for _, part := range strings.Fields(s) {
		lo, hi, isRange := strings.Cut(part, "-")
		a, err := strconv.Atoi(lo)
		if err != nil || a <= 0 || a > highest {
			continue
		}
		b := a
		if isRange {
			if b, err = strconv.Atoi(hi); err != nil || b < a {
				continue
			}
		}
		for n := a; n <= min(b, highest); n++ {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// formatRanges writes sorted numbers as "1-3 5 7-9".
func formatRanges(nums []int) string {
	var parts []string
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		if i == j {
			parts = append(parts, strconv.Itoa(nums[i]))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", nums[i], nums[j]))
		}
		i = j + 1
	}
	return strings.Join(parts, " ")
}

func (s *sequences) set(name string, nums []int) {
	if _, ok := s.nums[name]; !ok {
		s.names = append(s.names, name)
	}
	s.nums[name] = nums
}

// add inserts n into the named sequence, keeping it sorted.
func (s *sequences) add(name string, n int) {
	nums := s.nums[name]
	i, found := slices.BinarySearch(nums, n)
	if found {
		return
	}
	s.set(name, slices.Insert(nums, i, n))
}

func (s *sequences) has(name string, n int) bool {
	_, found := slices.BinarySearch(s.nums[name], n)
	return found
}

// remap renumbers every sequence through mapping; numbers without a new
// number are dropped.
func (s *sequences) remap(mapping map[int]int) {
	for _, name := range s.names {
		var out []int
		for _, n := range s.nums[name] {
			if m, ok := mapping[n]; ok {
				out = append(out, m)
			}
		}
		slices.Sort(out)
		s.nums[name] = out
	}
}

// bytes formats the sequences file. Empty sequences are left out.
func (s *sequences) bytes() []byte {
	var buf bytes.Buffer
	for _, name := range s.names {
		if nums := s.nums[name]; len(nums) > 0 {
			fmt.Fprintf(&buf, "%s: %s\n", name, formatRanges(nums))
		}
	}
	return buf.Bytes()
}
