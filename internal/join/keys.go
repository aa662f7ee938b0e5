// Package join resolves the join key between two aligned row sets and
// performs the full outer join on the composite key.
package join

import (
	"finrecon/internal/colmatch"
)

// KeyReason names the rule that produced the key columns.
type KeyReason string

const (
	ReasonCenterReport KeyReason = "center_report_name"
	ReasonExact        KeyReason = "exact_columns"
	ReasonPositional   KeyReason = "positional"
)

type Keys struct {
	Left       []string  `json:"left"`
	Right      []string  `json:"right"`
	Positional bool      `json:"positional,omitempty"`
	Reason     KeyReason `json:"reason"`
}

// Contains reports whether a left column participates in the key.
func (k Keys) Contains(left string) bool {
	for _, c := range k.Left {
		if c == left {
			return true
		}
	}
	return false
}

// ResolveKeys picks the join key from a column mapping. It prefers the
// center/report-name pair among exact and fuzzy pairs, then every exact pair,
// then row position when the mapping itself was positional. ok is false when
// no key can be identified.
func ResolveKeys(m colmatch.Mapping) (Keys, bool) {
	var center, report *colmatch.Pair
	for i := range m.Pairs {
		if m.Pairs[i].Method == colmatch.MethodPositional {
			continue
		}
		switch colmatch.CompactName(m.Pairs[i].Left) {
		case "center":
			if center == nil {
				center = &m.Pairs[i]
			}
		case "careportname":
			if report == nil {
				report = &m.Pairs[i]
			}
		}
	}
	if center != nil && report != nil {
		return Keys{
			Left:   []string{center.Left, report.Left},
			Right:  []string{center.Right, report.Right},
			Reason: ReasonCenterReport,
		}, true
	}

	var k Keys
	for _, p := range m.Pairs {
		if p.Score == 1.0 {
			k.Left = append(k.Left, p.Left)
			k.Right = append(k.Right, p.Right)
		}
	}
	if len(k.Left) > 0 {
		k.Reason = ReasonExact
		return k, true
	}

	if m.Positional {
		return Keys{Positional: true, Reason: ReasonPositional}, true
	}
	return Keys{}, false
}
