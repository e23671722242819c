package scan

import (
	"regexp"
	"strings"
)

var (
	detectorRe = regexp.MustCompile(`Detector Type:\s*(.*)`)
	pathRe     = regexp.MustCompile(`Path:\s*(.*)`)
	lineRe     = regexp.MustCompile(`Line Number:\s*(\d+)`)
	rawRe      = regexp.MustCompile(`Raw result:\s*(.*)`)
)

// Match is one detector finding before repository context is attached.
type Match struct {
	Detector string
	File     string
	Line     string
	Raw      string
}

// Parser reassembles matches from trufflehog's field-per-line output.
//
// A "Raw result" line closes a record using the detector, path and line
// number seen so far. Those three fields are not reset afterwards: a
// block that omits one of them inherits the previous block's value.
type Parser struct {
	detector string
	file     string
	line     string
}

// Feed consumes one output line and reports a match when the line closes
// a record with a non-empty raw result.
func (p *Parser) Feed(line string) (Match, bool) {
	line = strings.TrimSpace(line)

	if m := detectorRe.FindStringSubmatch(line); m != nil {
		p.detector = strings.TrimSpace(m[1])
	}
	if m := pathRe.FindStringSubmatch(line); m != nil {
		p.file = strings.TrimSpace(m[1])
	}
	if m := lineRe.FindStringSubmatch(line); m != nil {
		p.line = strings.TrimSpace(m[1])
	}

	m := rawRe.FindStringSubmatch(line)
	if m == nil {
		return Match{}, false
	}
	raw := strings.TrimSpace(m[1])
	if raw == "" {
		return Match{}, false
	}
	return Match{Detector: p.detector, File: p.file, Line: p.line, Raw: raw}, true
}

// ParseAll runs a fresh Parser over the whole output. Lines have no
// length limit.
func ParseAll(output string) []Match {
	var (
		p       Parser
		matches []Match
	)
	for _, line := range strings.Split(output, "\n") {
		if m, ok := p.Feed(strings.TrimSuffix(line, "\r")); ok {
			matches = append(matches, m)
		}
	}
	return matches
}
