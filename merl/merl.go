// Package merl serializes extension match results in the MERL format (or a
// plain text rendering of the same data) and defines the contract between
// the candidate decomposition stage and the external matching engine.
package merl

import (
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"dbling/graph"
)

const (
	merlNS  = "https://mikemabey.com/schema/merl"
	dfxmlNS = "http://www.forensicswiki.org/wiki/Category:Digital_Forensics_XML"

	// maxCandidateTags bounds how many scored matches are reported per
	// candidate in the XML output.
	maxCandidateTags = 5
)

var log = logrus.StandardLogger()

// Match is one scored match of a candidate graph against a stored centroid.
type Match struct {
	ExtID      string  `xml:"ext_id"`
	Version    string  `xml:"ext_ver"`
	Confidence float64 `xml:"confidence"`
}

// Matcher scores a candidate graph against the corpus of previously
// profiled extensions. The matcher may set the eval attribute on delivered
// candidates; the core never touches them again after handoff.
type Matcher interface {
	Match(candidate *graph.Graph) ([]Match, error)
}

// NullMatcher stands in when no centroid database is wired up. It never
// matches anything.
type NullMatcher struct{}

// Match implements Matcher.
func (NullMatcher) Match(*graph.Graph) ([]Match, error) { return nil, nil }

// CalcConfidence converts a centroid distance and the size of the matched
// centroid family into a confidence score in (0, 1].
func CalcConfidence(distance float64, famSize int, delta float64) float64 {
	return math.Exp(-delta*distance) / float64(famSize)
}

type xmlCandidate struct {
	ExtID      string  `xml:"ext_id"`
	Version    string  `xml:"ext_ver"`
	Confidence float64 `xml:"confidence"`
}

type xmlMatch struct {
	Inode      int64          `xml:"inode"`
	Candidates []xmlCandidate `xml:"candidate"`
}

type xmlSource struct {
	ImageFilename string `xml:"image_filename,omitempty"`
	MountPoint    string `xml:"mount_point,omitempty"`
}

type xmlExecEnv struct {
	OSSysname   string `xml:"os_sysname"`
	Host        string `xml:"host"`
	Arch        string `xml:"arch"`
	CommandLine string `xml:"command_line"`
	UID         string `xml:"uid"`
}

type xmlCreator struct {
	Program   string     `xml:"program"`
	Version   string     `xml:"version"`
	ExecEnv   xmlExecEnv `xml:"execution_environment"`
	StartTime string     `xml:"start_time"`
}

type xmlMerl struct {
	XMLName    xml.Name   `xml:"merl"`
	Xmlns      string     `xml:"xmlns,attr"`
	XmlnsDFXML string     `xml:"xmlns:dfxml,attr"`
	JobID      string     `xml:"job_id,attr"`
	Source     *xmlSource `xml:"source,omitempty"`
	Creator    xmlCreator `xml:"creator"`
	Matches    []xmlMatch `xml:"match"`
}

// Merl aggregates the match results for one forensic job and serializes
// them either as MERL XML or as plain text.
type Merl struct {
	out   io.Writer
	plain bool
	doc   xmlMerl
}

// New returns a report writer emitting to out. Exactly one of imageFilename
// and mountPoint should describe the job's input; empty strings are omitted
// from the report.
func New(out io.Writer, plain bool, imageFilename, mountPoint string) *Merl {
	m := &Merl{
		out:   out,
		plain: plain,
		doc: xmlMerl{
			Xmlns:      merlNS,
			XmlnsDFXML: dfxmlNS,
			JobID:      uuid.NewString(),
			Creator: xmlCreator{
				Program: "dbling",
				Version: "1.0",
				ExecEnv: xmlExecEnv{
					OSSysname:   runtime.GOOS,
					Arch:        runtime.GOARCH,
					CommandLine: strings.Join(os.Args, " "),
					UID:         strconv.Itoa(os.Getuid()),
				},
				StartTime: time.Now().Format(time.RFC3339),
			},
		},
	}
	if host, err := os.Hostname(); err == nil {
		m.doc.Creator.ExecEnv.Host = host
	}
	if imageFilename != "" || mountPoint != "" {
		m.doc.Source = &xmlSource{ImageFilename: imageFilename, MountPoint: mountPoint}
	}
	return m
}

// MatchCandidates runs every candidate through the matcher and records the
// results. Matcher failures abort the job; they are never swallowed.
func (m *Merl) MatchCandidates(matcher Matcher, candidates []*graph.Graph) error {
	for n, c := range candidates {
		if err := m.matchCandidate(matcher, c, n+1); err != nil {
			return err
		}
	}
	return nil
}

func (m *Merl) matchCandidate(matcher Matcher, c *graph.Graph, num int) error {
	hits, err := matcher.Match(c)
	if err != nil {
		return fmt.Errorf("matching candidate %d: %w", num, err)
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Confidence > hits[j].Confidence
	})
	log.Debugf("Calculated the matches for a candidate graph with %d vertices. (%d)", c.NumVertices(), num)

	if m.plain {
		return m.writePlain(hits, num)
	}

	top, err := c.TreeTop()
	if err != nil {
		return fmt.Errorf("candidate %d: %w", num, err)
	}
	match := xmlMatch{Inode: c.Attrs(top).Inode}
	for i, h := range hits {
		if i >= maxCandidateTags {
			break
		}
		match.Candidates = append(match.Candidates, xmlCandidate(h))
	}
	m.doc.Matches = append(m.doc.Matches, match)
	return nil
}

func (m *Merl) writePlain(hits []Match, num int) error {
	header := fmt.Sprintf("C%d Candidate Matches", num)
	if _, err := fmt.Fprintf(m.out, "\n%s\n%s\n\n", header, strings.Repeat("-", len(header))); err != nil {
		return err
	}
	for n, h := range hits {
		_, err := fmt.Fprintf(m.out, "#%d\next_id: %s\next_ver: %s\nconfidence: %g\n\n",
			n+1, h.ExtID, h.Version, h.Confidence)
		if err != nil {
			return err
		}
	}
	return nil
}

// Save writes the aggregated report. In plain mode the per-candidate blocks
// were already streamed, so only the XML mode emits here.
func (m *Merl) Save() error {
	if m.plain {
		return nil
	}
	if _, err := io.WriteString(m.out, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(m.out)
	enc.Indent("", "  ")
	if err := enc.Encode(&m.doc); err != nil {
		return err
	}
	_, err := io.WriteString(m.out, "\n")
	return err
}

// JobID returns the identifier stamped into this report.
func (m *Merl) JobID() string {
	return m.doc.JobID
}
