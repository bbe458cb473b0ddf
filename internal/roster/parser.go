package roster

import (
	"fmt"
	"io"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/sidang-online/sidang-api/internal/scheduler"
	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
)

// row mirrors one line of an uploaded roster CSV. Header names follow
// the template handed to study-program admins.
type row struct {
	NRP      string `csv:"nrp"`
	Name     string `csv:"name"`
	Title    string `csv:"thesis_title"`
	Advisor1 string `csv:"advisor1_name"`
	Advisor2 string `csv:"advisor2_name"`
}

// Parser turns roster CSV uploads into scheduling candidates.
type Parser struct {
	maxRows int
}

// NewParser constructs a Parser. maxRows caps the accepted roster
// size; zero or negative disables the cap.
func NewParser(maxRows int) *Parser {
	return &Parser{maxRows: maxRows}
}

// Parse reads a roster CSV and returns its candidates in file order.
// The CSV structure is validated here; field-level rules (blank
// values, duplicate NRPs, advisor resolution) are enforced by the
// scheduling run so both upload and inline rosters share one rulebook.
func (p *Parser) Parse(r io.Reader) ([]scheduler.Candidate, error) {
	var rows []*row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrRosterInvalid.Code, appErrors.ErrRosterInvalid.Status,
			fmt.Sprintf("cannot parse roster csv: %v", err))
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrRosterInvalid, "roster csv has no data rows")
	}
	if p.maxRows > 0 && len(rows) > p.maxRows {
		return nil, appErrors.Clone(appErrors.ErrRosterInvalid,
			fmt.Sprintf("roster has %d rows, the maximum is %d", len(rows), p.maxRows))
	}

	candidates := make([]scheduler.Candidate, 0, len(rows))
	for _, r := range rows {
		candidates = append(candidates, scheduler.Candidate{
			NRP:      strings.TrimSpace(r.NRP),
			Name:     strings.TrimSpace(r.Name),
			Title:    strings.TrimSpace(r.Title),
			Advisor1: strings.TrimSpace(r.Advisor1),
			Advisor2: strings.TrimSpace(r.Advisor2),
		})
	}
	return candidates, nil
}
