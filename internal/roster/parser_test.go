package roster

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/sidang-online/sidang-api/pkg/errors"
)

const sampleCSV = `nrp,name,thesis_title,advisor1_name,advisor2_name
5025201001,Andi Wijaya,Distributed Cache Coherence,Dr. Adi,Dr. Bima
5025201002, Budi Santoso ,Stream Processing at Scale, Dr. Cita ,Dr. Dewi
`

func TestParseReturnsCandidatesInFileOrder(t *testing.T) {
	parser := NewParser(100)

	candidates, err := parser.Parse(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	assert.Equal(t, "5025201001", candidates[0].NRP)
	assert.Equal(t, "Andi Wijaya", candidates[0].Name)
	assert.Equal(t, "Distributed Cache Coherence", candidates[0].Title)
	assert.Equal(t, "Dr. Adi", candidates[0].Advisor1)
	assert.Equal(t, "Dr. Bima", candidates[0].Advisor2)

	// Cell whitespace is trimmed on the way in.
	assert.Equal(t, "Budi Santoso", candidates[1].Name)
	assert.Equal(t, "Dr. Cita", candidates[1].Advisor1)
}

func TestParseRejectsEmptyRoster(t *testing.T) {
	parser := NewParser(100)

	_, err := parser.Parse(strings.NewReader("nrp,name,thesis_title,advisor1_name,advisor2_name\n"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRosterInvalid.Code, appErrors.FromError(err).Code)
}

func TestParseEnforcesRowCap(t *testing.T) {
	parser := NewParser(1)

	_, err := parser.Parse(strings.NewReader(sampleCSV))
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "maximum is 1")
}

func TestParseRejectsMalformedCSV(t *testing.T) {
	parser := NewParser(100)

	broken := "nrp,name,thesis_title,advisor1_name,advisor2_name\n\"unterminated,Andi,T,A,B\n"
	_, err := parser.Parse(strings.NewReader(broken))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRosterInvalid.Code, appErrors.FromError(err).Code)
}
