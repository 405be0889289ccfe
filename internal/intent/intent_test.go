package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabels_ClosedSet(t *testing.T) {
	all := Labels()
	assert.Len(t, all, 22)
	assert.Equal(t, GeneralQuery, all[len(all)-1])

	seen := map[Label]bool{}
	for _, l := range all {
		assert.False(t, seen[l], "duplicate label %q", l)
		seen[l] = true
		assert.True(t, l.Valid())
	}

	all[0] = "tampered"
	assert.Equal(t, AccountConversion, Labels()[0])
}

func TestParse(t *testing.T) {
	l, err := Parse("UPI Issue")
	require.NoError(t, err)
	assert.Equal(t, UPIIssue, l)

	_, err = Parse("upi issue")
	assert.ErrorIs(t, err, ErrUnknownLabel)

	_, err = Parse("Transfer All Money")
	assert.ErrorIs(t, err, ErrUnknownLabel)
}
