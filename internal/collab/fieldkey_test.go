package collab

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldKeyOrdinalRoundTrip(t *testing.T) {
	attrs := []string{AttrVisitDate, AttrVisitTime, AttrVisitDuration, AttrEstimatedCost, AttrNotes}

	for _, attr := range attrs {
		for i := 0; i < 10; i++ {
			key := OrdinalKey(attr, i)
			encoded := key.String()
			assert.Equal(t, fmt.Sprintf("%s.%d", attr, i+1), encoded)

			decoded, err := ParseFieldKey(encoded)
			assert.NoError(t, err)
			assert.Equal(t, attr, decoded.Attribute)
			assert.Equal(t, i, decoded.OrderIndex)
			assert.Empty(t, decoded.PlaceID)
		}
	}
}

func TestFieldKeyStableRoundTrip(t *testing.T) {
	key := StableKey(AttrVisitDuration, "place-abc")
	assert.Equal(t, "visitDuration:place-abc", key.String())

	decoded, err := ParseFieldKey("visitDuration:place-abc")
	assert.NoError(t, err)
	assert.Equal(t, AttrVisitDuration, decoded.Attribute)
	assert.Equal(t, "place-abc", decoded.PlaceID)
	assert.False(t, decoded.IsTopLevel())
}

func TestFieldKeyTopLevel(t *testing.T) {
	for _, attr := range []string{AttrName, AttrDescription} {
		key, err := ParseFieldKey(attr)
		assert.NoError(t, err)
		assert.True(t, key.IsTopLevel())
		assert.Equal(t, attr, key.String())
	}
}

func TestFieldKeyParseErrors(t *testing.T) {
	cases := []string{
		"",
		"ownerId",          // not an editable top-level attribute
		"visitDuration.0",  // positions are one-based
		"visitDuration.x",  // not a number
		"bogus.3",          // unknown place attribute
		"bogus:place-1",    // unknown place attribute
		"visitDuration:",   // empty place id
		"name.1",           // top-level attribute cannot be ordinal
	}

	for _, in := range cases {
		_, err := ParseFieldKey(in)
		assert.Error(t, err, "expected parse error for %q", in)
	}
}
