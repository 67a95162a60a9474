package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/warikanbot/internal/ledger"
)

func TestParseText(t *testing.T) {
	assert.Equal(t, Start(), ParseText("start"))
	assert.Equal(t, Start(), ParseText(" 記録 "))
	assert.Equal(t, Start(), ParseText("開始"))
	assert.Equal(t, Cancel(), ParseText("STOP"))
	assert.Equal(t, Cancel(), ParseText("キャンセル"))
	assert.Equal(t, Text(" ランチ "), ParseText(" ランチ "))
}

func TestParseActionRoundTrip(t *testing.T) {
	for _, trig := range []Trigger{
		Start(), Cancel(), Back(),
		ChooseParticipant("1234"),
		ChooseCategory(ledger.CategoryFood, "1234"),
		Confirm(true), Confirm(false),
	} {
		got, err := ParseAction(trig.Payload())
		require.NoError(t, err, trig.Payload())
		assert.Equal(t, trig, got)
	}
}

func TestParseAction(t *testing.T) {
	trig, err := ParseAction("category=rent&participant=42")
	require.NoError(t, err)
	assert.Equal(t, ChooseCategory(ledger.CategoryRent, "42"), trig)

	for _, bad := range []string{"", "nope", "confirm=maybe", "category=yacht&participant=1", "choose-participant="} {
		_, err := ParseAction(bad)
		assert.Error(t, err, bad)
	}
}
