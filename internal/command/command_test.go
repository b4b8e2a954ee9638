package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	swerr "switcherd/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		line  string
		verb  Verb
		input uint16
		reply string
	}{
		{"auto", Transition, 0, "ACK"},
		{"tr", Transition, 0, "ACK"},
		{"ct", Cut, 0, "ACK"},
		{"ping", Ping, 0, "ACK"},
		{"  ping\t", Ping, 0, "ACK"},
		{"pg=3", Program, 3, "pg=3"},
		{"pg_3", Program, 3, "pg_3"},
		{"pv=2", Preview, 2, "pv=2"},
		{"pv_2", Preview, 2, "pv_2"},
		{"prv=1000", Preview, 1000, "prv=1000"},
		{"prv_0", Preview, 0, "prv_0"},
		{"pg=65535", Program, 65535, "pg=65535"},
		{"", Unknown, 0, ""},
		{"hello", Unknown, 0, ""},
		{"PING", Unknown, 0, ""},
		{"xx=3", Unknown, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			cmd, err := Parse(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.verb, cmd.Verb)
			assert.Equal(t, tt.input, cmd.Input)
			assert.Equal(t, tt.reply, cmd.Reply())
		})
	}
}

func TestParse_RejectsBadSelectors(t *testing.T) {
	for _, line := range []string{
		"pg_x",
		"pg_12abc",
		"pg_",
		"pg=",
		"pg",
		"pv=-1",
		"pv=+1",
		"pg= 3",
		"pg=0x10",
		"pg=65536",
		"prv=1.5",
	} {
		t.Run(line, func(t *testing.T) {
			cmd, err := Parse(line)
			var pe *swerr.ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, Unknown, cmd.Verb, "a rejected line carries no verb")
		})
	}
}

func TestAlias(t *testing.T) {
	v := DefaultVocabulary()
	require.NoError(t, v.Alias("take", Transition))
	require.NoError(t, v.Alias("pgm", Program))

	cmd, err := v.Parse("take")
	require.NoError(t, err)
	assert.Equal(t, Transition, cmd.Verb)

	cmd, err = v.Parse("pgm=4")
	require.NoError(t, err)
	assert.Equal(t, Program, cmd.Verb)
	assert.EqualValues(t, 4, cmd.Input)

	// The default vocabulary is untouched.
	cmd, err = Parse("take")
	require.NoError(t, err)
	assert.Equal(t, Unknown, cmd.Verb)
}

func TestAlias_Invalid(t *testing.T) {
	v := DefaultVocabulary()
	assert.Error(t, v.Alias("", Cut))
	assert.Error(t, v.Alias("a b", Cut))
	assert.Error(t, v.Alias("a_b", Cut))
	assert.Error(t, v.Alias("zz", Unknown))
}

func TestParseVerb(t *testing.T) {
	for _, name := range []string{"transition", "cut", "program", "preview", "ping", " Cut "} {
		v, err := ParseVerb(name)
		require.NoError(t, err, name)
		assert.NotEqual(t, Unknown, v)
	}
	_, err := ParseVerb("unknown")
	assert.Error(t, err)
	_, err = ParseVerb("explode")
	assert.Error(t, err)
}

func TestVerb_String(t *testing.T) {
	assert.Equal(t, "program", Program.String())
	assert.Equal(t, "unknown", Verb(99).String())
	assert.True(t, Preview.TakesSelector())
	assert.False(t, Cut.TakesSelector())
}

func TestLookup(t *testing.T) {
	v := DefaultVocabulary()
	verb, ok := v.Lookup("ct")
	assert.True(t, ok)
	assert.Equal(t, Cut, verb)

	verb, ok = v.Lookup("prv")
	assert.True(t, ok)
	assert.Equal(t, Preview, verb)

	_, ok = v.Lookup("cut")
	assert.False(t, ok, "verb names are not spellings")
}
