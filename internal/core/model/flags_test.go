package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFlagCode_Kinds(t *testing.T) {
	cases := map[string]FlagKind{
		"S":   FlagKindSYN,
		"S.":  FlagKindSYNACK,
		"F":   FlagKindFIN,
		"F.":  FlagKindFINACK,
		"P.":  FlagKindPSHACK,
		".":   FlagKindACK,
		"FP.": FlagKindNone,
		"R":   FlagKindNone,
		"SEW": FlagKindSYN,
		"":    FlagKindNone,
	}
	for code, want := range cases {
		assert.Equal(t, want, ParseFlagCode(code).Kind(), "code %q", code)
	}
}

func TestTCPFlags_HasAndString(t *testing.T) {
	f := ParseFlagCode("S.")
	assert.True(t, f.Has(FlagSYN))
	assert.True(t, f.Has(FlagSYN|FlagACK))
	assert.False(t, f.Has(FlagFIN))
	assert.False(t, f.Has(0))
	assert.Equal(t, "S.", f.String())
	assert.Equal(t, "FP.", ParseFlagCode("FP.").String())
}

func TestEndpoint_String(t *testing.T) {
	assert.Equal(t, "10.10.10.2:54321", Endpoint{Host: "10.10.10.2", Port: 54321}.String())
}
