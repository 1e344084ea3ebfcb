package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToJson(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ToJson(map[string]int{"a": 1}))
	// unmarshalable values degrade to empty rather than erroring
	assert.Equal(t, "", ToJson(make(chan int)))
}

func TestUnmarshalJson(t *testing.T) {
	type pair struct {
		A int    `json:"a"`
		B string `json:"b"`
	}
	got, err := UnmarshalJson[pair]([]byte(`{"a":1,"b":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, pair{A: 1, B: "x"}, got)

	_, err = UnmarshalJson[pair]([]byte(`{not json`))
	assert.Error(t, err)
}

func TestParseInt(t *testing.T) {
	assert.Equal(t, 7, ParseInt(" 7 ", 0))
	assert.Equal(t, 42, ParseInt("nope", 42))
}

func TestCalculateBackoff(t *testing.T) {
	base, max := 2*time.Second, 60*time.Second
	for attempt := 0; attempt < 10; attempt++ {
		d := CalculateBackoff(base, max, attempt)
		assert.GreaterOrEqual(t, d, base)
		// max plus full jitter
		assert.LessOrEqual(t, d, max+max/4)
	}
}
