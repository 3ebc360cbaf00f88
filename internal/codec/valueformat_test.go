package codec

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeValueSerialized_RoundTrip(t *testing.T) {
	type point struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	text, err := encodeValueSerialized(point{X: 1, Y: 2})
	require.NoError(t, err)

	v, err := decodeValueSerialized(text, reflect.TypeOf(point{}))
	require.NoError(t, err)
	assert.Equal(t, point{X: 1, Y: 2}, v.Interface())
}

func TestQuoteBarewords(t *testing.T) {
	cases := []struct{ in, want string }{
		{`{foo: 1}`, `{"foo": 1}`},
		{`{"already": "quoted"}`, `{"already": "quoted"}`},
		{`{a: true, b: null}`, `{"a": true, "b": null}`},
		{`{a: 'single'}`, `{"a": "single"}`},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, quoteBarewords(c.in), c.in)
	}
}

func TestDecodeValueSerialized_ToleratesBarewordKeys(t *testing.T) {
	type record struct {
		Name string `json:"name"`
	}
	v, err := decodeValueSerialized(`{name: "unquoted key"}`, reflect.TypeOf(record{}))
	require.NoError(t, err)
	assert.Equal(t, "unquoted key", v.Interface().(record).Name)
}
