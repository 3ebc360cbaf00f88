package schema

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDDBTag(t *testing.T) {
	cases := []struct {
		tag  string
		want parsedTag
	}{
		{"-", parsedTag{skip: true}},
		{"hash", parsedTag{isHash: true}},
		{"range", parsedTag{isRange: true}},
		{"ttl", parsedTag{isTTL: true}},
		{"name=foo", parsedTag{name: "foo"}},
		{"hash,name=id", parsedTag{isHash: true, name: "id"}},
	}
	for _, c := range cases {
		got := parseDDBTag(c.tag)
		assert.Equal(t, c.want.skip, got.skip, c.tag)
		assert.Equal(t, c.want.isHash, got.isHash, c.tag)
		assert.Equal(t, c.want.isRange, got.isRange, c.tag)
		assert.Equal(t, c.want.isTTL, got.isTTL, c.tag)
		assert.Equal(t, c.want.name, got.name, c.tag)
	}
}

func TestParseDDBTag_IndexRefs(t *testing.T) {
	got := parseDDBTag("gsi=ByDate:hash")
	assert.Equal(t, []indexRef{{name: "ByDate", role: "hash"}}, got.gsiRefs)

	got = parseDDBTag("gsi=ByDate")
	assert.Equal(t, []indexRef{{name: "ByDate", role: "hash"}}, got.gsiRefs, "role defaults to hash when omitted")

	got = parseDDBTag("lsi=ByTotal:range")
	assert.Equal(t, []indexRef{{name: "ByTotal", role: "range"}}, got.lsiRefs)
}

type nameResolutionRecord struct {
	Explicit string `ddb:"name=explicit_name" dynamodbav:"ignored" json:"alsoIgnored"`
	AVOnly   string `dynamodbav:"av_name" json:"ignored"`
	JSONOnly string `json:"json_name"`
	Bare     string
}

func TestFieldWireName_ResolutionOrder(t *testing.T) {
	rt := reflect.TypeOf(nameResolutionRecord{})

	f, _ := rt.FieldByName("Explicit")
	assert.Equal(t, "explicit_name", fieldWireName(f, parseDDBTag(f.Tag.Get("ddb"))))

	f, _ = rt.FieldByName("AVOnly")
	assert.Equal(t, "av_name", fieldWireName(f, parseDDBTag(f.Tag.Get("ddb"))))

	f, _ = rt.FieldByName("JSONOnly")
	assert.Equal(t, "json_name", fieldWireName(f, parseDDBTag(f.Tag.Get("ddb"))))

	f, _ = rt.FieldByName("Bare")
	assert.Equal(t, "Bare", fieldWireName(f, parseDDBTag(f.Tag.Get("ddb"))))
}

func TestInferDBType(t *testing.T) {
	assert.Equal(t, String, InferDBType(reflect.TypeOf("")))
	assert.Equal(t, Number, InferDBType(reflect.TypeOf(0)))
	assert.Equal(t, Number, InferDBType(reflect.TypeOf(0.0)))
	assert.Equal(t, Bool, InferDBType(reflect.TypeOf(true)))
	assert.Equal(t, Binary, InferDBType(reflect.TypeOf([]byte(nil))))
	assert.Equal(t, String, InferDBType(reflect.TypeOf(time.Time{})))
	assert.Equal(t, List, InferDBType(reflect.TypeOf([]string(nil))))
	assert.Equal(t, Map, InferDBType(reflect.TypeOf(map[string]int(nil))))
	assert.Equal(t, Map, InferDBType(reflect.TypeOf(struct{ X int }{})))
	// pointer indirection is stripped before classification.
	assert.Equal(t, Number, InferDBType(reflect.TypeOf((*int)(nil))))
}

func TestIsIDField(t *testing.T) {
	assert.True(t, isIDField("Id", "Widget"))
	assert.True(t, isIDField("id", "Widget"))
	assert.True(t, isIDField("WidgetId", "Widget"))
	assert.True(t, isIDField("widgetid", "Widget"))
	assert.False(t, isIDField("Name", "Widget"))
}

func TestIsRangeKeyField(t *testing.T) {
	assert.True(t, isRangeKeyField("RangeKey"))
	assert.True(t, isRangeKeyField("rangekey"))
	assert.False(t, isRangeKeyField("SortKey"))
}
