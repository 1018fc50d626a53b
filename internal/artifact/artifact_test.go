package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompliantName(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		delimiter string
		want      string
	}{
		{name: "already compliant", input: "abalone_data", delimiter: "_", want: "abalone_data"},
		{name: "uppercase lowered", input: "Abalone_Data", delimiter: "_", want: "abalone_data"},
		{name: "dashes converted", input: "abalone-data", delimiter: "_", want: "abalone_data"},
		{name: "underscores to dashes", input: "abalone_regression", delimiter: "-", want: "abalone-regression"},
		{name: "punctuation dropped", input: "my data!.csv", delimiter: "_", want: "mydatacsv"},
		{name: "mixed separators", input: "My-Model_v2", delimiter: "-", want: "my-model-v2"},
		{name: "nothing legal left", input: "!!!", delimiter: "_", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompliantName(tt.input, tt.delimiter, nil)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("abalone_data"))
	assert.ErrorIs(t, ValidateName(CompliantName("!!!", "_", nil)), ErrEmptyName)
}

func TestTagRoundTrip(t *testing.T) {
	tags := []string{"abalone", "public", "regression"}
	joined := JoinTags(tags)
	assert.Equal(t, "abalone::public::regression", joined)
	assert.Equal(t, tags, SplitTags(joined))
	assert.Empty(t, SplitTags(""))
}

func TestAddRemoveTag(t *testing.T) {
	v := JoinTags([]string{"a", "b"})

	v = AddTag(v, "c")
	assert.Equal(t, []string{"a", "b", "c"}, SplitTags(v))

	// Duplicate add is a no-op
	v = AddTag(v, "b")
	assert.Equal(t, []string{"a", "b", "c"}, SplitTags(v))

	v = RemoveTag(v, "b")
	assert.Equal(t, []string{"a", "c"}, SplitTags(v))

	// Removing a missing tag is a no-op
	v = RemoveTag(v, "zzz")
	assert.Equal(t, []string{"a", "c"}, SplitTags(v))
}

func TestReadyAndHealthCheck(t *testing.T) {
	meta := Meta{MetaStatus: StatusReady, MetaTags: "x"}

	assert.True(t, Ready(meta, ExpectedMeta))
	assert.Empty(t, HealthCheck(meta, ExpectedMeta))

	missing := Meta{MetaTags: "x"}
	assert.False(t, Ready(missing, ExpectedMeta))
	assert.Equal(t, []string{"needs_onboard"}, HealthCheck(missing, ExpectedMeta))
}
