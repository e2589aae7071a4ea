package profile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()

	want := []string{
		"name", "age", "dob", "gender", "gender_preference",
		"age_preference", "height", "interests", "preferences", "deal_breakers",
	}
	assert.Equal(t, want, r.Names())

	for _, name := range want {
		d, ok := r.Lookup(name)
		require.True(t, ok, "slot %s missing", name)
		assert.Equal(t, name, d.Name)
		assert.NotEmpty(t, d.Description)
		assert.NotNil(t, d.Normalize, "slot %s has no normalizer", name)
	}

	_, ok := r.Lookup("shoe_size")
	assert.False(t, ok)
}

func TestRegistry_Normalize(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		slot    string
		text    string
		want    Value
		wantErr bool
	}{
		{name: "name trimmed and capitalized", slot: "name", text: " alice ", want: StringValue("Alice")},
		{name: "age digits", slot: "age", text: "25", want: IntValue(25)},
		{name: "age words", slot: "age", text: "twenty-five", want: IntValue(25)},
		{name: "age prose", slot: "age", text: "pretty old", wantErr: true},
		{name: "dob iso", slot: "dob", text: "1998-04-12", want: StringValue("1998-04-12")},
		{name: "dob garbage", slot: "dob", text: "april-ish", wantErr: true},
		{name: "gender word", slot: "gender", text: "I'm a woman", want: EnumValue("female")},
		{name: "gender enby", slot: "gender", text: "nonbinary", want: EnumValue("non-binary")},
		{name: "gender pref any", slot: "gender_preference", text: "open to all", want: EnumValue("any")},
		{name: "gender pref men", slot: "gender_preference", text: "men", want: EnumValue("male")},
		{name: "age pref dash", slot: "age_preference", text: "25-35", want: RangeValue(25, 35)},
		{name: "age pref decade", slot: "age_preference", text: "30s", want: RangeValue(30, 39)},
		{name: "height feet", slot: "height", text: `5'10"`, want: IntValue(178)},
		{name: "height cm", slot: "height", text: "178cm", want: IntValue(178)},
		{name: "list split on commas and and", slot: "interests", text: "hiking, cooking and jazz", want: ListValue([]string{"hiking", "cooking", "jazz"})},
		{name: "list dedupes", slot: "preferences", text: "kindness, kindness, humor", want: ListValue([]string{"kindness", "humor"})},
		{name: "list empty", slot: "deal_breakers", text: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := r.Lookup(tt.slot)
			require.True(t, ok)
			got, err := d.Normalize(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Validate(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name    string
		slot    string
		value   Value
		wantErr bool
	}{
		{name: "valid age", slot: "age", value: IntValue(25)},
		{name: "age below floor", slot: "age", value: IntValue(12), wantErr: true},
		{name: "age above ceiling", slot: "age", value: IntValue(121), wantErr: true},
		{name: "age boundary low", slot: "age", value: IntValue(13)},
		{name: "age boundary high", slot: "age", value: IntValue(120)},
		{name: "valid height", slot: "height", value: IntValue(178)},
		{name: "height too short", slot: "height", value: IntValue(80), wantErr: true},
		{name: "height too tall", slot: "height", value: IntValue(260), wantErr: true},
		{name: "valid gender", slot: "gender", value: EnumValue("female")},
		{name: "unknown gender member", slot: "gender", value: EnumValue("robot"), wantErr: true},
		{name: "any allowed for preference only", slot: "gender_preference", value: EnumValue("any")},
		{name: "any rejected for gender", slot: "gender", value: EnumValue("any"), wantErr: true},
		{name: "valid range", slot: "age_preference", value: RangeValue(25, 35)},
		{name: "range below floor", slot: "age_preference", value: RangeValue(10, 35), wantErr: true},
		{name: "valid name", slot: "name", value: StringValue("Alice")},
		{name: "empty name", slot: "name", value: StringValue("  "), wantErr: true},
		{name: "name with digits", slot: "name", value: StringValue("r2d2"), wantErr: true},
		{name: "valid list", slot: "interests", value: ListValue([]string{"hiking"})},
		{name: "empty list", slot: "interests", value: ListValue(nil), wantErr: true},
		{name: "wrong kind", slot: "age", value: StringValue("25"), wantErr: true},
		{name: "unknown slot", slot: "shoe_size", value: IntValue(42), wantErr: true},
		{name: "skipped always valid", slot: "age", value: SkippedValue()},
		{name: "skipped valid for lists too", slot: "interests", value: SkippedValue()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.slot, tt.value)
			if tt.wantErr {
				require.Error(t, err)
				var ve *ValidationError
				assert.True(t, errors.As(err, &ve), "want *ValidationError, got %T", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStore_Clone(t *testing.T) {
	s := Store{"age": IntValue(25)}
	c := s.Clone()
	c.Set("age", IntValue(30))

	v, ok := s.Get("age")
	require.True(t, ok)
	assert.Equal(t, 25, v.Int)
}

func TestValue_String(t *testing.T) {
	assert.Equal(t, "Alice", StringValue("Alice").String())
	assert.Equal(t, "25", IntValue(25).String())
	assert.Equal(t, "25-35", RangeValue(25, 35).String())
	assert.Equal(t, "hiking, jazz", ListValue([]string{"hiking", "jazz"}).String())
	assert.Equal(t, "(skipped)", SkippedValue().String())
}
