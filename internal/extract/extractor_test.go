package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/profiled/internal/logging"
	"github.com/fyrsmithlabs/profiled/internal/profile"
)

// fakeResolver scripts the external service for tests.
type fakeResolver struct {
	reply *ResolveReply
	err   error
	calls int
}

func (f *fakeResolver) Resolve(_ context.Context, _ ResolveRequest) (*ResolveReply, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.reply, nil
}

func newTestExtractor(t *testing.T, resolver Resolver) *Extractor {
	t.Helper()
	e, err := New(profile.NewRegistry(), resolver, DefaultConfig(), logging.Nop())
	require.NoError(t, err)
	return e
}

func TestExtract_PatternStrategy(t *testing.T) {
	resolver := &fakeResolver{reply: &ResolveReply{Value: "99"}}
	e := newTestExtractor(t, resolver)

	res, fail := e.Extract(context.Background(), "age", "I am 25 years old", nil)
	require.Nil(t, fail)
	require.NotNil(t, res)
	assert.Equal(t, profile.IntValue(25), res.Value)
	assert.Equal(t, StrategyPattern, res.Strategy)
	assert.Equal(t, 0.8, res.Confidence)
	assert.Equal(t, 0, resolver.calls, "pattern match must not invoke the service")
}

func TestExtract_EntityStrategyWinsFirst(t *testing.T) {
	e := newTestExtractor(t, nil)

	entities := []RecognizedEntity{
		{Entity: "age", Value: "31", Confidence: 0.95},
	}
	res, fail := e.Extract(context.Background(), "age", "I am 25 years old", entities)
	require.Nil(t, fail)
	assert.Equal(t, StrategyEntity, res.Strategy)
	assert.Equal(t, profile.IntValue(31), res.Value)
	assert.Equal(t, 0.95, res.Confidence)
}

func TestExtract_EntityBelowFloorFallsThrough(t *testing.T) {
	e := newTestExtractor(t, nil)

	entities := []RecognizedEntity{
		{Entity: "age", Value: "31", Confidence: 0.3},
	}
	res, fail := e.Extract(context.Background(), "age", "I am 25 years old", entities)
	require.Nil(t, fail)
	assert.Equal(t, StrategyPattern, res.Strategy)
	assert.Equal(t, profile.IntValue(25), res.Value)
}

func TestExtract_EntityForOtherSlotIgnored(t *testing.T) {
	e := newTestExtractor(t, nil)

	entities := []RecognizedEntity{
		{Entity: "height", Value: "178cm", Confidence: 0.95},
	}
	res, fail := e.Extract(context.Background(), "age", "twenty-five years old", entities)
	require.Nil(t, fail)
	assert.Equal(t, StrategyPattern, res.Strategy)
	assert.Equal(t, profile.IntValue(25), res.Value)
}

func TestExtract_ServiceFallback(t *testing.T) {
	resolver := &fakeResolver{reply: &ResolveReply{Value: "42", Confidence: 0.7}}
	e := newTestExtractor(t, resolver)

	res, fail := e.Extract(context.Background(), "age", "as old as my tongue", nil)
	require.Nil(t, fail)
	assert.Equal(t, StrategyService, res.Strategy)
	assert.Equal(t, profile.IntValue(42), res.Value)
	assert.Equal(t, 0.7, res.Confidence)
	assert.Equal(t, 1, resolver.calls)
}

func TestExtract_ServiceDefaultConfidence(t *testing.T) {
	resolver := &fakeResolver{reply: &ResolveReply{Value: "42"}}
	e := newTestExtractor(t, resolver)

	res, fail := e.Extract(context.Background(), "age", "as old as my tongue", nil)
	require.Nil(t, fail)
	assert.Equal(t, 0.5, res.Confidence)
}

func TestExtract_ServiceUnparseable(t *testing.T) {
	resolver := &fakeResolver{reply: &ResolveReply{Unparseable: true}}
	e := newTestExtractor(t, resolver)

	res, fail := e.Extract(context.Background(), "age", "pretty old, not sure", nil)
	require.Nil(t, res)
	require.NotNil(t, fail)
	assert.Equal(t, "age", fail.Slot)
	assert.False(t, fail.ServiceUnavailable)
	assert.Equal(t, 1, resolver.calls)
}

func TestExtract_ServiceUnavailable(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("connection refused")}
	e := newTestExtractor(t, resolver)

	res, fail := e.Extract(context.Background(), "age", "pretty old, not sure", nil)
	require.Nil(t, res)
	require.NotNil(t, fail)
	assert.True(t, fail.ServiceUnavailable)
}

func TestExtract_NoServiceConfigured(t *testing.T) {
	e := newTestExtractor(t, nil)

	res, fail := e.Extract(context.Background(), "age", "pretty old, not sure", nil)
	require.Nil(t, res)
	require.NotNil(t, fail)
	assert.False(t, fail.ServiceUnavailable)
}

func TestExtract_UnknownSlot(t *testing.T) {
	e := newTestExtractor(t, nil)

	res, fail := e.Extract(context.Background(), "shoe_size", "size 42", nil)
	require.Nil(t, res)
	require.NotNil(t, fail)
}

func TestExtract_Skip(t *testing.T) {
	resolver := &fakeResolver{reply: &ResolveReply{Value: "42"}}
	e := newTestExtractor(t, resolver)

	for _, utterance := range []string{"skip", "I'd rather not say", "pass", "no comment", "prefer not to answer"} {
		res, fail := e.Extract(context.Background(), "height", utterance, nil)
		require.Nil(t, fail, "utterance %q", utterance)
		assert.True(t, res.Value.Skipped(), "utterance %q", utterance)
		assert.Equal(t, 0.9, res.Confidence)
	}
	assert.Equal(t, 0, resolver.calls)
}

func TestExtract_PerSlotCases(t *testing.T) {
	e := newTestExtractor(t, nil)

	tests := []struct {
		name      string
		slot      string
		utterance string
		want      profile.Value
	}{
		{name: "name intro", slot: "name", utterance: "my name is Alice", want: profile.StringValue("Alice")},
		{name: "name im", slot: "name", utterance: "I'm Bob.", want: profile.StringValue("Bob")},
		{name: "gender", slot: "gender", utterance: "I'm a woman", want: profile.EnumValue("female")},
		{name: "gender preference any", slot: "gender_preference", utterance: "anyone really", want: profile.EnumValue("any")},
		{name: "age preference range", slot: "age_preference", utterance: "somewhere between, say 25-35", want: profile.RangeValue(25, 35)},
		{name: "age preference decade", slot: "age_preference", utterance: "30s ideally", want: profile.RangeValue(30, 39)},
		{name: "height imperial", slot: "height", utterance: `I'm 5'10" tall`, want: profile.IntValue(178)},
		{name: "height metric", slot: "height", utterance: "about 178 cm", want: profile.IntValue(178)},
		{name: "interests", slot: "interests", utterance: "I love hiking, cooking and jazz", want: profile.ListValue([]string{"hiking", "cooking", "jazz"})},
		{name: "preferences", slot: "preferences", utterance: "I'm looking for someone kind and funny", want: profile.ListValue([]string{"kind", "funny"})},
		{name: "deal breakers", slot: "deal_breakers", utterance: "deal breakers are smoking and rudeness", want: profile.ListValue([]string{"smoking", "rudeness"})},
		{name: "dob", slot: "dob", utterance: "born 1998-04-12", want: profile.StringValue("1998-04-12")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, fail := e.Extract(context.Background(), tt.slot, tt.utterance, nil)
			require.Nil(t, fail)
			require.NotNil(t, res)
			assert.Equal(t, tt.want, res.Value)
		})
	}
}
