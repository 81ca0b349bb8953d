package rangeserve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    Spec
		wantErr error
	}{
		{name: "absent", s: ""},
		{name: "whitespace only", s: "  "},
		{name: "start and end", s: "bytes=500-999", want: Spec{Start: 500, End: 999, HasStart: true, HasEnd: true}},
		{name: "open ended", s: "bytes=42-", want: Spec{Start: 42, HasStart: true}},
		{name: "suffix", s: "bytes=-500", want: Spec{End: 500, HasEnd: true}},
		{name: "zero suffix", s: "bytes=-0", want: Spec{End: 0, HasEnd: true}},
		{name: "single byte", s: "bytes=0-0", want: Spec{HasStart: true, HasEnd: true}},
		{name: "end before start is not checked", s: "bytes=10-5", want: Spec{Start: 10, End: 5, HasStart: true, HasEnd: true}},
		{name: "surrounding whitespace", s: " bytes=1-2 ", want: Spec{Start: 1, End: 2, HasStart: true, HasEnd: true}},
		{name: "missing unit", s: "500-999", wantErr: ErrMalformedHeader},
		{name: "wrong unit", s: "items=0-1", wantErr: ErrMalformedHeader},
		{name: "no hyphen", s: "bytes=500", wantErr: ErrMalformedHeader},
		{name: "only hyphen", s: "bytes=-", wantErr: ErrMalformedHeader},
		{name: "two hyphens", s: "bytes=1-2-3", wantErr: ErrMalformedHeader},
		{name: "negative suffix", s: "bytes=--5", wantErr: ErrMalformedHeader},
		{name: "letters", s: "bytes=a-b", wantErr: ErrMalformedHeader},
		{name: "plus sign", s: "bytes=+1-2", wantErr: ErrMalformedHeader},
		{name: "inner space", s: "bytes= 1-2", wantErr: ErrMalformedHeader},
		{name: "overflow", s: "bytes=0-18446744073709551616", wantErr: ErrMalformedHeader},
		{name: "multiple ranges", s: "bytes=0-1,5-6", wantErr: ErrMultipleRangesUnsupported},
		{name: "trailing comma", s: "bytes=0-1,", wantErr: ErrMultipleRangesUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRange(tt.s)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ErrMalformedHeader)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpec_String(t *testing.T) {
	assert.Equal(t, "bytes=*", Spec{}.String())
	assert.Equal(t, "bytes=-5", Spec{End: 5, HasEnd: true}.String())
	assert.Equal(t, "bytes=5-", Spec{Start: 5, HasStart: true}.String())
	assert.Equal(t, "bytes=5-9", Spec{Start: 5, End: 9, HasStart: true, HasEnd: true}.String())
}

func TestSpec_Requested(t *testing.T) {
	assert.False(t, Spec{}.Requested())
	assert.True(t, Spec{HasStart: true}.Requested())
	assert.True(t, Spec{HasEnd: true}.Suffix())
	assert.False(t, Spec{HasStart: true, HasEnd: true}.Suffix())
}
