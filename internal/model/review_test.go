package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceLearningTag(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		wantType ServiceLearningType
		wantDesc string
	}{
		{"compulsory", "[COMPULSORY] visit an NGO every week", ServiceLearningCompulsory, "visit an NGO every week"},
		{"optional", "[OPTIONAL] extra credit project", ServiceLearningOptional, "extra credit project"},
		{"optional without text", "[OPTIONAL]", ServiceLearningOptional, ""},
		{"legacy untagged", "community tutoring", ServiceLearningCompulsory, "community tutoring"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotType, gotDesc := DecodeServiceLearning(tt.stored)
			assert.Equal(t, tt.wantType, gotType)
			assert.Equal(t, tt.wantDesc, gotDesc)
		})
	}

	encoded := EncodeServiceLearning(ServiceLearningOptional, "  reading club ")
	assert.Equal(t, "[OPTIONAL] reading club", encoded)
	typ, desc := DecodeServiceLearning(encoded)
	assert.Equal(t, ServiceLearningOptional, typ)
	assert.Equal(t, "reading club", desc)
}

func TestInstructorDetailsRoundTrip(t *testing.T) {
	evals := []InstructorEvaluation{{
		InstructorName: "Dr. Lee",
		SessionType:    "Lecture",
		TeachingScore:  MustScore(4),
		GradingScore:   Unrated(),
		Comments:       "clear and well organised lectures every single week",
		HasMidterm:     true,
	}}

	s, err := EncodeInstructorDetails(evals)
	require.NoError(t, err)
	assert.Contains(t, s, `"grading":null`)

	back, err := ParseInstructorDetails(s)
	require.NoError(t, err)
	assert.Equal(t, evals, back)
}

func TestEncodeInstructorDetailsNil(t *testing.T) {
	s, err := EncodeInstructorDetails(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", s)
}

func TestParseInstructorDetailsRejectsBadInput(t *testing.T) {
	inputs := map[string]string{
		"empty":        "",
		"not json":     "{oops",
		"missing name": `[{"instructor_name":"","session_type":"Lecture","teaching":4}]`,
		"duplicate":    `[{"instructor_name":"A","session_type":"Lecture"},{"instructor_name":"A","session_type":"Lecture"}]`,
		"bad score":    `[{"instructor_name":"A","session_type":"Lecture","teaching":9}]`,
	}
	for name, in := range inputs {
		t.Run(name, func(t *testing.T) {
			_, err := ParseInstructorDetails(in)
			require.Error(t, err)
			if name != "bad score" {
				assert.True(t, errors.Is(err, ErrInvalidInstructorDetails))
			}
		})
	}
}

func TestInstructorKeySplit(t *testing.T) {
	k := NewInstructorKey("Dr. Lee", "Lecture")
	assert.Equal(t, InstructorKey("Dr. Lee|Lecture"), k)
	name, session := k.Split()
	assert.Equal(t, "Dr. Lee", name)
	assert.Equal(t, "Lecture", session)
}

func TestReviewAnonymized(t *testing.T) {
	r := Review{ID: "r1", ReviewPayload: ReviewPayload{UserID: "u1", Username: "amy", IsAnon: true}}
	a := r.Anonymized()
	assert.Empty(t, a.UserID)
	assert.Empty(t, a.Username)
	assert.Equal(t, "u1", r.UserID, "original untouched")
}
