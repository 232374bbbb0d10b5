package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolvedProfileURL(t *testing.T) {
	tests := []struct {
		name     string
		subject  Subject
		expected string
	}{
		{
			name:     "explicit URL wins",
			subject:  Subject{ProfileURL: "https://www.linkedin.com/in/jane-doe", ProfileID: "other-slug"},
			expected: "https://www.linkedin.com/in/jane-doe",
		},
		{
			name:     "built from profile ID",
			subject:  Subject{ProfileID: "jane-doe"},
			expected: "https://www.linkedin.com/in/jane-doe",
		},
		{
			name:     "no identifier",
			subject:  Subject{Name: "Jane Doe"},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.subject.ResolvedProfileURL())
		})
	}
}

func TestSubjectUpdateIsEmpty(t *testing.T) {
	assert.True(t, SubjectUpdate{}.IsEmpty())

	name := "Jane Doe"
	assert.False(t, SubjectUpdate{Name: &name}.IsEmpty())

	now := time.Now()
	assert.False(t, SubjectUpdate{LastScrapedAt: &now}.IsEmpty())
}
