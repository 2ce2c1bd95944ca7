package dto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundprediction/noirgraph/pkg/driver"
)

func TestLoadDocumentRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     LoadDocumentRequest
		wantErr error
	}{
		{"valid", LoadDocumentRequest{ID: "story", Content: "Holmes smoked."}, nil},
		{"generated id", LoadDocumentRequest{Content: "Holmes smoked."}, nil},
		{"blank content", LoadDocumentRequest{Content: " \n "}, ErrEmptyContent},
		{"long title", LoadDocumentRequest{Title: strings.Repeat("a", MaxTitleLength+1), Content: "x"}, ErrTitleTooLong},
		{"path in id", LoadDocumentRequest{ID: "../etc", Content: "x"}, ErrInvalidID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSearchRequestNormalize(t *testing.T) {
	req := SearchRequest{Query: "cat"}
	view, err := req.Normalize()
	assert.NoError(t, err)
	assert.Equal(t, driver.ViewName, view)
	assert.Equal(t, DefaultK, req.K)

	req = SearchRequest{Query: "cat", K: 3, View: "profile"}
	view, err = req.Normalize()
	assert.NoError(t, err)
	assert.Equal(t, driver.ViewProfile, view)

	_, err = (&SearchRequest{Query: " "}).Normalize()
	assert.ErrorIs(t, err, ErrEmptyQuery)
	_, err = (&SearchRequest{Query: "cat", K: MaxK + 1}).Normalize()
	assert.ErrorIs(t, err, ErrLimitOutOfRange)
	_, err = (&SearchRequest{Query: "cat", View: "shape"}).Normalize()
	assert.ErrorIs(t, err, ErrInvalidView)
}
