package nlp_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/soundprediction/noirgraph/pkg/nlp"
)

func TestRateLimitError(t *testing.T) {
	t.Run("default message", func(t *testing.T) {
		err := nlp.NewRateLimitError()
		assert.Equal(t, "rate limit exceeded. Please try again later", err.Error())
	})

	t.Run("custom message", func(t *testing.T) {
		customMessage := "Custom rate limit message"
		err := nlp.NewRateLimitError(customMessage)
		assert.Equal(t, customMessage, err.Error())
	})

	t.Run("matches through wrapping", func(t *testing.T) {
		err := fmt.Errorf("extract chunk 3: %w", nlp.NewRateLimitError("slow down"))
		assert.True(t, errors.Is(err, &nlp.RateLimitError{}))
	})
}

func TestRefusalError(t *testing.T) {
	message := "The LLM refused to respond to this prompt."
	err := nlp.NewRefusalError(message)
	assert.Equal(t, message, err.Error())
	assert.ErrorIs(t, fmt.Errorf("wrapped: %w", err), &nlp.RefusalError{})
}

func TestEmptyResponseError(t *testing.T) {
	message := "The LLM returned an empty response."
	err := nlp.NewEmptyResponseError(message)
	assert.Equal(t, message, err.Error())
	assert.NotErrorIs(t, err, &nlp.RefusalError{})
}

func TestCommonErrors(t *testing.T) {
	assert.Contains(t, nlp.ErrRateLimit.Error(), "rate limit")
	assert.Contains(t, nlp.ErrRefusal.Error(), "refused")
	assert.Contains(t, nlp.ErrEmptyResponse.Error(), "empty")
	assert.Contains(t, nlp.ErrInvalidModel.Error(), "invalid model")
	assert.Contains(t, nlp.ErrInvalidJSON.Error(), "json")
}
