package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetryGivesUpAfterThreeRetries(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		return errors.New("transient")
	})
	require.Error(t, err)
	assert.Equal(t, 4, attempts)
}

func TestWithRetrySucceedsOnEventualSuccess(t *testing.T) {
	attempts := 0
	err := withRetry(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestClassifyHTTPErrorMarksServerErrorsTransient(t *testing.T) {
	err := classifyHTTPError(503, "service unavailable")
	var neverPermanent bool
	neverPermanent = isPermanent(err)
	assert.False(t, neverPermanent)
}

func TestClassifyHTTPErrorMarksClientErrorsPermanent(t *testing.T) {
	err := classifyHTTPError(400, "bad request")
	assert.True(t, isPermanent(err))
}

func TestClassifyHTTPErrorTreats429AsTransient(t *testing.T) {
	err := classifyHTTPError(429, "too many requests")
	assert.False(t, isPermanent(err))
}

func TestClassifyNetErrorMarksDNSFailurePermanent(t *testing.T) {
	err := classifyNetError(errors.New("dial tcp: lookup api.example.test: no such host"))
	assert.True(t, isPermanent(err))
}

func TestClassifyNetErrorTreatsDeadlineExceededAsTransient(t *testing.T) {
	err := classifyNetError(context.DeadlineExceeded)
	assert.False(t, isPermanent(err))
}

func TestClassifyNetErrorPassesNilThrough(t *testing.T) {
	assert.NoError(t, classifyNetError(nil))
}
