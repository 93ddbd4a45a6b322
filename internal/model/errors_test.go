package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPError_Temporary(t *testing.T) {
	assert.True(t, (&HTTPError{StatusCode: 429}).Temporary())
	assert.True(t, (&HTTPError{StatusCode: 503}).Temporary())
	assert.False(t, (&HTTPError{StatusCode: 404}).Temporary())
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 120*time.Second, ParseRetryAfter("120"))
	assert.Zero(t, ParseRetryAfter(""))
	assert.Zero(t, ParseRetryAfter("soon"))
	assert.Zero(t, ParseRetryAfter("-5"))
}
