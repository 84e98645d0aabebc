package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"asynccalc/internal/auth"
	"asynccalc/internal/models"
)

func TestEval(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"eval", "2", "+", "2*3"}, &out))
	assert.Equal(t, "8\n", out.String())

	out.Reset()
	require.NoError(t, run([]string{"eval", "-validation", "lenient", "1/0"}, &out))
	assert.Equal(t, "+Inf\n", out.String())

	err := run([]string{"eval", "3*6+"}, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UnexpectedEnd at offset 4")
	assert.True(t, strings.HasSuffix(err.Error(), "      ^"), err.Error())
}

func TestToken(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"token", "-secret", "s", "-user-id", "5", "-login", "eve"}, &out))

	claims, err := auth.NewTokens("s", time.Hour).ValidateToken(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, models.User{ID: 5, Login: "eve"}, claims.User())

	assert.Error(t, run([]string{"token", "-secret", "s"}, &out))
}

func TestUsage(t *testing.T) {
	assert.ErrorIs(t, run(nil, &bytes.Buffer{}), errUsage)
	assert.ErrorIs(t, run([]string{"frobnicate"}, &bytes.Buffer{}), errUsage)
}
