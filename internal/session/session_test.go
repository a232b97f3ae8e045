package session

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/views", nil)
	req.Header.Set(HeaderVendorID, "  v-42 ")
	req.Header.Set("Authorization", "Bearer abc.def")

	sess, err := FromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, Session{VendorID: "v-42", Token: "abc.def"}, sess)
}

func TestFromRequest_IgnoresNonBearerAuth(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(HeaderVendorID, "v-1")
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	sess, err := FromRequest(req)
	require.NoError(t, err)
	assert.Empty(t, sess.Token)
}

func TestFromRequest_MissingVendor(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer tok")

	_, err := FromRequest(req)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithSession(context.Background(), Session{VendorID: "v-1"})
	sess, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "v-1", sess.VendorID)
}
