package cloudinary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicIDFromURL(t *testing.T) {
	cases := map[string]string{
		"https://res.cloudinary.com/demo/image/upload/v1712345678/campusconnect/avatars/abc-123.jpg":                            "campusconnect/avatars/abc-123",
		"https://res.cloudinary.com/demo/image/upload/c_fill,g_face,w_400,h_400,q_auto,f_auto/v1/campusconnect/avatars/abc.png": "campusconnect/avatars/abc",
		"https://res.cloudinary.com/demo/image/upload/w_96/campusconnect/avatars/u1":                                            "campusconnect/avatars/u1",
	}
	for in, want := range cases {
		got, err := PublicIDFromURL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := PublicIDFromURL("https://example.com/avatars/u1.png")
	assert.ErrorIs(t, err, ErrNotCloudinaryURL)
}

func TestAvatarURL(t *testing.T) {
	assert.Equal(t,
		"https://res.cloudinary.com/demo/image/upload/c_fill,g_face,w_96,h_96,q_auto,f_auto/campusconnect/avatars/u1",
		AvatarURL("demo", "campusconnect/avatars/u1", ThumbSize))
	assert.Contains(t, AvatarURL("demo", "x", 0), "w_400,h_400")
}
