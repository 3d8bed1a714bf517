// Package cloudinary uploads profile avatars to Cloudinary.
package cloudinary

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// AvatarFolder is where all avatars are stored.
const AvatarFolder = "campusconnect/avatars"

const (
	AvatarSize = 400
	ThumbSize  = 96
)

// square crop focused on the face, auto quality and format
const avatarEager = "c_fill,g_face,w_400,h_400,q_auto,f_auto"

var ErrNotCloudinaryURL = errors.New("not a cloudinary upload url")

// Client is the avatar storage used by the profile handlers.
type Client interface {
	UploadAvatar(ctx context.Context, file io.Reader, userID string) (url, thumbnailURL string, err error)
	DeleteAvatar(ctx context.Context, url string) error
}

// AvatarURL builds a delivery URL for an uploaded avatar at the given size.
func AvatarURL(cloudName, publicID string, size int) string {
	if size <= 0 {
		size = AvatarSize
	}
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/c_fill,g_face,w_%d,h_%d,q_auto,f_auto/%s",
		cloudName, size, size, publicID)
}

// PublicIDFromURL extracts the public id (folder included, extension and
// version dropped) from a res.cloudinary.com image URL.
func PublicIDFromURL(u string) (string, error) {
	_, rest, ok := strings.Cut(u, "/image/upload/")
	if !ok || !strings.Contains(u, "res.cloudinary.com/") {
		return "", ErrNotCloudinaryURL
	}
	parts := strings.Split(rest, "/")
	for len(parts) > 1 && (isTransformation(parts[0]) || isVersion(parts[0])) {
		parts = parts[1:]
	}
	id := strings.Join(parts, "/")
	id = strings.TrimSuffix(id, path.Ext(id))
	if id == "" {
		return "", ErrNotCloudinaryURL
	}
	return id, nil
}

func isTransformation(seg string) bool {
	return strings.Contains(seg, ",") || (len(seg) > 2 && seg[1] == '_' && !strings.Contains(seg, "."))
}

func isVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

var overwrite = true

type clientImpl struct {
	cloudName string
	uploader  *uploader.API
}

// UploadAvatar stores the image under the user's id, replacing any previous avatar.
func (c *clientImpl) UploadAvatar(ctx context.Context, file io.Reader, userID string) (url, thumbnailURL string, err error) {
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:    AvatarFolder,
		PublicID:  userID,
		Overwrite: &overwrite,
		Eager:     avatarEager,
	})
	if err != nil {
		return "", "", err
	}
	if result.Error.Message != "" {
		return "", "", errors.New(result.Error.Message)
	}
	url = result.SecureURL
	if len(result.Eager) > 0 {
		url = result.Eager[0].SecureURL
	}
	return url, AvatarURL(c.cloudName, result.PublicID, ThumbSize), nil
}

func (c *clientImpl) DeleteAvatar(ctx context.Context, url string) error {
	publicID, err := PublicIDFromURL(url)
	if err != nil {
		return err
	}
	_, err = c.uploader.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return err
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{
		cloudName: cloudName,
		uploader:  up,
	}, nil
}
