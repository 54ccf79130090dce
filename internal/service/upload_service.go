package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"net/http"
	"strings"

	"devlink/internal/models"
	"devlink/internal/observability"
	"devlink/internal/storage"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	MaxImageSide = 2048
	WebPQuality  = 80

	// Limits on the declared source dimensions, checked before decoding.
	MaxSourceSide   = 16384
	MaxSourcePixels = 40_000_000

	uploadKindProfile = "profile"
	uploadKindPost    = "post"
)

// UploadInput is one multipart image as read by the handler.
type UploadInput struct {
	UserID  uint
	Content []byte
	Caption string
}

// PostImageResult is returned after an image post was created.
type PostImageResult struct {
	PostID uint   `json:"postId"`
	URL    string `json:"url"`
}

// UploadService normalises images to WebP and hands them to storage.
type UploadService struct {
	store    storage.Storage
	users    *UserService
	posts    *PostService
	maxBytes int64
}

func NewUploadService(store storage.Storage, users *UserService, posts *PostService, maxMB int) *UploadService {
	if maxMB <= 0 {
		maxMB = 5
	}
	return &UploadService{store: store, users: users, posts: posts, maxBytes: int64(maxMB) << 20}
}

// UploadProfilePicture stores the image and makes it the user's avatar.
func (s *UploadService) UploadProfilePicture(ctx context.Context, in UploadInput) (string, error) {
	url, err := s.save(ctx, uploadKindProfile, in)
	if err != nil {
		return "", err
	}
	if _, err := s.users.SetProfilePicture(ctx, in.UserID, url); err != nil {
		return "", err
	}
	return url, nil
}

// UploadPostImage stores the image and creates a post carrying it.
func (s *UploadService) UploadPostImage(ctx context.Context, in UploadInput) (*PostImageResult, error) {
	url, err := s.save(ctx, uploadKindPost, in)
	if err != nil {
		return nil, err
	}
	post, err := s.posts.CreateImagePost(ctx, in.UserID, in.Caption, url)
	if err != nil {
		return nil, err
	}
	return &PostImageResult{PostID: post.ID, URL: url}, nil
}

func (s *UploadService) save(ctx context.Context, kind string, in UploadInput) (string, error) {
	encoded, err := s.normalise(in.Content)
	if err != nil {
		observability.UploadsProcessed.WithLabelValues(kind, "rejected").Inc()
		return "", err
	}

	key := fmt.Sprintf("%s/%d/%s.webp", kind, in.UserID, uuid.NewString())
	url, err := s.store.Put(ctx, key, encoded, "image/webp")
	if err != nil {
		observability.UploadsProcessed.WithLabelValues(kind, "failed").Inc()
		return "", models.NewInternalError(err)
	}
	observability.UploadsProcessed.WithLabelValues(kind, "stored").Inc()
	return url, nil
}

// normalise checks the payload is an image within the size limit and
// re-encodes it as WebP no larger than MaxImageSide on either side.
func (s *UploadService) normalise(content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %d MB)", s.maxBytes>>20))
	}
	if !strings.HasPrefix(http.DetectContentType(content), "image/") {
		return nil, models.NewValidationError("Not an image! Please upload only images.")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Not an image! Please upload only images.")
	}
	if err := checkDimensions(cfg.Width, cfg.Height); err != nil {
		return nil, err
	}

	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, models.NewValidationError("Not an image! Please upload only images.")
	}

	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, resizeToFit(decoded, MaxImageSide), &webp.Options{Quality: WebPQuality}); err != nil {
		return nil, models.NewInternalError(err)
	}
	return buf.Bytes(), nil
}

func checkDimensions(w, h int) error {
	if w <= 0 || h <= 0 {
		return models.NewValidationError("Not an image! Please upload only images.")
	}
	if w > MaxSourceSide || h > MaxSourceSide || int64(w)*int64(h) > MaxSourcePixels {
		return models.NewValidationError(fmt.Sprintf("Image dimensions too large (max %d megapixels)", MaxSourcePixels/1_000_000))
	}
	return nil
}

func resizeToFit(src image.Image, maxSide int) image.Image {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= maxSide && h <= maxSide {
		return src
	}

	scale := float64(maxSide) / float64(max(w, h))
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}
