package server

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := 0; x < 40; x++ {
		img.Set(x, x%20, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func multipartRequest(t *testing.T, path, tok string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if file != nil {
		part, err := w.CreateFormFile("image", "upload.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tok)
	return req
}

func TestUploadProfilePicture(t *testing.T) {
	e := newTestEnv(t)
	ada, tok := e.login(t, "ada")

	resp := e.send(t, multipartRequest(t, "/api/upload/profile", tok, samplePNG(t), nil))
	requireStatus(t, resp, http.StatusOK)
	url := decode[map[string]string](t, resp)["url"]
	assert.True(t, strings.HasPrefix(url, "/uploads/profile/"), url)
	assert.True(t, strings.HasSuffix(url, ".webp"), url)

	resp = e.do(t, http.MethodGet, url, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/users/"+itoa(ada.ID), tok, nil)
	requireStatus(t, resp, http.StatusOK)
	assert.Equal(t, url, decode[map[string]any](t, resp)["profilePicture"])
}

func TestUploadPostImage(t *testing.T) {
	e := newTestEnv(t)
	_, tok := e.login(t, "ada")

	resp := e.send(t, multipartRequest(t, "/api/upload/post", tok, samplePNG(t), map[string]string{"content": "sunset"}))
	requireStatus(t, resp, http.StatusCreated)
	res := decode[struct {
		PostID uint   `json:"postId"`
		URL    string `json:"url"`
	}](t, resp)
	require.NotZero(t, res.PostID)

	resp = e.do(t, http.MethodGet, "/api/posts/"+itoa(res.PostID), tok, nil)
	requireStatus(t, resp, http.StatusOK)
	post := decode[envelope[map[string]any]](t, resp).Data
	assert.Equal(t, "sunset", post["content"])
	assert.Equal(t, res.URL, post["imageUrl"])
}

func TestUploadRejections(t *testing.T) {
	e := newTestEnv(t)
	_, tok := e.login(t, "ada")

	resp := e.send(t, multipartRequest(t, "/api/upload/profile", tok, nil, map[string]string{"content": "no file"}))
	requireStatus(t, resp, http.StatusBadRequest)
	assert.Equal(t, "No file uploaded", decode[map[string]any](t, resp)["message"])

	resp = e.send(t, multipartRequest(t, "/api/upload/profile", tok, []byte("plain text, not pixels"), nil))
	requireStatus(t, resp, http.StatusBadRequest)
	assert.Equal(t, "Not an image! Please upload only images.", decode[map[string]any](t, resp)["message"])

	big := bytes.Repeat([]byte{0}, 2<<20+1)
	resp = e.send(t, multipartRequest(t, "/api/upload/post", tok, big, nil))
	requireStatus(t, resp, http.StatusBadRequest)
	assert.Equal(t, "File too large (max 2 MB)", decode[map[string]any](t, resp)["message"])
}

func TestUpload_StorageFailureIsInternal(t *testing.T) {
	store := new(mockStorage)
	store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "profile/")
	}), mock.Anything, "image/webp").Return("", errors.New("bucket unavailable"))

	e := newTestEnvWithStore(t, testConfig(t), store)
	_, tok := e.login(t, "ada")

	resp := e.send(t, multipartRequest(t, "/api/upload/profile", tok, samplePNG(t), nil))
	requireStatus(t, resp, http.StatusInternalServerError)
	assert.Equal(t, "Internal server error", decode[map[string]any](t, resp)["message"])
	store.AssertExpectations(t)
}
