package audio

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/motorqc/internal/record"
)

func fileHeader(t *testing.T, name, contentType, body string) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="rpm500"; filename="`+name+`"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = io.WriteString(part, body)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest("POST", "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["rpm500"][0]
}

func TestStore_SaveFile(t *testing.T) {
	s := NewStore(t.TempDir(), 0)

	ref, err := s.SaveFile(context.Background(), record.RPM500, fileHeader(t, "idle.WAV", "audio/wav", "RIFF...."))
	require.NoError(t, err)
	assert.Equal(t, "idle.WAV", ref.Name)
	assert.Equal(t, int64(8), ref.Size)
	assert.Equal(t, "audio/wav", ref.ContentType)
	assert.True(t, strings.HasPrefix(ref.Key, "rpm500/"))
	assert.True(t, strings.HasSuffix(ref.Key, ".wav"))

	f, err := s.Open(ref.Key)
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "RIFF....", string(data))
}

func TestStore_Rejects(t *testing.T) {
	s := NewStore(t.TempDir(), 4)

	_, err := s.SaveFile(context.Background(), record.RPM500, fileHeader(t, "notes.txt", "text/plain", "hi"))
	assert.ErrorIs(t, err, ErrNotAudio)

	_, err = s.SaveFile(context.Background(), record.RPM500, fileHeader(t, "big.wav", "audio/wav", "too large"))
	assert.Error(t, err)

	_, err = s.Open("../outside")
	assert.Error(t, err)
}

func TestStore_Remove(t *testing.T) {
	s := NewStore(t.TempDir(), 0)

	ref, err := s.SaveFile(context.Background(), record.RPM500, fileHeader(t, "idle.wav", "audio/wav", "RIFF"))
	require.NoError(t, err)

	require.NoError(t, s.Remove(ref.Key))
	_, err = s.Open(ref.Key)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	// Removing twice is fine.
	require.NoError(t, s.Remove(ref.Key))
	assert.Error(t, s.Remove("../outside"))
}
