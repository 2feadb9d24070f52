package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/vidhub/apiserver/internal/logging"
	"github.com/vidhub/apiserver/internal/services"
)

const (
	defaultUploadDir   = "./public/temp"
	maxMultipartMemory = 8 << 20
	maxUploadBytes     = 10 << 20
	maxJSONBytes       = 16 << 10

	formFieldFullname = "fullname"
	formFieldEmail    = "email"
	formFieldUsername = "username"
	formFieldPassword = "password"
	formFieldAvatar   = "avatar"
	formFieldCover    = "coverImage"
)

// parseRegisterRequest reads the registration fields and stages uploaded
// files under the upload dir. The returned cleanup removes every staged file
// and must always be called.
func (h *AuthHandler) parseRegisterRequest(w http.ResponseWriter, r *http.Request) (services.RegisterInput, func(), error) {
	var staged []string
	cleanup := func() {
		for _, p := range staged {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				logging.FromContext(r.Context()).Warn("failed to remove staged upload", "path", p, "err", err)
			}
		}
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req RegisterRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return services.RegisterInput{}, cleanup, errors.New("invalid request")
		}
		return services.RegisterInput{
			Fullname: req.Fullname,
			Email:    req.Email,
			Username: req.Username,
			Password: req.Password,
		}, cleanup, nil
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return services.RegisterInput{}, cleanup, errors.New("invalid multipart form")
	}

	in := services.RegisterInput{
		Fullname: r.FormValue(formFieldFullname),
		Email:    r.FormValue(formFieldEmail),
		Username: r.FormValue(formFieldUsername),
		Password: r.FormValue(formFieldPassword),
	}

	for _, field := range []string{formFieldAvatar, formFieldCover} {
		fileHeader, err := singleFile(r.MultipartForm, field)
		if err != nil {
			return services.RegisterInput{}, cleanup, err
		}
		if fileHeader == nil {
			continue
		}
		localPath, err := stageFile(h.uploadDir, fileHeader)
		if err != nil {
			return services.RegisterInput{}, cleanup, err
		}
		staged = append(staged, localPath)
		if field == formFieldAvatar {
			in.AvatarPath = localPath
		} else {
			in.CoverPath = localPath
		}
	}
	return in, cleanup, nil
}

func singleFile(form *multipart.Form, field string) (*multipart.FileHeader, error) {
	if form == nil {
		return nil, nil
	}
	files := form.File[field]
	switch len(files) {
	case 0:
		return nil, nil
	case 1:
		return files[0], nil
	default:
		return nil, fmt.Errorf("only one %s file is allowed", field)
	}
}

// stageFile copies an uploaded part into dir and returns the local path.
func stageFile(dir string, fileHeader *multipart.FileHeader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to prepare upload dir: %w", err)
	}

	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	dst, err := os.CreateTemp(dir, "upload-*"+ext)
	if err != nil {
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}

	n, err := io.Copy(dst, io.LimitReader(src, maxUploadBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > maxUploadBytes {
		err = errors.New("uploaded file too large")
	}
	if err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}
