package rescuepost

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 1080
	jpegQuality   = 82
	maxUploadSize = 10 << 20 // 10MB
	uploadsSubdir = "uploads"
)

// processImage decodes an image from src, resizes it to maxImageWidth when
// wider, and encodes it as JPEG.
func processImage(src io.Reader, originalName string) (Media, []byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return Media{}, nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
		w = maxImageWidth
		h = newH
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Media{}, nil, fmt.Errorf("encode jpeg: %w", err)
	}

	base := slugifyFilename(originalName)
	if base == "" {
		base = "image"
	}
	return Media{
		Filename:     base + ".jpg",
		OriginalName: originalName,
		Width:        w,
		Height:       h,
		Size:         buf.Len(),
		UploadedAt:   time.Now().UTC(),
	}, buf.Bytes(), nil
}

// slugifyFilename converts a filename (without extension) to a URL-safe slug.
func slugifyFilename(name string) string {
	ext := filepath.Ext(name)
	return Slugify(strings.TrimSuffix(name, ext))
}

// uniqueFilename prefixes the organization and appends a counter until
// the name is free on disk and in the database.
func (a *App) uniqueFilename(ctx context.Context, m *Media) error {
	dir := filepath.Join(a.staticDir, uploadsSubdir)
	base := m.OrgID + "-" + strings.TrimSuffix(m.Filename, ".jpg")
	candidate := base + ".jpg"
	for counter := 1; ; {
		if _, err := os.Stat(filepath.Join(dir, candidate)); err == nil {
			counter++
			candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
			continue
		}
		exists, err := a.Store.MediaExists(ctx, candidate)
		if err != nil {
			return err
		}
		if exists {
			counter++
			candidate = fmt.Sprintf("%s-%d.jpg", base, counter)
			continue
		}
		break
	}
	m.Filename = candidate
	return nil
}

// saveUpload processes and stores an uploaded image for org.
func (a *App) saveUpload(ctx context.Context, org string, src io.Reader, name string) (Media, error) {
	m, data, err := processImage(src, name)
	if err != nil {
		return Media{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	m.OrgID = org
	if err := a.uniqueFilename(ctx, &m); err != nil {
		return Media{}, err
	}
	dir := filepath.Join(a.staticDir, uploadsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Media{}, fmt.Errorf("create uploads dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, m.Filename), data, 0o644); err != nil {
		return Media{}, fmt.Errorf("write image: %w", err)
	}
	if err := a.Store.SaveMedia(ctx, m); err != nil {
		return Media{}, err
	}
	a.Log.Info("media uploaded",
		zap.String("org", org),
		zap.String("filename", m.Filename),
		zap.Int("size", m.Size))
	return m, nil
}

func (a *App) handleMediaUpload(c echo.Context) error {
	ctx := c.Request().Context()
	org, err := a.Store.GetOrganization(ctx, c.FormValue("org"))
	if err != nil {
		return c.String(http.StatusBadRequest, "Unknown organization")
	}
	file, err := c.FormFile("image")
	if err != nil {
		return c.String(http.StatusBadRequest, "No image file provided")
	}
	if file.Size > maxUploadSize {
		return c.String(http.StatusBadRequest, "File too large (max 10MB)")
	}
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	if _, err := a.saveUpload(ctx, org.ID, src, file.Filename); err != nil {
		if errors.Is(err, ErrValidation) {
			return c.String(http.StatusBadRequest, "Invalid image: "+err.Error())
		}
		return err
	}
	return a.renderMediaList(c, org.ID)
}

func (a *App) handleMediaDelete(c echo.Context) error {
	filename := c.Param("filename")
	org := c.QueryParam("org")
	if filename == "" || filepath.Base(filename) != filename {
		return c.String(http.StatusBadRequest, "Filename required")
	}
	if err := a.Store.DeleteMedia(c.Request().Context(), org, filename); err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.NoContent(http.StatusNotFound)
		}
		return err
	}
	a.removeUpload(filename)
	return a.renderMediaList(c, org)
}

// removeUpload deletes an uploaded file. The row is already gone, so a
// failure is only logged; a file that is already missing is not an error.
func (a *App) removeUpload(filename string) {
	err := os.Remove(filepath.Join(a.staticDir, uploadsSubdir, filename))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		a.Log.Warn("remove media file failed", zap.String("file", filename), zap.Error(err))
	}
}

func (a *App) handleMediaList(c echo.Context) error {
	return a.renderMediaList(c, c.QueryParam("org"))
}

func (a *App) renderMediaList(c echo.Context, org string) error {
	media, err := a.Store.ListMedia(c.Request().Context(), org)
	if err != nil {
		return err
	}
	return Render(c, a.Views.AdminMedia(org, media, CsrfToken(c)))
}
