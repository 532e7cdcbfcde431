// Package assets resolves the target of an image print job: a named image
// in the assets directory or an inline data: URL
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"net/url"
	"os"
	"path"
	"slices"
	"strings"

	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrNotFound = errors.New("image not found")

var extensions = []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp"}

type Library struct {
	fsys fs.FS
	log  *zap.Logger
}

func NewLibrary(dir string, log *zap.Logger) *Library {
	return NewLibraryFS(os.DirFS(dir), log)
}

func NewLibraryFS(fsys fs.FS, log *zap.Logger) *Library {
	if log == nil {
		log = zap.NewNop()
	}
	return &Library{fsys: fsys, log: log}
}

// Load decodes the image ref names. Names may omit the extension, and '-'
// and '_' are interchangeable, so "preorder-fr" finds preorder_fr.png.
func (l *Library) Load(ctx context.Context, ref string) (image.Image, error) {
	if strings.HasPrefix(ref, "data:") {
		data, err := decodeDataURL(ref)
		if err != nil {
			return nil, err
		}
		return decode(data, "inline image")
	}

	name, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}
	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("Couldn't read %s:\n%w", name, err)
	}
	l.log.Debug("Loaded image", zap.String("ref", ref), zap.String("file", name))
	return decode(data, name)
}

// Names lists the images in the library without their extensions
func (l *Library) Names() ([]string, error) {
	entries, err := fs.ReadDir(l.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("Couldn't list images:\n%w", err)
	}
	var names []string
	for _, e := range entries {
		ext := strings.ToLower(path.Ext(e.Name()))
		if e.IsDir() || !knownExtension(ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	return names, nil
}

func (l *Library) resolve(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || !fs.ValidPath(ref) || strings.ContainsAny(ref, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
	}

	var bases []string
	for _, b := range []string{ref, strings.ReplaceAll(ref, "-", "_"), strings.ReplaceAll(ref, "_", "-")} {
		if !slices.Contains(bases, b) {
			bases = append(bases, b)
		}
	}

	for _, b := range bases {
		if knownExtension(strings.ToLower(path.Ext(b))) && exists(l.fsys, b) {
			return b, nil
		}
		for _, ext := range extensions {
			if exists(l.fsys, b+ext) {
				return b + ext, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, ref)
}

func decode(data []byte, what string) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("Couldn't decode %s:\n%w", what, err)
	}
	return img, nil
}

// decodeDataURL accepts both base64 and percent-encoded payloads
func decodeDataURL(ref string) ([]byte, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(ref, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("invalid data URL")
	}
	if strings.HasSuffix(header, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 in data URL:\n%w", err)
		}
		return data, nil
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("invalid data URL:\n%w", err)
	}
	return []byte(s), nil
}

func exists(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}

func knownExtension(ext string) bool {
	return slices.Contains(extensions, ext)
}
