// Package source provides scene.BlobSource implementations. AarSource
// is the only one: it resolves names against a parsed AAR archive and
// decodes QNT images on demand, behind scene's context-aware
// BlobSource contract.
package source

import (
	"context"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/yuzusoft/scenekit/aar"
	"github.com/yuzusoft/scenekit/qnt"
)

// AarSource resolves blob and image loads against one parsed AAR
// archive.
type AarSource struct {
	ar *aar.Archive
}

// NewAarSource wraps an already-opened archive.
func NewAarSource(ar *aar.Archive) *AarSource {
	return &AarSource{ar: ar}
}

func (s *AarSource) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.ar.Exists(name), nil
}

func (s *AarSource) Filenames(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.ar.Filenames(), nil
}

func (s *AarSource) Load(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.ar.Load(name)
	if err != nil {
		return nil, errors.Wrapf(err, "source: loading %q", name)
	}
	return data, nil
}

func (s *AarSource) LoadImage(ctx context.Context, name string) (*qnt.Image, error) {
	data, err := s.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	img, err := qnt.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "source: decoding %q", name)
	}
	return img, nil
}

var frameNameRe = regexp.MustCompile(`^(.*)_(\d+)\.qnt$`)

// LoadImageList resolves "base" to its ordered _00.qnt, _01.qnt, ...
// animation-frame set (spec.md §10). Archive filenames are matched
// case-insensitively; a missing frame set is not an error, just an
// empty result, so callers fall back to a single LoadImage.
func (s *AarSource) LoadImageList(ctx context.Context, base string) ([]*qnt.Image, error) {
	names, err := s.Filenames(ctx)
	if err != nil {
		return nil, err
	}

	type indexedName struct {
		index int
		name  string
	}
	var matches []indexedName
	lowerBase := strings.ToLower(base)
	for _, n := range names {
		m := frameNameRe.FindStringSubmatch(strings.ToLower(n))
		if m == nil || m[1] != lowerBase {
			continue
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		matches = append(matches, indexedName{index: idx, name: n})
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.Slice(matches, func(a, b int) bool { return matches[a].index < matches[b].index })

	images := make([]*qnt.Image, len(matches))
	for i, m := range matches {
		img, err := s.LoadImage(ctx, m.name)
		if err != nil {
			return nil, errors.Wrapf(err, "source: frame %d (%q)", i, m.name)
		}
		images[i] = img
	}
	return images, nil
}
