package renderer

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

var (
	gradientRe  = regexp.MustCompile(`(?s)<(?:linearGradient|radialGradient)[^>]*\bid\s*=\s*"([^"]+)".*?</(?:linearGradient|radialGradient)>`)
	stopColorRe = regexp.MustCompile(`<stop[^>]*?(?:stop-color\s*=\s*"([^"]+)"|style\s*=\s*"[^"]*stop-color\s*:\s*([^;"]+))`)
	imageTagRe  = regexp.MustCompile(`<image\b[^>]*>`)
	hrefRe      = regexp.MustCompile(`(?:xlink:)?href\s*=\s*"([^"]+)"`)
)

// sanitizeGradients rewrites every url(#id) fill/stroke reference to a solid
// color sampled from the gradient's first stop, since the vector replay
// cannot resolve gradient URLs. Returns the rewritten markup and whether
// anything changed; a change forces the raster backend for the entry.
func sanitizeGradients(svg []byte) ([]byte, bool) {
	s := string(svg)
	colors := map[string]string{}
	for _, m := range gradientRe.FindAllStringSubmatch(s, -1) {
		id := m[1]
		c := "#808080"
		if sm := stopColorRe.FindStringSubmatch(m[0]); sm != nil {
			if sm[1] != "" {
				c = strings.TrimSpace(sm[1])
			} else {
				c = strings.TrimSpace(sm[2])
			}
		}
		colors[id] = c
	}
	if len(colors) == 0 {
		return svg, false
	}

	changed := false
	for id, c := range colors {
		for _, ref := range []string{
			fmt.Sprintf("url(#%s)", id),
			fmt.Sprintf("url('#%s')", id),
			fmt.Sprintf("url(%q)", "#"+id),
		} {
			if strings.Contains(s, ref) {
				s = strings.ReplaceAll(s, ref, c)
				changed = true
			}
		}
	}
	return []byte(s), changed
}

// hasRasterImage reports whether the markup embeds a raster sub-image,
// which the vector replay cannot draw.
func hasRasterImage(svg []byte) bool {
	return imageTagRe.Match(svg)
}

// localizeImages resolves relative image references against the asset's own
// directory. Paths escaping that directory are dropped. Depending on render
// mode the referenced bytes are inlined as data URIs (raster backends read
// the markup with no filesystem context) or copied into the local cache
// directory. Best effort: unresolvable references are left untouched and
// the entry later degrades to a placeholder.
func localizeImages(svg []byte, assetDir, cacheDir string, inline bool) []byte {
	if assetDir == "" {
		return svg
	}
	absDir, err := filepath.Abs(assetDir)
	if err != nil {
		return svg
	}

	return imageTagRe.ReplaceAllFunc(svg, func(tag []byte) []byte {
		m := hrefRe.FindSubmatch(tag)
		if m == nil {
			return tag
		}
		ref := string(m[1])
		if strings.HasPrefix(ref, "data:") || strings.Contains(ref, "://") || filepath.IsAbs(ref) {
			return tag
		}

		full, err := filepath.Abs(filepath.Join(absDir, ref))
		if err != nil || !strings.HasPrefix(full, absDir+string(filepath.Separator)) {
			log.Warn().Str("ref", ref).Msg("image reference escapes asset directory, dropped")
			return tag
		}
		data, err := os.ReadFile(full)
		if err != nil {
			log.Debug().Err(err).Str("ref", ref).Msg("referenced image unreadable")
			return tag
		}

		var replacement string
		if inline {
			mt := mimetype.Detect(data)
			replacement = fmt.Sprintf("data:%s;base64,%s", mt.String(), base64.StdEncoding.EncodeToString(data))
		} else {
			if cacheDir == "" {
				return tag
			}
			if err := os.MkdirAll(cacheDir, 0o755); err != nil {
				return tag
			}
			local := filepath.Join(cacheDir, filepath.Base(full))
			if err := os.WriteFile(local, data, 0o644); err != nil {
				return tag
			}
			replacement = local
		}
		return hrefRe.ReplaceAll(tag, []byte(fmt.Sprintf(`href=%q`, replacement)))
	})
}
