package naming

import (
	"fmt"
	"path"
	"strings"

	"github.com/tendant/simple-video-pipeline/pkg/pipeline"
)

// Output formats for generated derivatives
const (
	ThumbnailFormat   = "png"
	SpriteSheetFormat = "webp"
	ThumbnailCount    = 3
)

// Prefixes marking objects the pipeline itself produced
const (
	PreviewPrefix     = "preview_"
	SpriteSheetPrefix = "sprite_"
	ThumbnailPrefix   = "thumb_"
)

// VideoIdentity is derived from the uploaded object's file name.
// BaseName doubles as the video ID used to key the metadata record.
type VideoIdentity struct {
	BaseName string
	Ext      string
}

// Identify splits objectPath into base name and extension
func Identify(objectPath string) VideoIdentity {
	file := path.Base(objectPath)
	ext := path.Ext(file)
	return VideoIdentity{
		BaseName: strings.TrimSuffix(file, ext),
		Ext:      strings.TrimPrefix(ext, "."),
	}
}

// FileName returns the original file name including extension
func (v VideoIdentity) FileName() string {
	if v.Ext == "" {
		return v.BaseName
	}
	return v.BaseName + "." + v.Ext
}

// VideoID is the metadata record key
func (v VideoIdentity) VideoID() string {
	return v.BaseName
}

func safe(name string) string {
	return strings.ReplaceAll(name, " ", "_")
}

// ThumbnailFile returns the file name for thumbnail index (1-based)
func (v VideoIdentity) ThumbnailFile(index int) string {
	return fmt.Sprintf("%s%s_%d.%s", ThumbnailPrefix, safe(v.BaseName), index, ThumbnailFormat)
}

// PreviewFile returns the file name of the preview clip
func (v VideoIdentity) PreviewFile() string {
	return PreviewPrefix + safe(v.FileName())
}

// SpriteSheetFile returns the file name of the sprite sheet
func (v VideoIdentity) SpriteSheetFile() string {
	return fmt.Sprintf("%s%s.%s", SpriteSheetPrefix, safe(v.BaseName), SpriteSheetFormat)
}

// SourceFile is the local name used for the downloaded source
func (v VideoIdentity) SourceFile() string {
	return safe(v.FileName())
}

// ThumbnailPath returns thumbnails/{base}/thumb_{base}_{index}.png
func (v VideoIdentity) ThumbnailPath(index int) string {
	return path.Join(pipeline.DerivedTypeThumbnail, v.BaseName, v.ThumbnailFile(index))
}

// PreviewPath returns previews/{base}/preview_{base}.{ext}
func (v VideoIdentity) PreviewPath() string {
	return path.Join(pipeline.DerivedTypePreview, v.BaseName, v.PreviewFile())
}

// SpriteSheetPath returns spritesheets/{base}/sprite_{base}.webp
func (v VideoIdentity) SpriteSheetPath() string {
	return path.Join(pipeline.DerivedTypeSpriteSheet, v.BaseName, v.SpriteSheetFile())
}

// Decision is the guard's verdict for one upload and job
type Decision struct {
	Process bool
	Reason  string
}

// Skip reasons
const (
	ReasonNotVideo       = "not a video"
	ReasonDerivative     = "derivative of a derivative"
	ReasonAlreadyCorrect = "already correct type"
)

// ShouldProcess decides whether job runs for the uploaded object.
// Rules are evaluated in order and the first match wins.
func ShouldProcess(objectPath, contentType, job string) Decision {
	if !strings.HasPrefix(contentType, "video/") {
		return Decision{Reason: ReasonNotVideo}
	}

	base := Identify(objectPath).BaseName
	if strings.HasPrefix(base, PreviewPrefix) || strings.HasPrefix(base, SpriteSheetPrefix) {
		return Decision{Reason: ReasonDerivative}
	}

	if job == pipeline.JobThumbnail && strings.HasSuffix(contentType, "/"+ThumbnailFormat) {
		return Decision{Reason: ReasonAlreadyCorrect}
	}

	return Decision{Process: true}
}
