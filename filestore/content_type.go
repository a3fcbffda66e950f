package filestore

import (
	"mime"
	"path"
	"regexp"
	"strings"
)

// Common MIME content types.
const (
	ContentTypeJPEG = "image/jpeg"
	ContentTypePNG  = "image/png"
	ContentTypeGIF  = "image/gif"
	ContentTypeWebP = "image/webp"
	ContentTypeSVG  = "image/svg+xml"
	ContentTypeBMP  = "image/bmp"
	ContentTypeTIFF = "image/tiff"

	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeHTML = "text/html; charset=utf-8"
	ContentTypeCSV  = "text/csv"
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"
	ContentTypeZIP  = "application/zip"
	ContentTypeGZIP = "application/gzip"
	ContentTypeMP3  = "audio/mpeg"
	ContentTypeMP4  = "video/mp4"

	ContentTypeOctetStream = "application/octet-stream"
)

//nolint:gochecknoglobals // static lookup tables
var (
	contentTypesByExt = map[string]string{
		".jpg":  ContentTypeJPEG,
		".jpeg": ContentTypeJPEG,
		".png":  ContentTypePNG,
		".gif":  ContentTypeGIF,
		".webp": ContentTypeWebP,
		".svg":  ContentTypeSVG,
		".bmp":  ContentTypeBMP,
		".tif":  ContentTypeTIFF,
		".tiff": ContentTypeTIFF,
		".pdf":  ContentTypePDF,
		".txt":  ContentTypeText,
		".html": ContentTypeHTML,
		".htm":  ContentTypeHTML,
		".csv":  ContentTypeCSV,
		".json": ContentTypeJSON,
		".xml":  ContentTypeXML,
		".zip":  ContentTypeZIP,
		".gz":   ContentTypeGZIP,
		".mp3":  ContentTypeMP3,
		".mp4":  ContentTypeMP4,
	}

	sizeSuffix = regexp.MustCompile(`_\d+$`)
)

// ContentTypeByPath infers a content type from the extension of p.
// A trailing "_<digits>" thumbnail suffix is ignored, so "a.png_250" is
// image/png. Unknown extensions yield application/octet-stream.
func ContentTypeByPath(p string) string {
	ext := strings.ToLower(path.Ext(sizeSuffix.ReplaceAllString(p, "")))
	if ext == "" {
		return ContentTypeOctetStream
	}
	if ct, ok := contentTypesByExt[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return ContentTypeOctetStream
}
