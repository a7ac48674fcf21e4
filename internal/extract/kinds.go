package extract

import (
	"path/filepath"
	"strings"
)

// Kind is the document family a file is handled as.
type Kind int

const (
	KindUnknown Kind = iota
	KindPDF
	KindDOCX
	KindImage
	KindText
)

const (
	mediaPDF  = "application/pdf"
	mediaDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mediaText = "text/plain"
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindPDF:     "pdf",
	KindDOCX:    "docx",
	KindImage:   "image",
	KindText:    "text",
}

func (k Kind) String() string {
	return kindNames[k]
}

var extensionKinds = map[string]Kind{
	".pdf":  KindPDF,
	".docx": KindDOCX,
	".txt":  KindText,
	".png":  KindImage,
	".jpg":  KindImage,
	".jpeg": KindImage,
	".gif":  KindImage,
	".bmp":  KindImage,
	".tif":  KindImage,
	".tiff": KindImage,
	".webp": KindImage,
}

// KindOf resolves the kind from the declared media type, falling back to the
// file extension.
func KindOf(name, mediaType string) Kind {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = strings.TrimSpace(mediaType[:i])
	}

	switch {
	case mediaType == mediaPDF:
		return KindPDF
	case mediaType == mediaDOCX:
		return KindDOCX
	case strings.HasPrefix(mediaType, "image/"):
		return KindImage
	case mediaType == mediaText:
		return KindText
	}

	return extensionKinds[strings.ToLower(filepath.Ext(name))]
}

// MediaTypeFor guesses the media type of name from its extension. Unknown
// extensions return an empty string.
func MediaTypeFor(name string) string {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".pdf":
		return mediaPDF
	case ".docx":
		return mediaDOCX
	case ".txt":
		return mediaText
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".png", ".gif", ".bmp", ".webp":
		return "image/" + strings.TrimPrefix(ext, ".")
	default:
		return ""
	}
}
