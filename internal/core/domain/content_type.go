package domain

import (
	"mime"
	"path/filepath"
	"strings"
)

// ContentType is the closed set of formats the parser distinguishes.
type ContentType int

const (
	// ContentTypeUnsupported has no extraction strategy.
	ContentTypeUnsupported ContentType = iota
	ContentTypeText
	ContentTypePDF
	ContentTypeWordDocument
	ContentTypeOpenDocument
	ContentTypeRTF
	ContentTypeHTML
)

var contentTypeNames = map[ContentType]string{
	ContentTypeUnsupported:  "unsupported",
	ContentTypeText:         "text",
	ContentTypePDF:          "pdf",
	ContentTypeWordDocument: "word",
	ContentTypeOpenDocument: "opendocument",
	ContentTypeRTF:          "rtf",
	ContentTypeHTML:         "html",
}

func (c ContentType) String() string {
	if name, ok := contentTypeNames[c]; ok {
		return name
	}
	return "unsupported"
}

// Paginated reports whether the format is extracted page by page.
func (c ContentType) Paginated() bool {
	return c == ContentTypePDF
}

var mimeContentTypes = map[string]ContentType{
	"application/pdf": ContentTypePDF,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ContentTypeWordDocument,
	"application/msword":                      ContentTypeWordDocument,
	"application/vnd.oasis.opendocument.text": ContentTypeOpenDocument,
	"application/rtf":                         ContentTypeRTF,
	"text/rtf":                                ContentTypeRTF,
	"text/html":                               ContentTypeHTML,
	"application/xhtml+xml":                   ContentTypeHTML,
	"application/json":                        ContentTypeText,
	"application/xml":                         ContentTypeText,
	"application/yaml":                        ContentTypeText,
	"application/x-yaml":                      ContentTypeText,
	"application/csv":                         ContentTypeText,
	"application/x-ndjson":                    ContentTypeText,
}

// Declared types that say nothing about the payload; the filename decides.
var genericMIMETypes = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
}

var extensionContentTypes = map[string]ContentType{
	".txt":  ContentTypeText,
	".md":   ContentTypeText,
	".csv":  ContentTypeText,
	".log":  ContentTypeText,
	".json": ContentTypeText,
	".yaml": ContentTypeText,
	".yml":  ContentTypeText,
	".xml":  ContentTypeText,
	".pdf":  ContentTypePDF,
	".docx": ContentTypeWordDocument,
	".doc":  ContentTypeWordDocument,
	".odt":  ContentTypeOpenDocument,
	".rtf":  ContentTypeRTF,
	".html": ContentTypeHTML,
	".htm":  ContentTypeHTML,
}

// Extensions that are never worth handing to the line extractor.
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".bin": true,
	".zip": true, ".gz": true, ".tgz": true, ".bz2": true, ".xz": true, ".7z": true, ".rar": true, ".tar": true,
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".bmp": true, ".webp": true, ".tiff": true, ".ico": true, ".heic": true,
	".mp3": true, ".wav": true, ".flac": true, ".ogg": true, ".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true,
	".woff": true, ".woff2": true, ".ttf": true, ".otf": true,
	".xls": true, ".xlsx": true, ".ppt": true, ".pptx": true, ".wasm": true, ".class": true, ".jar": true,
}

// Media type families whose payload is binary.
var binaryMIMEPrefixes = []string{"image/", "audio/", "video/", "font/"}

var binaryMIMETypes = map[string]bool{
	"application/zip":              true,
	"application/gzip":             true,
	"application/x-gzip":           true,
	"application/x-tar":            true,
	"application/x-7z-compressed":  true,
	"application/x-rar-compressed": true,
	"application/x-msdownload":     true,
	"application/x-executable":     true,
	"application/wasm":             true,
	"application/java-archive":     true,
	"application/vnd.ms-excel":     true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
}

// ResolveContentType maps a declared MIME type to a ContentType.
// Parameters such as charset are ignored. A generic or empty declared type
// falls back to the filename extension. Types that are neither mapped nor
// known to be binary resolve to ContentTypeText, and the line extractor
// rejects payloads that turn out not to be text.
func ResolveContentType(declared, filename string) ContentType {
	mediaType := normalizeMIMEType(declared)

	if genericMIMETypes[mediaType] {
		return contentTypeFromExtension(filename)
	}

	if ct, ok := mimeContentTypes[mediaType]; ok {
		return ct
	}

	if strings.HasPrefix(mediaType, "text/") {
		return ContentTypeText
	}

	if isBinaryMIMEType(mediaType) {
		return ContentTypeUnsupported
	}
	return ContentTypeText
}

// DetectMIMEType returns the declared type, or a type guessed from the
// filename when the declared one is generic.
func DetectMIMEType(declared, filename string) string {
	if !genericMIMETypes[normalizeMIMEType(declared)] {
		return declared
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}

func contentTypeFromExtension(filename string) ContentType {
	ext := strings.ToLower(filepath.Ext(filename))
	if ct, ok := extensionContentTypes[ext]; ok {
		return ct
	}
	if binaryExtensions[ext] {
		return ContentTypeUnsupported
	}
	if byExt := normalizeMIMEType(mime.TypeByExtension(ext)); byExt != "" && isBinaryMIMEType(byExt) {
		return ContentTypeUnsupported
	}
	return ContentTypeText
}

func isBinaryMIMEType(mediaType string) bool {
	if binaryMIMETypes[mediaType] {
		return true
	}
	for _, prefix := range binaryMIMEPrefixes {
		if strings.HasPrefix(mediaType, prefix) {
			return true
		}
	}
	return false
}

func normalizeMIMEType(mimeType string) string {
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = mimeType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
