// Package exif reads capture time and camera details from image files.
//
// Extraction is best-effort: a file without readable EXIF data yields an
// empty Metadata together with an error the caller is expected to log and
// ignore. JPEG and TIFF are decoded in-process; other formats (HEIC, PNG,
// camera RAW) can be read through the exiftool binary when it is enabled.
package exif
