package convert

import "errors"

// ErrEncoding indicates a lossless file could not be transcoded to MP3.
var ErrEncoding = errors.New("encoding failed")
