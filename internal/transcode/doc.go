// Package transcode re-encodes finished video captures into AV1 archive
// copies with the Drapto library.
package transcode
