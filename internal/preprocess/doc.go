// Package preprocess turns rendered canvases into encoder-ready frames:
// orientation correction, supersample downscaling, and sharpening.
package preprocess
