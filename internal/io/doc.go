// Package ioutils provides file system and image processing utilities.
//
// # File Operations
//
//	// Ensure directory exists
//	err := ioutils.EnsureDir("/data/lectures")
//
//	// Write data to file
//	err := ioutils.WriteFile(ctx, "/data/lectures/playlist.m3u", content)
//
// # Image Processing
//
// The ImageService prepares lecture thumbnails for offline storage and
// ID3 embedding:
//
//	svc := ioutils.NewImageService()
//
//	// Resize to fit within 500x500, re-encoded as JPEG
//	resized, _ := svc.ResizeImage(ctx, imageData, 500, 500)
//
//	// Convert PNG/GIF artwork to JPEG
//	jpeg, _ := svc.ConvertToJPEG(ctx, pngData)
package ioutils
