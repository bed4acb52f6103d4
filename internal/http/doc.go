// Package http provides the HTTP client shared by the catalog client,
// the download manager, and the progress-sync pusher.
//
// The Client in this package handles:
//   - User-Agent headers
//   - JSON GET/POST helpers for API calls
//   - Streaming body access for large media transfers
//   - File size retrieval via HEAD requests
//
// # Basic Usage
//
//	client := http.NewClient()
//
//	// Fetch catalog metadata
//	var lectures []model.LectureRef
//	err := client.GetJSON(ctx, baseURL+"/lectures", &lectures)
//
//	// Stream a presigned media URL
//	body, size, err := client.Open(ctx, streamURL)
//
// # Progress Tracking
//
// The ProgressWriter type can be used to wrap any io.Writer for progress
// tracking:
//
//	pw := &http.ProgressWriter{
//	    Writer:   file,
//	    Total:    contentLength,
//	    OnUpdate: func(written, total int64) { /* update UI */ },
//	}
package http
