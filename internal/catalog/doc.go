// Package catalog provides the lecture catalog API client.
//
// The catalog is the source of lecture metadata (model.LectureRef) and
// of time-limited presigned stream URLs. Resolved URLs are cached per
// lecture only until their declared expiry; an expired URL is always
// re-resolved, never reused.
//
// # Basic Usage
//
//	cat := catalog.NewClient("https://api.lecturecast.app/v1", http.NewClient())
//
//	lectures, err := cat.Lectures(ctx)
//	stream, err := cat.ResolveStreamURL(ctx, lectures[0].ID)
//
// The Resolver interface is what the playback session and download
// manager actually depend on, keeping them testable against stubs.
package catalog
