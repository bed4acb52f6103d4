// Package model defines the core data structures shared across the
// lecturecast playback and download subsystems.
//
// # LectureRef
//
// LectureRef is an immutable catalog snapshot for one playable lecture:
//
//	lecture := model.LectureRef{ID: "lec-1", Title: "Intro", SpeakerName: "A. Rao"}
//	fmt.Println(lecture.FormatDuration())
//
// # Path Configuration
//
// PathConfig controls where offline copies are stored and how their
// filenames are computed using placeholders:
//
//	cfg := &model.PathConfig{
//	    DownloadsPath:  "/data/lectures",
//	    FileNameFormat: "{speaker} - {title}.mp3",
//	}
//	path := cfg.AudioPath(lecture)
//
// Available placeholders: {id}, {speaker}, {title}
package model
