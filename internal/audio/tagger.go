package audio

import (
	"fmt"
	"os"

	"github.com/bogem/id3v2"

	"github.com/lecturecast/lecturecast/internal/model"
)

// Tagger writes ID3 tags to downloaded lecture MP3 files.
//
// Tags are written into the temp file before it is promoted, so a
// completed offline copy always carries its metadata:
//   - Title (TIT2), Speaker (TPE1)
//   - Published year (TYER)
//   - Duration in milliseconds (TLEN)
//   - Cover art (APIC), when artwork bytes are provided
//
// Example:
//
//	tagger := audio.NewTagger(true)
//	err := tagger.Tag(tempPath, lecture, artworkJPEG)
type Tagger struct {
	modifyTags bool
}

// NewTagger creates a Tagger. When modifyTags is false only artwork is
// embedded; text frames are left untouched.
func NewTagger(modifyTags bool) *Tagger {
	return &Tagger{modifyTags: modifyTags}
}

// Tag writes lecture metadata (and optional JPEG artwork) to the MP3
// file at path. A nil artwork slice skips the picture frame.
func (t *Tagger) Tag(path string, lecture model.LectureRef, artwork []byte) error {
	if !t.modifyTags && artwork == nil {
		return nil
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		if os.IsNotExist(err) {
			tag = id3v2.NewEmptyTag()
		} else {
			return err
		}
	}
	defer tag.Close()

	if t.modifyTags {
		tag.SetTitle(lecture.Title)
		tag.SetArtist(lecture.SpeakerName)

		if !lecture.PublishedAt.IsZero() {
			tag.AddTextFrame("TYER", id3v2.EncodingUTF8, lecture.PublishedAt.Format("2006"))
			tag.AddTextFrame("TDRC", id3v2.EncodingUTF8, lecture.PublishedAt.Format("2006-01-02"))
		}
		if lecture.DurationSeconds > 0 {
			tag.AddTextFrame("TLEN", id3v2.EncodingUTF8, fmt.Sprintf("%d", int64(lecture.DurationSeconds*1000)))
		}
	}

	if artwork != nil {
		tag.DeleteFrames(tag.CommonID("Attached picture"))
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/jpeg",
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     artwork,
		})
	}

	return tag.Save()
}
