package validation

import (
	"bytes"
	"io"
)

type VideoType string

const (
	VideoTypeMP4      VideoType = "mp4"
	VideoTypeMatroska VideoType = "matroska"
	VideoTypeAVI      VideoType = "avi"
)

// MP4/MOV files carry an "ftyp" box at offset 4; Matroska/WebM starts with
// the EBML magic; AVI is a RIFF container with an "AVI " form type.
var (
	mp4Brand  = []byte("ftyp")
	ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}
	riffMagic = []byte("RIFF")
	aviForm   = []byte("AVI ")
)

// DetectVideoType sniffs the leading bytes of r and reports the container
// type. It reads at most 512 bytes; callers owning a seekable stream must
// rewind it afterwards.
func DetectVideoType(r io.Reader) (VideoType, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	buf = buf[:n]

	if n == 0 {
		return "", ErrEmptyFile
	}

	if n >= 12 && bytes.Equal(buf[4:8], mp4Brand) {
		return VideoTypeMP4, nil
	}
	if bytes.HasPrefix(buf, ebmlMagic) {
		return VideoTypeMatroska, nil
	}
	if n >= 12 && bytes.HasPrefix(buf, riffMagic) && bytes.Equal(buf[8:12], aviForm) {
		return VideoTypeAVI, nil
	}

	return "", ErrNotVideo
}
