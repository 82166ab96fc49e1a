package library

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"math/rand"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dhowden/tag"
	log "github.com/sirupsen/logrus"
)

// The builtin MIME table does not cover audio, so the common formats are
// listed here.
var audioTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".wav":  "audio/wav",
}

// ReadLocalFile reads an audio file into a self-contained local track. The
// name of the returned record is a guess based on the file's metadata tags,
// or its file name if it has none.
func ReadLocalFile(filename string) (RawTrack, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return RawTrack{}, err
	}
	mimeType, ok := audioTypes[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		mimeType = mime.TypeByExtension(filepath.Ext(filename))
	}
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !strings.HasPrefix(mimeType, "audio/") {
		return RawTrack{}, fmt.Errorf("%s is not an audio file (%s): %w", filename, mimeType, ErrInvalidTrack)
	}

	return RawTrack{
		Type:    string(TypeLocal),
		Name:    guessName(filename, data),
		DataURL: "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
	}, nil
}

func guessName(filename string, data []byte) string {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil || m.Title() == "" {
		return filepath.Base(filename)
	}
	if artist := m.Artist(); artist != "" {
		return artist + " - " + m.Title()
	}
	return m.Title()
}

// A Prompter asks the user a question. The suggestion is presented as the
// default answer.
type Prompter interface {
	Prompt(question, suggestion string) (string, error)
}

// PrompterFunc adapts a function to the Prompter interface.
type PrompterFunc func(question, suggestion string) (string, error)

// Prompt implements the Prompter interface.
func (fn PrompterFunc) Prompt(question, suggestion string) (string, error) {
	return fn(question, suggestion)
}

var genericFileNameRe = regexp.MustCompile(`(?i)^track-\d+\.mp3$`)

// ResolveName decides on a display name for a new track. A guess that is not
// blank or a generic download name like "track-12.mp3" is used as is.
// Otherwise the user is asked, with the guess as suggestion. If the user does
// not answer, the guess is used, or a random name if the guess is blank.
func ResolveName(guess, question string, prompter Prompter) string {
	cleaned := strings.TrimSpace(guess)
	if cleaned != "" && !genericFileNameRe.MatchString(cleaned) {
		return cleaned
	}
	var answer string
	if prompter != nil {
		var err error
		if answer, err = prompter.Prompt(question, cleaned); err != nil {
			log.Debugf("Could not prompt for a track name: %v", err)
			answer = ""
		}
	}
	if answer = strings.TrimSpace(answer); answer != "" {
		return answer
	}
	if cleaned != "" {
		return cleaned
	}
	return fmt.Sprintf("Track %d", rand.Intn(1000))
}
