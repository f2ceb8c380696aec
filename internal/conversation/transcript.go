package conversation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/CrewClaw/CrewClaw/internal/provider"
)

// Transcripts persists conversation snapshots as JSONL files, one per
// session key: a metadata line followed by one line per message.
type Transcripts struct {
	dir string
}

// NewTranscripts creates a transcript store under dir, creating it if
// needed. An empty dir defaults to ~/.crewclaw/sessions.
func NewTranscripts(dir string) *Transcripts {
	if dir == "" {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".crewclaw", "sessions")
	}
	os.MkdirAll(dir, 0755)
	return &Transcripts{dir: dir}
}

type transcriptMeta struct {
	Type    string    `json:"_type"`
	SavedAt time.Time `json:"saved_at"`
}

// Save writes the full history for a session key, replacing any
// previous transcript.
func (t *Transcripts) Save(key string, messages []provider.Message) error {
	file, err := os.Create(t.path(key))
	if err != nil {
		return fmt.Errorf("create transcript: %w", err)
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	if err := enc.Encode(transcriptMeta{Type: "metadata", SavedAt: time.Now()}); err != nil {
		return err
	}
	for _, msg := range messages {
		if err := enc.Encode(msg); err != nil {
			return err
		}
	}
	return nil
}

// Load reads a session transcript. A missing file returns an empty
// history and no error.
func (t *Transcripts) Load(key string) ([]provider.Message, error) {
	file, err := os.Open(t.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	var messages []provider.Message
	dec := json.NewDecoder(file)
	for dec.More() {
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			break
		}
		var check map[string]any
		if json.Unmarshal(raw, &check) == nil && check["_type"] == "metadata" {
			continue
		}
		var msg provider.Message
		if json.Unmarshal(raw, &msg) == nil {
			messages = append(messages, msg)
		}
	}
	return messages, nil
}

func (t *Transcripts) path(key string) string {
	safe := strings.NewReplacer(":", "_", "/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(t.dir, filepath.Base(safe)+".jsonl")
}
