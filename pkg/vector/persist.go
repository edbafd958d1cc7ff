package vector

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	messagesFile   = "messages.json"
	embeddingsFile = "embeddings.json"
	metadataFile   = "metadata.json"
)

// persister snapshots store contents to a directory as three JSON files.
// Snapshots are written after every mutating call while the store lock is
// held, so the three files always reflect one consistent state.
type persister struct {
	dir string
}

func newPersister(dir string) *persister {
	return &persister{dir: dir}
}

// save writes the full store state. Each file is written via a temp file and
// rename so a crash mid-write never leaves a truncated snapshot.
func (p *persister) save(s *Store) error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("creating snapshot dir: %w", err)
	}

	if err := p.writeJSON(messagesFile, s.messages); err != nil {
		return err
	}
	if err := p.writeJSON(embeddingsFile, s.embeddings); err != nil {
		return err
	}
	return p.writeJSON(metadataFile, s.metadata)
}

// load reads any snapshot files present into the store. A missing file is
// not an error: the corresponding map stays empty.
func (p *persister) load(s *Store) error {
	if err := p.readJSON(messagesFile, &s.messages); err != nil {
		return err
	}
	if err := p.readJSON(embeddingsFile, &s.embeddings); err != nil {
		return err
	}
	return p.readJSON(metadataFile, &s.metadata)
}

func (p *persister) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}

	path := filepath.Join(p.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("renaming %s: %w", name, err)
	}
	return nil
}

func (p *persister) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(p.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", name, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", name, err)
	}
	return nil
}
