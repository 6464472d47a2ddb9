package deck

import (
	"bytes"
	"deckpack/internal/models"
	"deckpack/internal/providers"
	"fmt"
	json "github.com/goccy/go-json"
	"os"
	"path/filepath"
)

// FlashcardFile is the JSON document the CLI reads and writes.
type FlashcardFile struct {
	DeckName   string                 `json:"deckName,omitempty"`
	Flashcards []*models.Flashcard    `json:"flashcards"`
	Skipped    []PartialImportWarning `json:"skipped,omitempty"`
}

type FileManager struct {
	logger providers.Logger
}

func NewFileManager(logger providers.Logger) *FileManager {
	return &FileManager{logger: logger}
}

func (f *FileManager) SaveArchive(fileName string, archive []byte) error {
	return writeFileAtomic(fileName, archive)
}

func (f *FileManager) LoadArchive(fileName string) ([]byte, error) {
	return os.ReadFile(fileName)
}

func (f *FileManager) SaveFlashcards(fileName string, doc *FlashcardFile) error {
	if doc.Flashcards == nil {
		doc.Flashcards = []*models.Flashcard{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(fileName, append(data, '\n'))
}

// LoadFlashcards accepts the current document shape, a bare array of
// flashcards, and the older {"cards": [...]} wrapper.
func (f *FileManager) LoadFlashcards(fileName string) (*FlashcardFile, error) {
	data, err := os.ReadFile(fileName)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: empty flashcard file", fileName)
	}

	if data[0] == '[' {
		var cards []*models.Flashcard
		if err := json.Unmarshal(data, &cards); err != nil {
			return nil, fmt.Errorf("%s: %w", fileName, err)
		}
		f.logger.Warnf(providers.TypeApp, "%s holds a bare flashcard array, deck name left empty", fileName)
		return &FlashcardFile{Flashcards: cards}, nil
	}

	var doc struct {
		FlashcardFile
		Cards []*models.Flashcard `json:"cards"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	if doc.Flashcards == nil && doc.Cards != nil {
		f.logger.Warnf(providers.TypeApp, "%s uses the legacy \"cards\" key", fileName)
		doc.Flashcards = doc.Cards
	}
	if doc.Flashcards == nil {
		doc.Flashcards = []*models.Flashcard{}
	}
	return &doc.FlashcardFile, nil
}

// writeFileAtomic writes through a temporary sibling so readers never see a
// half written file.
func writeFileAtomic(fileName string, data []byte) error {
	tmpFile := fileName + ".tmp"
	if dir := filepath.Dir(fileName); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(tmpFile)
	if err != nil {
		return err
	}

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Sync(); err != nil {
		file.Close()
		os.Remove(tmpFile)
		return err
	}

	if err = file.Close(); err != nil {
		os.Remove(tmpFile)
		return err
	}

	return os.Rename(tmpFile, fileName)
}
