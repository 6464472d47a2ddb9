package internal

import (
	"context"
	"deckpack/internal/deck"
	"deckpack/internal/providers"
	"deckpack/internal/services"
	"deckpack/internal/structures"
	"fmt"
	"path/filepath"
	"strings"
)

const (
	CommandServe  = "serve"
	CommandExport = "export"
	CommandImport = "import"
)

// Tool runs a single export or import against files on disk.
type Tool struct {
	service services.DeckServiceInterface
	files   *deck.FileManager
	logger  providers.Logger
	flags   *structures.CliFlags
}

func NewTool(service services.DeckServiceInterface, files *deck.FileManager, logger providers.Logger, flags *structures.CliFlags) *Tool {
	return &Tool{
		service: service,
		files:   files,
		logger:  logger,
		flags:   flags,
	}
}

func (t *Tool) Run(ctx context.Context) error {
	defer t.logger.Close()
	if t.flags.Input == "" {
		return fmt.Errorf("%s: input file is required", t.flags.Command)
	}

	switch t.flags.Command {
	case CommandExport:
		return t.export(ctx)
	case CommandImport:
		return t.doImport(ctx)
	}
	return fmt.Errorf("unknown command %q", t.flags.Command)
}

func (t *Tool) export(ctx context.Context) error {
	doc, err := t.files.LoadFlashcards(t.flags.Input)
	if err != nil {
		return err
	}

	deckName := firstNonBlank(t.flags.DeckName, doc.DeckName, baseName(t.flags.Input))
	res, err := t.service.Export(ctx, deckName, doc.Flashcards)
	if err != nil {
		return err
	}

	output := t.flags.Output
	if output == "" {
		output = withExt(t.flags.Input, ".apkg")
	}
	if err = t.files.SaveArchive(output, res.Archive); err != nil {
		return err
	}
	t.logger.Infof(providers.TypeExport, "wrote %s (%d notes, %d cards)", output, res.Notes, res.Cards)
	return nil
}

func (t *Tool) doImport(ctx context.Context) error {
	data, err := t.files.LoadArchive(t.flags.Input)
	if err != nil {
		return err
	}

	res, err := t.service.Import(ctx, data)
	if err != nil {
		return err
	}

	output := t.flags.Output
	if output == "" {
		output = withExt(t.flags.Input, ".json")
	}
	doc := &deck.FlashcardFile{
		DeckName:   firstNonBlank(t.flags.DeckName, baseName(t.flags.Input)),
		Flashcards: res.Flashcards,
		Skipped:    res.Skipped,
	}
	if err = t.files.SaveFlashcards(output, doc); err != nil {
		return err
	}
	t.logger.Infof(providers.TypeImport, "wrote %s (%d of %d notes)", output, len(res.Flashcards), res.Total)
	return nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func baseName(fileName string) string {
	return strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
}

func withExt(fileName, ext string) string {
	return strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ext
}
