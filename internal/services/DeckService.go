package services

import (
	"context"
	"deckpack/internal/deck"
	"deckpack/internal/models"
	"deckpack/internal/providers"
	"time"
)

const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomePartial  = "partial"
)

type DeckServiceInterface interface {
	Export(ctx context.Context, deckName string, cards []*models.Flashcard) (*deck.EncodeResult, error)
	Import(ctx context.Context, data []byte) (*deck.DecodeResult, error)
}

type DeckService struct {
	codec   deck.CodecInterface
	logger  providers.Logger
	metrics providers.MetricsProviderInterface
}

func NewDeckService(codec deck.CodecInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) DeckServiceInterface {
	return &DeckService{
		codec:   codec,
		logger:  logger,
		metrics: metrics,
	}
}

func (s *DeckService) Export(ctx context.Context, deckName string, cards []*models.Flashcard) (*deck.EncodeResult, error) {
	start := time.Now()
	res, err := s.codec.Encode(ctx, cards, deckName)
	duration := time.Since(start)
	s.metrics.ObserveCodecDuration("encode", duration)

	if err != nil {
		s.metrics.IncExports(outcomeOf(err))
		s.logger.Errorf(providers.TypeExport, "export of %q (%d flashcards) failed [%s]: %s",
			deckName, len(cards), deck.ErrorKind(err), err)
		return nil, err
	}

	s.metrics.IncExports(OutcomeOK)
	s.metrics.AddMediaBytes(res.MediaBytes)
	s.logger.Infof(providers.TypeExport, "exported %q: %d notes, %d cards, %d media files (%d bytes), archive %d bytes in %s",
		deckName, res.Notes, res.Cards, res.MediaFiles, res.MediaBytes, len(res.Archive), duration)
	return res, nil
}

func (s *DeckService) Import(ctx context.Context, data []byte) (*deck.DecodeResult, error) {
	start := time.Now()
	res, err := s.codec.Decode(ctx, data)
	duration := time.Since(start)
	s.metrics.ObserveCodecDuration("decode", duration)

	if err != nil {
		s.metrics.IncImports(outcomeOf(err))
		s.logger.Errorf(providers.TypeImport, "import of %d byte archive failed [%s]: %s",
			len(data), deck.ErrorKind(err), err)
		return nil, err
	}

	s.metrics.AddNotesSkipped(len(res.Skipped))
	if len(res.Skipped) > 0 {
		s.metrics.IncImports(OutcomePartial)
		for _, w := range res.Skipped {
			s.logger.Warnf(providers.TypeImport, "%s", w.Error())
		}
	} else {
		s.metrics.IncImports(OutcomeOK)
	}
	if len(res.MissingMedia) > 0 {
		s.logger.Warnf(providers.TypeImport, "%d referenced media files missing from archive: %v",
			len(res.MissingMedia), res.MissingMedia)
	}
	s.logger.Infof(providers.TypeImport, "imported %d of %d notes, %d skipped in %s",
		len(res.Flashcards), res.Total, len(res.Skipped), duration)
	return res, nil
}

// outcomeOf separates caller mistakes from server side failures.
func outcomeOf(err error) string {
	switch deck.ErrorKind(err) {
	case deck.KindFormat, deck.KindPayloadTooLarge, deck.KindInvalidState, deck.KindCanceled:
		return OutcomeRejected
	}
	return OutcomeFailed
}
