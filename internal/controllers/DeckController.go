package controllers

import (
	"deckpack/internal/deck"
	"deckpack/internal/models"
	"deckpack/internal/providers"
	"deckpack/internal/services"
	"deckpack/internal/structures"
	"errors"
	"fmt"
	"github.com/cespare/xxhash/v2"
	json "github.com/goccy/go-json"
	"github.com/gookit/validate"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// StatusClientClosedRequest is reported when the caller went away mid-call.
const StatusClientClosedRequest = 499

const minRequestBodySize = 1 << 20 // 1 MB

type DeckController struct {
	logger  providers.Logger
	service services.DeckServiceInterface
	cache   providers.CacheProviderInterface
	conf    *structures.Config
}

func NewDeckController(logger providers.Logger, service services.DeckServiceInterface, cache providers.CacheProviderInterface, conf *structures.Config) *DeckController {
	return &DeckController{
		logger:  logger,
		service: service,
		cache:   cache,
		conf:    conf,
	}
}

type exportRequest struct {
	DeckName   string              `json:"deckName" validate:"required|max_len:200"`
	Flashcards []*models.Flashcard `json:"flashcards"`
}

type importResponse struct {
	Flashcards   []*models.Flashcard         `json:"flashcards"`
	Skipped      []deck.PartialImportWarning `json:"skipped"`
	Total        int                         `json:"total"`
	Imported     int                         `json:"imported"`
	MissingMedia []string                    `json:"missing_media,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// exportBodyLimit leaves room for base64 inflated media plus the JSON around it.
func exportBodyLimit(conf *structures.Config) int64 {
	return max(conf.Codec.MaxMediaBytes*2, minRequestBodySize)
}

func (dc *DeckController) Export(w http.ResponseWriter, r *http.Request) {
	body, ok := dc.readBody(w, r, exportBodyLimit(dc.conf))
	if !ok {
		return
	}
	var req exportRequest
	if err := json.Unmarshal(body, &req); err != nil {
		dc.writeError(w, http.StatusBadRequest, "bad_request", "Bad Request")
		return
	}
	req.DeckName = strings.TrimSpace(req.DeckName)

	v := validate.Struct(&req)
	if !v.Validate() {
		dc.writeError(w, http.StatusBadRequest, "validation", v.Errors.One())
		return
	}

	res, err := dc.service.Export(r.Context(), req.DeckName, req.Flashcards)
	if err != nil {
		dc.writeCodecError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/apkg")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, archiveFileName(req.DeckName, time.Now())))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Archive)))
	w.Header().Set("X-Deck-Notes", strconv.Itoa(res.Notes))
	w.Header().Set("X-Deck-Cards", strconv.Itoa(res.Cards))
	w.Header().Set("X-Deck-Media", strconv.Itoa(res.MediaFiles))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Archive)
}

func (dc *DeckController) Import(w http.ResponseWriter, r *http.Request) {
	body, ok := dc.readBody(w, r, dc.conf.Codec.MaxArchiveBytes)
	if !ok {
		return
	}

	cacheKey := "import:" + strconv.FormatUint(xxhash.Sum64(body), 16)
	if data, ok := dc.cache.Get(cacheKey); ok {
		dc.logger.Debugf(providers.TypeImport, "serving cached import %s", cacheKey)
		writeJSON(w, http.StatusOK, data)
		return
	}

	res, err := dc.service.Import(r.Context(), body)
	if err != nil {
		dc.writeCodecError(w, err)
		return
	}

	gson, err := json.Marshal(importResponse{
		Flashcards:   res.Flashcards,
		Skipped:      res.Skipped,
		Total:        res.Total,
		Imported:     len(res.Flashcards),
		MissingMedia: res.MissingMedia,
	})
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	dc.cache.Set(cacheKey, gson)
	writeJSON(w, http.StatusOK, gson)
}

func (dc *DeckController) readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	body, err := io.ReadAll(r.Body)
	if err == nil {
		return body, true
	}
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		dc.writeError(w, http.StatusRequestEntityTooLarge, deck.KindPayloadTooLarge, fmt.Sprintf("request body exceeds %d bytes", limit))
		return nil, false
	}
	dc.writeError(w, http.StatusBadRequest, "bad_request", "Bad Request")
	return nil, false
}

// StatusForError maps codec failures onto HTTP status codes.
func StatusForError(err error) int {
	switch deck.ErrorKind(err) {
	case deck.KindFormat:
		return http.StatusUnprocessableEntity
	case deck.KindArchive:
		return http.StatusBadRequest
	case deck.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case deck.KindInvalidState:
		return http.StatusConflict
	case deck.KindCanceled:
		return StatusClientClosedRequest
	}
	return http.StatusInternalServerError
}

func (dc *DeckController) writeCodecError(w http.ResponseWriter, err error) {
	status := StatusForError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal Server Error"
	}
	dc.writeError(w, status, deck.ErrorKind(err), msg)
}

func (dc *DeckController) writeError(w http.ResponseWriter, status int, kind, msg string) {
	gson, err := json.Marshal(errorResponse{Error: msg, Kind: kind})
	if err != nil {
		http.Error(w, msg, status)
		return
	}
	writeJSON(w, status, gson)
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}._-]+`)

// archiveFileName builds "<deck>_<unix>.apkg" with the deck name reduced to
// characters safe in a Content-Disposition header.
func archiveFileName(deckName string, now time.Time) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(deckName, "_"), "_")
	if name == "" {
		name = "deck"
	}
	return fmt.Sprintf("%s_%d.apkg", name, now.Unix())
}
