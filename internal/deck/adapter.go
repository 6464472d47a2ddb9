package deck

import (
	"bytes"
	"deckpack/internal/models"
	json "github.com/goccy/go-json"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/unicode/norm"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TypeTagPrefix marks the tag that carries the original flashcard type of a
// note encoded through the lossy fallback.
const TypeTagPrefix = "deckpack::type::"

// maxFieldArity bounds how many fields a decoded note may carry before it is
// considered corrupt.
const maxFieldArity = 64

// NoteContent is the archive-side shape of one flashcard.
type NoteContent struct {
	Fields  []string
	Tags    []string
	Data    string
	Reverse bool
}

// MediaResolver turns archive media names back into inline payloads.
type MediaResolver interface {
	ResolveMediaReferences(content string) string
	ResolveMediaName(name string) string
}

type FlashcardAdapter struct {
	media     *MediaRegistry
	cleanHTML bool
}

func NewFlashcardAdapter(media *MediaRegistry) *FlashcardAdapter {
	return &FlashcardAdapter{media: media}
}

// SetCleanHTML enables wrapper and entity cleanup of decoded fields.
func (a *FlashcardAdapter) SetCleanHTML(enabled bool) {
	a.cleanHTML = enabled
}

// RequiresReverse reports whether any card needs the second template.
func RequiresReverse(cards []*models.Flashcard) bool {
	for _, c := range cards {
		if c == nil {
			continue
		}
		if t, ok := models.ParseFlashcardType(string(c.Type)); ok && t == models.TypeInverted {
			return true
		}
	}
	return false
}

func (a *FlashcardAdapter) ToNoteFields(card *models.Flashcard) (*NoteContent, error) {
	typ, ok := models.ParseFlashcardType(string(card.Type))
	if !ok {
		typ = models.TypeBasic
	}

	w, err := a.rewriteMedia(card)
	if err != nil {
		return nil, err
	}
	w.Type = typ

	var front, back string
	switch typ {
	case models.TypeCloze:
		front, back = w.Text, w.Extra
		if front == "" {
			front = w.Front
		}
	case models.TypeOcclusion:
		if w.ImageRef != "" {
			front = `<img src="` + w.ImageRef + `">`
		} else if w.Image != "" {
			front = `<img src="` + html.EscapeString(w.Image) + `">`
		}
		answers := make([]string, 0, len(w.OcclusionAreas))
		for _, area := range w.OcclusionAreas {
			if area.Answer != "" {
				answers = append(answers, area.Answer)
			}
		}
		back = strings.Join(answers, "<br>")
	case models.TypeMultipleChoice:
		front, back = renderChoices(w)
	case models.TypeTrueFalse:
		front, back = firstNonEmpty(w.Statement, w.Front), firstNonEmpty(w.Answer, w.Back)
	case models.TypeTypeAnswer:
		front, back = firstNonEmpty(w.Question, w.Front), firstNonEmpty(w.Answer, w.Back)
	default:
		front, back = w.Front, w.Back
	}

	for _, src := range w.imageRefs {
		back += `<br><img src="` + src + `">`
	}

	content := &NoteContent{
		Fields:  []string{normalizeField(front), normalizeField(back)},
		Tags:    sanitizeTags(card.Tags),
		Reverse: typ == models.TypeInverted,
	}

	var ext *models.Extended
	if typ.Lossy() {
		content.Tags = append(content.Tags, TypeTagPrefix+string(typ))
		ext = w.Extended()
		ext.ImageRef = w.ImageRef
		if ext.ImageRef != "" {
			ext.Image = ""
		}
	} else if w.Extra != "" {
		ext = &models.Extended{Type: typ, Extra: w.Extra}
	}
	if n := len(w.imageRefs); n > 0 {
		if ext == nil {
			ext = &models.Extended{Type: typ}
		}
		ext.SuffixImages = n
	}
	if ext != nil {
		data, err := json.Marshal(ext)
		if err != nil {
			return nil, err
		}
		content.Data = string(data)
	}
	return content, nil
}

// workingCard is a flashcard whose inline payloads were moved into the registry.
type workingCard struct {
	models.Flashcard
	ImageRef  string
	imageRefs []string
}

func (a *FlashcardAdapter) rewriteMedia(card *models.Flashcard) (*workingCard, error) {
	w := &workingCard{Flashcard: *card}
	w.Flashcard.Options = append([]string(nil), card.Options...)
	w.Flashcard.OcclusionAreas = append([]models.OcclusionArea(nil), card.OcclusionAreas...)

	if a.media == nil {
		for _, img := range card.Images {
			if img != "" {
				w.imageRefs = append(w.imageRefs, html.EscapeString(img))
			}
		}
		return w, nil
	}

	var err error
	rewrite := func(s *string) {
		if err != nil || *s == "" {
			return
		}
		*s, err = a.media.RewriteReferences(*s)
	}
	rewrite(&w.Front)
	rewrite(&w.Back)
	rewrite(&w.Extra)
	rewrite(&w.Text)
	rewrite(&w.Question)
	rewrite(&w.Explanation)
	rewrite(&w.Statement)
	rewrite(&w.Answer)
	rewrite(&w.Hint)
	for i := range w.Options {
		rewrite(&w.Options[i])
	}
	if err != nil {
		return nil, err
	}

	if w.Image != "" {
		name, ok, err := a.media.RegisterDataURI(w.Image)
		if err != nil {
			return nil, err
		}
		if ok {
			w.ImageRef = name
		}
	}

	for _, img := range card.Images {
		if img == "" {
			continue
		}
		name, ok, err := a.media.RegisterDataURI(img)
		if err != nil {
			return nil, err
		}
		if !ok {
			name = html.EscapeString(img)
		}
		w.imageRefs = append(w.imageRefs, name)
	}
	return w, nil
}

func renderChoices(w *workingCard) (string, string) {
	var front strings.Builder
	front.WriteString(firstNonEmpty(w.Question, w.Front))
	if len(w.Options) > 0 {
		front.WriteString(`<ol type="A">`)
		for _, opt := range w.Options {
			front.WriteString("<li>")
			front.WriteString(opt)
			front.WriteString("</li>")
		}
		front.WriteString("</ol>")
	}

	back := w.Back
	if w.Correct != nil && *w.Correct >= 0 && *w.Correct < len(w.Options) {
		back = w.Options[*w.Correct]
	}
	if w.Explanation != "" {
		if back != "" {
			back += "<br>"
		}
		back += w.Explanation
	}
	return front.String(), back
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func normalizeField(s string) string {
	s = norm.NFC.String(s)
	return strings.ReplaceAll(s, FieldSeparator, " ")
}

const FieldSeparator = models.FieldSeparator

// sanitizeTags makes every tag a single space-free token of valid UTF-8 with
// no control characters. Duplicates, empty tags and reserved type tags are
// dropped; order is kept.
func sanitizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = norm.NFC.String(strings.ToValidUTF8(tag, string(utf8.RuneError)))
		tag = strings.Join(strings.Fields(tag), "_")
		tag = strings.Map(dropControl, tag)
		if tag == "" || strings.HasPrefix(tag, TypeTagPrefix) {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func dropControl(r rune) rune {
	if unicode.IsControl(r) {
		return -1
	}
	return r
}

// malformedNoteError carries the reason a note could not be decoded.
type malformedNoteError struct {
	reason string
}

func (e *malformedNoteError) Error() string { return e.reason }

func malformed(reason string) error { return &malformedNoteError{reason: reason} }

var (
	trailingImage = regexp.MustCompile(`<br><img src="([^"<>]*)">$`)
	clozeMarker   = regexp.MustCompile(`\{\{c\d+::`)
)

// FromNote rebuilds a flashcard from a note. model may be nil when the note
// references a model the collection does not define.
func (a *FlashcardAdapter) FromNote(note *models.Note, model *models.NoteModel, cards []*models.Card, resolver MediaResolver) (*models.Flashcard, error) {
	if note.Flds == "" {
		return nil, malformed("empty fields")
	}
	if !validTags(note.Tags) {
		return nil, malformed("unparseable tags")
	}

	arity := 2
	if model != nil && len(model.Flds) > 0 {
		arity = len(model.Flds)
	}
	fields := note.Fields()
	if len(fields) == 1 && arity >= 2 {
		return nil, malformed("missing field separator")
	}
	if len(fields) > maxFieldArity {
		return nil, malformed("field arity beyond tolerance")
	}
	for len(fields) < 2 {
		fields = append(fields, "")
	}

	card := &models.Flashcard{
		GUID:  note.GUID,
		Front: fields[0],
		Back:  fields[1],
		Extra: strings.Join(fields[2:], " "),
		Tags:  []string{},
	}

	var tagged models.FlashcardType
	for _, tag := range note.TagList() {
		if strings.HasPrefix(tag, TypeTagPrefix) {
			if t, ok := models.ParseFlashcardType(strings.TrimPrefix(tag, TypeTagPrefix)); ok {
				tagged = t
				continue
			}
		}
		card.Tags = append(card.Tags, tag)
	}

	var ext *models.Extended
	if note.Data != "" && strings.HasPrefix(strings.TrimSpace(note.Data), "{") {
		var e models.Extended
		if err := json.Unmarshal([]byte(note.Data), &e); err == nil {
			ext = &e
		}
	}

	card.Type = detectType(tagged, model, cards, card.Front)

	if ext != nil && ext.SuffixImages > 0 {
		card.Back, card.Images = liftSuffixImages(card.Back, ext.SuffixImages)
	}

	if ext != nil && card.Type.Lossy() && ext.Type == card.Type {
		card.ApplyExtended(ext)
		if ext.ImageRef != "" {
			card.Image = ext.ImageRef
			if resolver != nil {
				card.Image = resolver.ResolveMediaName(ext.ImageRef)
			}
		}
	} else if ext != nil && len(fields) <= 2 && ext.Extra != "" {
		card.Extra = ext.Extra
	}

	if resolver != nil {
		resolveAll(card, resolver)
	}
	if a.cleanHTML {
		card.Front = cleanHTML(card.Front)
		card.Back = cleanHTML(card.Back)
		card.Extra = cleanHTML(card.Extra)
	}
	return card, nil
}

// liftSuffixImages peels at most n trailing attachments off back, keeping
// their original order.
func liftSuffixImages(back string, n int) (string, []string) {
	var images []string
	for ; n > 0; n-- {
		m := trailingImage.FindStringSubmatchIndex(back)
		if m == nil {
			break
		}
		images = append([]string{html.UnescapeString(back[m[2]:m[3]])}, images...)
		back = back[:m[0]]
	}
	return back, images
}

func detectType(tagged models.FlashcardType, model *models.NoteModel, cards []*models.Card, front string) models.FlashcardType {
	if tagged != "" {
		return tagged
	}
	ords := make(map[int]struct{}, len(cards))
	for _, c := range cards {
		ords[c.Ord] = struct{}{}
	}
	_, has0 := ords[0]
	_, has1 := ords[1]
	if has0 && has1 {
		return models.TypeInverted
	}

	name := ""
	if model != nil {
		name = strings.ToLower(model.Name)
		if model.Type == models.ModelTypeCloze || strings.Contains(name, "cloze") {
			return models.TypeCloze
		}
	}
	if clozeMarker.MatchString(front) {
		return models.TypeCloze
	}
	if len(cards) == 0 && (strings.Contains(name, "revers") || strings.Contains(name, "inverted")) {
		return models.TypeInverted
	}
	return models.TypeBasic
}

func resolveAll(card *models.Flashcard, resolver MediaResolver) {
	for _, s := range []*string{
		&card.Front, &card.Back, &card.Extra, &card.Text, &card.Question,
		&card.Explanation, &card.Statement, &card.Answer, &card.Hint,
	} {
		if *s != "" {
			*s = resolver.ResolveMediaReferences(*s)
		}
	}
	for i := range card.Options {
		card.Options[i] = resolver.ResolveMediaReferences(card.Options[i])
	}
	for i := range card.Images {
		card.Images[i] = resolver.ResolveMediaName(card.Images[i])
	}
}

func validTags(tags string) bool {
	if !utf8.ValidString(tags) {
		return false
	}
	for _, r := range tags {
		if r != ' ' && r != '\t' && unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// cleanHTML drops div and span wrappers, decodes entities and collapses
// whitespace. Other markup is kept untouched.
func cleanHTML(s string) string {
	if s == "" {
		return s
	}
	var b bytes.Buffer
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		switch tt {
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			raw := append([]byte(nil), z.Raw()...)
			name, _ := z.TagName()
			if a := atom.Lookup(name); a == atom.Div || a == atom.Span {
				continue
			}
			b.Write(raw)
		default:
			b.Write(z.Raw())
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
