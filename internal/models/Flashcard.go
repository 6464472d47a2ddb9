package models

import "time"

type FlashcardType string

const (
	TypeBasic          FlashcardType = "basic"
	TypeInverted       FlashcardType = "inverted"
	TypeCloze          FlashcardType = "cloze"
	TypeOcclusion      FlashcardType = "occlusion"
	TypeMultipleChoice FlashcardType = "multiple_choice"
	TypeTrueFalse      FlashcardType = "true_false"
	TypeTypeAnswer     FlashcardType = "type_answer"
)

// ParseFlashcardType accepts the canonical names plus the aliases used by
// older exports ("basic_inverted", "basic_reversed", "image_occlusion").
func ParseFlashcardType(s string) (FlashcardType, bool) {
	switch s {
	case "", string(TypeBasic):
		return TypeBasic, true
	case string(TypeInverted), "basic_inverted", "basic_reversed", "reversed":
		return TypeInverted, true
	case string(TypeCloze):
		return TypeCloze, true
	case string(TypeOcclusion), "image_occlusion":
		return TypeOcclusion, true
	case string(TypeMultipleChoice):
		return TypeMultipleChoice, true
	case string(TypeTrueFalse):
		return TypeTrueFalse, true
	case string(TypeTypeAnswer):
		return TypeTypeAnswer, true
	}
	return "", false
}

// Lossy reports whether the type has no native two-field representation and
// must travel through the tagged fallback.
func (t FlashcardType) Lossy() bool {
	switch t {
	case TypeBasic, TypeInverted, "":
		return false
	}
	return true
}

type OcclusionArea struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Answer string  `json:"answer"`
	Shape  string  `json:"shape"`
}

// StudyStats belong to the application, never to the archive.
type StudyStats struct {
	TimesStudied int       `json:"times_studied"`
	TimesCorrect int       `json:"times_correct"`
	EaseFactor   float64   `json:"ease_factor"`
	Interval     int       `json:"interval"`
	NextReview   time.Time `json:"next_review"`
}

type Flashcard struct {
	ID   string        `json:"id,omitempty"`
	GUID string        `json:"guid,omitempty"`
	Type FlashcardType `json:"type"`

	Front string `json:"front,omitempty"`
	Back  string `json:"back,omitempty"`
	Extra string `json:"extra,omitempty"`

	// cloze
	Text string `json:"text,omitempty"`

	// multiple choice / true-false / type answer
	Question    string   `json:"question,omitempty"`
	Options     []string `json:"options,omitempty"`
	Correct     *int     `json:"correct,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
	Statement   string   `json:"statement,omitempty"`
	Answer      string   `json:"answer,omitempty"`
	Hint        string   `json:"hint,omitempty"`

	// image occlusion
	Image          string          `json:"image,omitempty"`
	OcclusionAreas []OcclusionArea `json:"occlusion_areas,omitempty"`

	Tags   []string `json:"tags"`
	Images []string `json:"images,omitempty"`

	Stats *StudyStats `json:"stats,omitempty"`
}

// Extended is the type-specific payload carried beside the two display fields
// of a lossy flashcard.
type Extended struct {
	Type           FlashcardType   `json:"type"`
	Front          string          `json:"front,omitempty"`
	Back           string          `json:"back,omitempty"`
	Text           string          `json:"text,omitempty"`
	Extra          string          `json:"extra,omitempty"`
	Question       string          `json:"question,omitempty"`
	Options        []string        `json:"options,omitempty"`
	Correct        *int            `json:"correct,omitempty"`
	Explanation    string          `json:"explanation,omitempty"`
	Statement      string          `json:"statement,omitempty"`
	Answer         string          `json:"answer,omitempty"`
	Hint           string          `json:"hint,omitempty"`
	Image          string          `json:"image,omitempty"`
	ImageRef       string          `json:"image_ref,omitempty"`
	OcclusionAreas []OcclusionArea `json:"occlusion_areas,omitempty"`
	// SuffixImages counts the attachments appended to the back field.
	SuffixImages int `json:"suffix_images,omitempty"`
}

func (f *Flashcard) Extended() *Extended {
	return &Extended{
		Type:           f.Type,
		Front:          f.Front,
		Back:           f.Back,
		Text:           f.Text,
		Extra:          f.Extra,
		Question:       f.Question,
		Options:        f.Options,
		Correct:        f.Correct,
		Explanation:    f.Explanation,
		Statement:      f.Statement,
		Answer:         f.Answer,
		Hint:           f.Hint,
		Image:          f.Image,
		OcclusionAreas: f.OcclusionAreas,
	}
}

func (f *Flashcard) ApplyExtended(ext *Extended) {
	if ext == nil {
		return
	}
	if ext.Type != "" {
		f.Type = ext.Type
	}
	f.Front = ext.Front
	f.Back = ext.Back
	f.Text = ext.Text
	f.Extra = ext.Extra
	f.Question = ext.Question
	f.Options = ext.Options
	f.Correct = ext.Correct
	f.Explanation = ext.Explanation
	f.Statement = ext.Statement
	f.Answer = ext.Answer
	f.Hint = ext.Hint
	f.Image = ext.Image
	f.OcclusionAreas = ext.OcclusionAreas
}
