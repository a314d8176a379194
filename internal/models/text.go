package models

// TextEntry is a free-text entry. Notes and journal entries share this shape
// and differ only by the kind they are stored under.
type TextEntry struct {
	Base
	Document
	Body string `json:"body"`
}

func NewText(name, body string, tags ...string) *TextEntry {
	t := &TextEntry{Body: body}
	t.Name = name
	t.SetTags(tags...)
	return t
}

func (t *TextEntry) Stub() TextStub {
	return TextStub{
		UUID:      t.ID,
		Name:      t.Name,
		Tags:      JSONList[string](NormalizeTags(t.Tags)),
		Reminders: JSONList[Reminder](t.Reminders),
		Archived:  t.Archived,
		CreatedAt: epoch(t.CreatedAt),
		MetaPath:  t.ContentPath,
	}
}
