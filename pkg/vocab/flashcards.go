package vocab

import "github.com/japaniel/readerer/pkg/export"

// ExportFilename is the name of the flashcard download.
const ExportFilename = "vocabulary_export.csv"

// Flashcard column names, in export order.
const (
	ColumnWord     = "Word"
	ColumnDef      = "Definition"
	ColumnSentence = "Example Sentence"
	ColumnCloze    = "Cloze Sentence"
)

// Flashcards converts entries into export records, one card per entry.
func Flashcards(entries []Entry) []export.Record {
	rows := make([]export.Record, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, export.Record{
			{Name: ColumnWord, Value: e.Word},
			{Name: ColumnDef, Value: e.Definition},
			{Name: ColumnSentence, Value: e.Sentence},
			{Name: ColumnCloze, Value: CreateCloze(e.Sentence, e.Word)},
		})
	}
	return rows
}

// ExportCSV renders the entries as a flashcard CSV file.
// It reports false when there are no entries.
func ExportCSV(entries []Entry) (*export.File, bool) {
	return export.Encode(Flashcards(entries), ExportFilename)
}
