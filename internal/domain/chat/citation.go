package chat

// ExcerptMaxRunes caps the passage excerpt kept in a citation.
const ExcerptMaxRunes = 200

const UnknownCitationFileName = "Unknown"

// Citation is the display projection of a retrieved passage. It holds no
// reference back to the document, so file names may repeat.
type Citation struct {
	FileName string `json:"fileName"`
	Content  string `json:"content"`
}

func NewCitation(fileName, passage string) Citation {
	if fileName == "" {
		fileName = UnknownCitationFileName
	}
	runes := []rune(passage)
	if len(runes) > ExcerptMaxRunes {
		runes = runes[:ExcerptMaxRunes]
	}
	return Citation{FileName: fileName, Content: string(runes)}
}
