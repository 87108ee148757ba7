package utils

import "strings"

// KnownBookExtensions contains file extensions commonly used for e-books.
var KnownBookExtensions = []string{
	".fb2.zip",
	".fb2",
	".epub",
	".pdf",
	".txt",
	".mobi",
	".azw3",
	".azw",
	".djvu",
}

// ExtractAuthorFromFilename attempts to extract an author name from a
// reader-app filename. Moon+ Reader typically stores files as
// "Title - Author.extension".
func ExtractAuthorFromFilename(filename, bookTitle string) string {
	titlePos := strings.LastIndex(filename, bookTitle)
	if titlePos == -1 {
		return ""
	}

	possibleAuthor := filename[titlePos+len(bookTitle):]

	for _, ext := range KnownBookExtensions {
		possibleAuthor = strings.TrimSuffix(possibleAuthor, ext)
	}

	// Clean up non-alphanumeric characters from beginning and end
	possibleAuthor = strings.TrimFunc(possibleAuthor, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r >= 0x80) // Keep unicode letters
	})

	possibleAuthor = strings.TrimPrefix(possibleAuthor, " - ")
	possibleAuthor = strings.TrimPrefix(possibleAuthor, "-")
	possibleAuthor = strings.TrimSpace(possibleAuthor)

	return possibleAuthor
}
