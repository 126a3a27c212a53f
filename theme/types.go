package theme

// Token is one CSS custom property derived from the descriptor.
type Token struct {
	Name  string
	Value string
}

// SheetMetadata is the header comment written above a rendered token sheet.
type SheetMetadata struct {
	Source   string
	Schema   string
	Scheme   string
	Checksum string
}
