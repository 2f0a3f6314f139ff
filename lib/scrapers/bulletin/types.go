package bulletin

// RawCourse is a single course block lifted off a subject page before
// any normalization. Fields hold display text as-is (whitespace
// collapsed); splitting codes, titles and credits apart is the
// normalizer's job.
type RawCourse struct {
	// Code is the course designator, e.g. "ACCTG 211". Legacy pages
	// cram "ACCTG 211: Title. 4 Credits" into one header; that whole
	// header lands here with Title and CreditText left empty.
	Code        string
	Title       string
	CreditText  string
	Description string
	// Extras holds the trailing paragraphs of a block: prerequisite
	// sentences, general education attributes, cross-listing notes.
	Extras    []string
	SourceURL string
}
