package archive

import "github.com/gabriel-vasile/mimetype"

// SniffLen is how many leading bytes content detection looks at.
const SniffLen = 3072

var executableTypes = []string{
	"application/x-elf",
	"application/x-mach-binary",
	"text/x-shellscript",
	"text/x-python",
	"text/x-perl",
	"text/x-lua",
	"text/x-tcl",
	"text/x-php",
}

// LooksExecutable reports whether the leading bytes of a file are a native
// executable or an interpreter script.
func LooksExecutable(head []byte) bool {
	if len(head) == 0 {
		return false
	}
	m := mimetype.Detect(head)
	for _, t := range executableTypes {
		if isA(m, t) {
			return true
		}
	}
	return false
}
