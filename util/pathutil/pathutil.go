package pathutil

import (
	"strings"

	"github.com/awender/fableforge/util/stringutil"
)

const FILENAME_MAX_LENGTH = 240

// Invalid filename characters in Windows (NTFS), replaced with full-width
// alternatives so generated names are safe everywhere.
var FilenameRestrictedCharacterReplacement = map[rune]rune{
	'*':  '＊',
	':':  '：',
	'<':  '＜',
	'>':  '＞',
	'|':  '｜',
	'?':  '？',
	'"':  '＂',
	'/':  '／',
	'\\': '＼',
}

var FilenameRestrictedCharacterReplacer *strings.Replacer

func init() {
	args := []string{}
	for old, new := range FilenameRestrictedCharacterReplacement {
		args = append(args, string(old), string(new))
	}
	FilenameRestrictedCharacterReplacer = strings.NewReplacer(args...)
}

// Return a cleaned safe base filename (without path).
// 1. Replace invalid chars with alternatives (e.g. "?" => "？").
// 2. CleanTitle (clean \r, \n and other invisible chars then TrimSpace).
// 3. Clean trailing dot (".") (Windows does NOT allow dot in the end of filename).
// 4. Truncate name to at most 240 (UTF-8 string) bytes.
func CleanBasename(name string) string {
	name = FilenameRestrictedCharacterReplacer.Replace(name)
	name = stringutil.CleanTitle(name)
	for len(name) > 0 && name[len(name)-1] == '.' {
		name = name[:len(name)-1]
	}
	name = strings.TrimSpace(name)
	return stringutil.StringPrefixInBytes(name, FILENAME_MAX_LENGTH)
}
