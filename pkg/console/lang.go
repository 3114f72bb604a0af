package console

import "regexp"

// Supported languages, their file extensions and run commands. Commands run
// through bash inside the session's temp directory.
var langExtensions = map[string]string{
	"python": "py",
	"c":      "c",
	"cpp":    "cpp",
	"java":   "java",
	"js":     "js",
	"php":    "php",
	"sql":    "sql",
}

var langCommands = map[string]string{
	"python": "python3 -u user_code.py",
	"c":      "gcc -fdiagnostics-color=never user_code.c -o main && ./main",
	"cpp":    "g++ -fdiagnostics-color=never user_code.cpp -o main && ./main",
	"java":   "", // built per-file from the public class name
	"js":     "node user_code.js",
	"php":    "php user_code.php",
	"sql":    "", // handled by the sqlite path
}

// Supported reports whether a language can be run.
func Supported(language string) bool {
	_, ok := langExtensions[language]
	return ok
}

var publicClassRe = regexp.MustCompile(`public\s+class\s+([A-Za-z_]\w*)`)

// findPublicClassName extracts the public class name from Java source, or ""
// when there is none. Java requires the file name to match it.
func findPublicClassName(javaCode string) string {
	match := publicClassRe.FindStringSubmatch(javaCode)
	if match == nil {
		return ""
	}
	return match[1]
}
