package db

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// HashFile computes the whole-file content hash used for the reindex
// fast path. Raw bytes, no normalization: any edit re-triggers the diff.
func HashFile(src string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(src)))
}

// HashDecl computes a declaration's content hash from its own normalized
// text: line comments stripped, per-line whitespace collapsed, blank lines
// dropped. Comment-only and whitespace-only edits are hash-stable, and
// unrelated file regions never influence a declaration's hash.
func HashDecl(declText string) string {
	h := sha256.New()
	for _, line := range strings.Split(declText, "\n") {
		line = stripLineComment(line)
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		fmt.Fprintln(h, strings.Join(fields, " "))
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// stripLineComment cuts line at the first // that sits outside a string
// literal, so slashes inside quoted text (URLs, paths) stay part of the
// hashed content.
func stripLineComment(line string) string {
	inStr := false
	for i := 0; i < len(line); i++ {
		switch {
		case inStr && line[i] == '\\':
			i++ // skip the escaped character
		case line[i] == '"':
			inStr = !inStr
		case !inStr && line[i] == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}

// hashDeep combines a fragment's own hash with the hashes of its transitive
// dependencies, sorted for determinism. Must be called with the Database
// lock held (read or write).
func (d *Database) hashDeep(id FragID) string {
	own, ok := d.frags[id]
	if !ok {
		return ""
	}
	seen := map[FragID]bool{id: true}
	queue := []FragID{id}
	var depHashes []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for dep := range d.graph.fwd[cur] {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			if f, ok := d.frags[dep]; ok {
				depHashes = append(depHashes, f.Hash)
			}
			queue = append(queue, dep)
		}
	}
	sort.Strings(depHashes)

	h := sha256.New()
	fmt.Fprintf(h, "own:%s\n", own.Hash)
	for _, dh := range depHashes {
		fmt.Fprintf(h, "dep:%s\n", dh)
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
