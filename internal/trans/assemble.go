package trans

import (
	"fmt"
	"strings"

	"github.com/fenlang/fen/internal/db"
)

// Ext returns the output file extension for a target.
func Ext(target db.Target) string {
	switch target {
	case db.TargetC:
		return ".c"
	case db.TargetRust:
		return ".rs"
	case db.TargetPython:
		return ".py"
	}
	return ".out"
}

// Assemble stitches a generation Result into one compilable source file.
// Imported fragments come first, then the file's own declarations in source
// order. For C every header half (defines, typedefs, prototypes) is emitted
// before any definition, so cross-references never need forward ordering.
func Assemble(d *db.Database, fileID db.FileID, target db.Target, res *Result) string {
	ordered := assembleOrder(d, fileID, res)

	var b strings.Builder
	if target == db.TargetC {
		b.WriteString("#include <stdbool.h>\n#include <stdio.h>\n\n")
		for _, id := range ordered {
			if h := res.Outputs[id].Header; h != "" {
				b.WriteString(h)
			}
		}
		b.WriteString("\n")
	}
	for _, id := range ordered {
		if c := res.Outputs[id].Code; c != "" {
			b.WriteString(c)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// assembleOrder lists the fragments to emit: imported fragments in
// deterministic order, then the file's own in declaration order.
func assembleOrder(d *db.Database, fileID db.FileID, res *Result) []db.FragID {
	own := d.FragmentsByFile(fileID)
	ownSet := make(map[db.FragID]bool, len(own))
	for _, id := range own {
		ownSet[id] = true
	}
	var ordered []db.FragID
	for _, id := range d.TransitiveFragments(fileID) {
		if _, ok := res.Outputs[id]; ok && !ownSet[id] {
			ordered = append(ordered, id)
		}
	}
	for _, id := range own {
		if _, ok := res.Outputs[id]; ok {
			ordered = append(ordered, id)
		}
	}
	return ordered
}

// AssembleSplit is the C header/source variant of Assemble: the header file
// carries every declaration half behind an include guard, the source file
// includes it and holds only definitions.
func AssembleSplit(d *db.Database, fileID db.FileID, res *Result, headerName string) (code, header string) {
	ordered := assembleOrder(d, fileID, res)

	guard := strings.ToUpper(strings.NewReplacer(".", "_", "-", "_", "/", "_").Replace(headerName))
	var h strings.Builder
	fmt.Fprintf(&h, "#ifndef %s\n#define %s\n\n#include <stdbool.h>\n#include <stdio.h>\n\n", guard, guard)
	for _, id := range ordered {
		if hh := res.Outputs[id].Header; hh != "" {
			h.WriteString(hh)
		}
	}
	fmt.Fprintf(&h, "\n#endif /* %s */\n", guard)

	var c strings.Builder
	fmt.Fprintf(&c, "#include %q\n\n", headerName)
	for _, id := range ordered {
		if cc := res.Outputs[id].Code; cc != "" {
			c.WriteString(cc)
			c.WriteString("\n")
		}
	}
	return c.String(), h.String()
}
