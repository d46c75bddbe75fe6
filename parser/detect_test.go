package parser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectModule(t *testing.T) {
	tests := []struct {
		name   string
		source string
		want   bool
	}{
		{"import declaration", `import { a } from "./a.js"`, true},
		{"side effect import", `import "./a.js"`, true},
		{"export declaration", `export const x = 1`, true},
		{"export after code", "let a = 1\nexport { a }", true},
		{"plain script", `let x = 1; console.log(x)`, false},
		{"dynamic import", `import("./a.js").then(f)`, false},
		{"import meta", `import.meta.url`, false},
		{"nested in block", `{ import("x") }`, false},
		{"property named import", `obj.import; obj?.export`, false},
		{"keyword in string", `let s = "import x from 'y'"`, false},
		{"keyword in comment", "// export default 1\nlet x", false},
		{"object key", `let o = { export: 1 }`, false},
		{"lexer error", "let s = \"unterminated\nexport const a = 1", false},
		{"empty", ``, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DetectModule(tt.source))
		})
	}
}
