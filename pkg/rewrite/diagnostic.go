package rewrite

import "fmt"

// Kind classifies a diagnostic. None of them is fatal.
type Kind string

// Diagnostic kinds.
const (
	// NoBinding means the dialect's import was not found.
	NoBinding Kind = "no-binding"
	// UnmatchedChain means no rule applies to a walked chain.
	UnmatchedChain Kind = "unmatched-chain"
	// UnsupportedArgumentShape means a rule matched but could not
	// interpret its arguments.
	UnsupportedArgumentShape Kind = "unsupported-argument-shape"
	// MalformedChain means the chain is structurally inconsistent.
	MalformedChain Kind = "malformed-chain"
	// DroppedMessage means a custom failure message was discarded.
	DroppedMessage Kind = "dropped-message"
)

// Kinds lists every diagnostic kind in reporting order.
func Kinds() []Kind {
	return []Kind{NoBinding, UnmatchedChain, UnsupportedArgumentShape, MalformedChain, DroppedMessage}
}

// Diagnostic records a chain the rewriter left alone or changed lossily.
// Line and Column are zero-based; Column counts UTF-16 units.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Dialect string `json:"dialect"`
	Message string `json:"message"`
	Text    string `json:"text,omitempty"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
}

// String renders the diagnostic with one-based coordinates.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s: %s", d.Line+1, d.Column+1, d.Kind, d.Message)
}

// Rewrite records one replaced chain.
type Rewrite struct {
	Dialect     string   `json:"dialect"`
	Original    string   `json:"original"`
	Replacement string   `json:"replacement"`
	Verbs       []string `json:"verbs"`
	Matchers    []string `json:"matchers"`
	Start       int      `json:"start"`
	End         int      `json:"end"`
	Line        int      `json:"line"`
	Column      int      `json:"column"`
}
