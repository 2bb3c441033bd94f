package parser

import (
	"strings"

	"github.com/wippyai/wasm-plugins/wat/internal/token"
)

// Node is an atom or a parenthesized list. For lists Tok is the opening
// parenthesis; annotation lists carry their name in Annot.
type Node struct {
	Annot    string
	Children []*Node
	Tok      token.Token
	List     bool
}

func (n *Node) Pos() token.Pos {
	return n.Tok.Pos
}

// Head returns the leading keyword of a list, or "".
func (n *Node) Head() string {
	if !n.List || n.Annot != "" || len(n.Children) == 0 {
		return ""
	}
	if c := n.Children[0]; !c.List && c.Tok.Type == token.Ident {
		return c.Tok.Value
	}
	return ""
}

// Is reports whether n is a plain list headed by kw.
func (n *Node) Is(kw string) bool {
	return n.Head() == kw
}

func (n *Node) IsAtom(typ token.Type) bool {
	return !n.List && n.Tok.Type == typ
}

// IsID reports whether n is a $identifier atom.
func (n *Node) IsID() bool {
	return n.IsAtom(token.Ident) && strings.HasPrefix(n.Tok.Value, "$")
}

// Describe names the node for error messages.
func (n *Node) Describe() string {
	switch {
	case n.Annot != "":
		return "(@" + n.Annot + " ...)"
	case n.List && n.Head() != "":
		return "(" + n.Head() + " ...)"
	case n.List:
		return "list"
	case n.Tok.Type == token.String:
		return "string \"" + n.Tok.Value + "\""
	}
	return "\"" + n.Tok.Value + "\""
}

// Read builds the list structure of a token stream. Unbalanced parentheses
// are reported; unclosed lists are closed at the end of input.
func Read(tokens []token.Token) ([]*Node, []*token.Error) {
	var (
		top   []*Node
		stack []*Node
		errs  []*token.Error
	)
	add := func(n *Node) {
		if len(stack) == 0 {
			top = append(top, n)
			return
		}
		parent := stack[len(stack)-1]
		parent.Children = append(parent.Children, n)
	}

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		switch t.Type {
		case token.LParen:
			n := &Node{Tok: t, List: true}
			if i+1 < len(tokens) && tokens[i+1].Type == token.Annotation {
				i++
				n.Annot = tokens[i].Value
			}
			add(n)
			stack = append(stack, n)
		case token.RParen:
			if len(stack) == 0 {
				errs = append(errs, &token.Error{Pos: t.Pos, Msg: "unexpected ')'"})
				continue
			}
			stack = stack[:len(stack)-1]
		case token.Annotation:
			errs = append(errs, &token.Error{Pos: t.Pos, Msg: "annotation must follow '('"})
		default:
			add(&Node{Tok: t})
		}
	}
	if len(stack) > 0 {
		errs = append(errs, &token.Error{Pos: stack[0].Pos(), Msg: "unclosed '(': unexpected end of input"})
	}
	return top, errs
}

// cursor walks the children of one list.
type cursor struct {
	nodes []*Node
	i     int
}

func newCursor(nodes []*Node) *cursor {
	return &cursor{nodes: nodes}
}

func (c *cursor) more() bool {
	return c.i < len(c.nodes)
}

func (c *cursor) peek() *Node {
	if c.i >= len(c.nodes) {
		return nil
	}
	return c.nodes[c.i]
}

func (c *cursor) next() *Node {
	n := c.peek()
	if n != nil {
		c.i++
	}
	return n
}

// nextIs consumes and returns the next node when it is a list headed by kw.
func (c *cursor) nextIs(kw string) *Node {
	if n := c.peek(); n != nil && n.Is(kw) {
		c.i++
		return n
	}
	return nil
}

// optID consumes a leading $identifier.
func (c *cursor) optID() string {
	if n := c.peek(); n != nil && n.IsID() {
		c.i++
		return n.Tok.Value
	}
	return ""
}

// skip consumes every consecutive list headed by kw.
func (c *cursor) skip(kw string) {
	for c.nextIs(kw) != nil {
	}
}
