package sqlshell

import (
	"fmt"
	"strings"

	"github.com/dbufdb/dbufdb/internal/dbquery"
	"github.com/dbufdb/dbufdb/internal/dbval"
)

// Parser parses dbufdb's query surface. It is stateless and safe to reuse.
type Parser struct{}

func NewParser() *Parser { return &Parser{} }

// Parse parses one statement, which must be terminated by a single ';'.
// Only the canonical INSERT spelling is ever recognized — there is no
// special-casing of any other spelling anywhere in this parser.
func (p *Parser) Parse(stmt string) (*dbquery.Query, error) {
	s := strings.TrimSpace(stmt)
	if !strings.HasSuffix(s, ";") {
		return nil, fmt.Errorf("sqlshell: statement must end with ';'")
	}
	if strings.Count(s, ";") != 1 {
		return nil, fmt.Errorf("sqlshell: exactly one ';' terminator is allowed")
	}
	s = strings.TrimSuffix(s, ";")

	toks, err := lex(s)
	if err != nil {
		return nil, err
	}
	c := &cursor{toks: toks}

	if c.peekIdent("FETCH") {
		return p.parseFetchTypes(c)
	}
	if c.peekIdent("CREATE") {
		return p.parseCreateTable(c)
	}
	if c.peekIdent("DROP") {
		return p.parseDropTable(c)
	}
	if c.peekIdent("INSERT") {
		return p.parseInsert(c)
	}
	if c.peekIdent("SELECT") {
		return p.parseSelect(c)
	}
	return nil, fmt.Errorf("sqlshell: unrecognized statement starting at %q", c.cur().text)
}

// cursor walks the token stream with simple lookahead, in the spirit of a
// naive splitKeyword/splitComma-style parser, just operating on tokens
// instead of raw substrings.
type cursor struct {
	toks []token
	pos  int
}

func (c *cursor) cur() token  { return c.toks[c.pos] }
func (c *cursor) advance() token {
	t := c.toks[c.pos]
	if c.pos < len(c.toks)-1 {
		c.pos++
	}
	return t
}
func (c *cursor) atEOF() bool { return c.cur().kind == tokEOF }

func (c *cursor) peekIdent(word string) bool {
	return c.cur().kind == tokIdent && c.cur().text == word
}

func (c *cursor) expectIdent(word string) error {
	if !c.peekIdent(word) {
		return fmt.Errorf("sqlshell: expected %q, found %q", word, c.cur().text)
	}
	c.advance()
	return nil
}

func (c *cursor) expectSymbol(sym string) error {
	if c.cur().kind != tokSymbol || c.cur().text != sym {
		return fmt.Errorf("sqlshell: expected %q, found %q", sym, c.cur().text)
	}
	c.advance()
	return nil
}

func (c *cursor) expectIdentAny() (string, error) {
	if c.cur().kind != tokIdent {
		return "", fmt.Errorf("sqlshell: expected identifier, found %q", c.cur().text)
	}
	t := c.advance()
	return t.text, nil
}

func (c *cursor) expectString() (string, error) {
	if c.cur().kind != tokString {
		return "", fmt.Errorf("sqlshell: expected string literal, found %q", c.cur().text)
	}
	t := c.advance()
	return t.text, nil
}

func (p *Parser) parseFetchTypes(c *cursor) (*dbquery.Query, error) {
	if err := c.expectIdent("FETCH"); err != nil {
		return nil, err
	}
	if err := c.expectIdent("TYPES"); err != nil {
		return nil, err
	}
	path, err := c.expectString()
	if err != nil {
		return nil, err
	}
	return &dbquery.Query{Kind: dbquery.QueryFetchTypes, Path: path}, nil
}

func (p *Parser) parseCreateTable(c *cursor) (*dbquery.Query, error) {
	if err := c.expectIdent("CREATE"); err != nil {
		return nil, err
	}
	if err := c.expectIdent("TABLE"); err != nil {
		return nil, err
	}
	table, err := c.expectIdentAny()
	if err != nil {
		return nil, err
	}
	if err := c.expectIdent("AS"); err != nil {
		return nil, err
	}
	rowType, err := c.expectIdentAny()
	if err != nil {
		return nil, err
	}
	return &dbquery.Query{Kind: dbquery.QueryCreateTable, Table: table, RowType: rowType}, nil
}

func (p *Parser) parseDropTable(c *cursor) (*dbquery.Query, error) {
	if err := c.expectIdent("DROP"); err != nil {
		return nil, err
	}
	if err := c.expectIdent("TABLE"); err != nil {
		return nil, err
	}
	table, err := c.expectIdentAny()
	if err != nil {
		return nil, err
	}
	return &dbquery.Query{Kind: dbquery.QueryDropTable, Table: table}, nil
}

func (p *Parser) parseInsert(c *cursor) (*dbquery.Query, error) {
	if err := c.expectIdent("INSERT"); err != nil {
		return nil, err
	}
	if err := c.expectIdent("INTO"); err != nil {
		return nil, err
	}
	table, err := c.expectIdentAny()
	if err != nil {
		return nil, err
	}
	if err := c.expectIdent("VALUES"); err != nil {
		return nil, err
	}

	var rows []dbval.Value
	for {
		v, err := parseLiteralValue(c)
		if err != nil {
			return nil, err
		}
		rows = append(rows, v)
		if c.cur().kind == tokSymbol && c.cur().text == "," {
			c.advance()
			continue
		}
		break
	}
	if !c.atEOF() {
		return nil, fmt.Errorf("sqlshell: unexpected trailing input in INSERT")
	}
	return &dbquery.Query{Kind: dbquery.QueryInsertMessages, Table: table, Rows: rows}, nil
}

func (p *Parser) parseSelect(c *cursor) (*dbquery.Query, error) {
	if err := c.expectIdent("SELECT"); err != nil {
		return nil, err
	}

	var fields []dbquery.Projection
	for {
		e, err := parseExpr(c)
		if err != nil {
			return nil, err
		}
		if err := c.expectIdent("AS"); err != nil {
			return nil, err
		}
		alias, err := c.expectIdentAny()
		if err != nil {
			return nil, err
		}
		fields = append(fields, dbquery.Projection{Expr: e, Alias: alias})
		if c.cur().kind == tokSymbol && c.cur().text == "," {
			c.advance()
			continue
		}
		break
	}

	if err := c.expectIdent("FROM"); err != nil {
		return nil, err
	}
	table, err := c.expectIdentAny()
	if err != nil {
		return nil, err
	}

	var where *dbquery.Expr
	if c.peekIdent("WHERE") {
		c.advance()
		where, err = parseExpr(c)
		if err != nil {
			return nil, err
		}
	}

	if !c.atEOF() {
		return nil, fmt.Errorf("sqlshell: unexpected trailing input in SELECT")
	}

	return &dbquery.Query{Kind: dbquery.QuerySelect, Table: table, Fields: fields, Where: where}, nil
}
