package parser

import (
	"github.com/deepnoodle-ai/jsrt/ast"
	"github.com/deepnoodle-ai/jsrt/internal/token"
)

// parseImport parses an import declaration. The current token is "import".
func (p *Parser) parseImport() ast.Stmt {
	stmt := &ast.Import{ImportPos: p.curToken.StartPosition}

	// import "mod"
	if p.peekTokenIs(token.STRING) {
		p.nextToken()
		stmt.Source = p.parseString().(*ast.String)
		if !p.consumeSemicolon() {
			return nil
		}
		return stmt
	}

	// default binding
	if p.peekTokenIs(token.IDENT) {
		p.nextToken()
		stmt.Specs = append(stmt.Specs, &ast.ImportSpec{Imported: "default", Local: p.newIdent(p.curToken)})
		if !p.peekTokenIs(token.COMMA) {
			return p.finishImport(stmt)
		}
		p.nextToken()
	}

	switch {
	case p.peekTokenIs(token.ASTERISK):
		p.nextToken()
		if !p.peekIsContextual("as") {
			p.peekError("namespace import", token.IDENT, p.peekToken)
			return nil
		}
		p.nextToken()
		if !p.expectPeek("namespace import", token.IDENT) {
			return nil
		}
		stmt.Specs = append(stmt.Specs, &ast.ImportSpec{Imported: "*", Local: p.newIdent(p.curToken)})
	case p.peekTokenIs(token.LBRACE):
		p.nextToken()
		for !p.peekTokenIs(token.RBRACE) {
			var imported string
			if p.peekTokenIs(token.STRING) {
				p.nextToken()
				imported = p.curToken.Literal
			} else {
				if !p.expectPeekName("import specifier") {
					return nil
				}
				imported = p.curToken.Literal
			}
			nameTok := p.curToken
			var local *ast.Ident
			if p.peekIsContextual("as") {
				p.nextToken()
				if !p.expectPeek("import specifier", token.IDENT) {
					return nil
				}
				local = p.newIdent(p.curToken)
			} else {
				if nameTok.Type != token.IDENT {
					p.setTokenError(nameTok, "unexpected reserved word %q in import", nameTok.Literal)
					return nil
				}
				local = p.newIdent(nameTok)
			}
			stmt.Specs = append(stmt.Specs, &ast.ImportSpec{Imported: imported, Local: local})
			if p.peekTokenIs(token.RBRACE) {
				break
			}
			if !p.expectPeek("import specifier list", token.COMMA) {
				return nil
			}
		}
		p.nextToken() // }
	default:
		p.peekError("import declaration", token.LBRACE, p.peekToken)
		return nil
	}
	return p.finishImport(stmt)
}

// finishImport parses `from "source"` and the statement terminator.
func (p *Parser) finishImport(stmt *ast.Import) ast.Stmt {
	if !p.peekIsContextual("from") {
		p.peekError("import declaration", token.IDENT, p.peekToken)
		return nil
	}
	p.nextToken()
	if !p.expectPeek("import declaration", token.STRING) {
		return nil
	}
	stmt.Source = p.parseString().(*ast.String)
	if !p.consumeSemicolon() {
		return nil
	}
	return stmt
}

// parseExport parses an export declaration. The current token is "export".
func (p *Parser) parseExport() ast.Stmt {
	pos := p.curToken.StartPosition
	switch {
	case p.peekTokenIs(token.DEFAULT):
		p.nextToken()
		if p.peekTokenIs(token.FUNCTION) {
			p.nextToken()
			decl := p.parseFuncDecl(false)
			if decl == nil {
				return nil
			}
			return &ast.ExportDefault{ExportPos: pos, Func: decl}
		}
		p.nextToken()
		value := p.parseAssignment()
		if value == nil || !p.consumeSemicolon() {
			return nil
		}
		return &ast.ExportDefault{ExportPos: pos, Value: value}
	case p.peekTokenIs(token.LET) || p.peekTokenIs(token.CONST) || p.peekTokenIs(token.VAR):
		p.nextToken()
		decl := p.parseVarDecl()
		if decl == nil || !p.consumeSemicolon() {
			return nil
		}
		return &ast.ExportDecl{ExportPos: pos, Decl: decl}
	case p.peekTokenIs(token.FUNCTION):
		p.nextToken()
		decl := p.parseFuncDecl(true)
		if decl == nil {
			return nil
		}
		return &ast.ExportDecl{ExportPos: pos, Decl: decl}
	case p.peekTokenIs(token.ASTERISK):
		p.setTokenError(p.peekToken, "export * is not supported")
		return nil
	case p.peekTokenIs(token.LBRACE):
		p.nextToken()
		return p.parseExportList(pos)
	}
	p.peekError("export declaration", token.LBRACE, p.peekToken)
	return nil
}

// parseExportList parses `{ a, b as c } [from "mod"]`. The current token
// is "{".
func (p *Parser) parseExportList(pos token.Position) ast.Stmt {
	stmt := &ast.ExportNamed{ExportPos: pos}
	var reserved []token.Token
	for !p.peekTokenIs(token.RBRACE) {
		if !p.expectPeekName("export specifier") {
			return nil
		}
		if p.curToken.Type != token.IDENT {
			reserved = append(reserved, p.curToken)
		}
		spec := &ast.ExportSpec{Local: p.newIdent(p.curToken), Exported: p.curToken.Literal}
		if p.peekIsContextual("as") {
			p.nextToken()
			if p.peekTokenIs(token.STRING) {
				p.nextToken()
			} else if !p.expectPeekName("export specifier") {
				return nil
			}
			spec.Exported = p.curToken.Literal
		}
		stmt.Specs = append(stmt.Specs, spec)
		if p.peekTokenIs(token.RBRACE) {
			break
		}
		if !p.expectPeek("export specifier list", token.COMMA) {
			return nil
		}
	}
	p.nextToken() // }
	stmt.Rbrace = p.curToken.StartPosition
	if p.peekIsContextual("from") {
		p.nextToken()
		if !p.expectPeek("export declaration", token.STRING) {
			return nil
		}
		stmt.Source = p.parseString().(*ast.String)
	} else if len(reserved) > 0 {
		// Local exports must name bindings, which cannot be reserved words.
		p.setTokenError(reserved[0], "unexpected reserved word %q in export", reserved[0].Literal)
		return nil
	}
	if !p.consumeSemicolon() {
		return nil
	}
	return stmt
}
