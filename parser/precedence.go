package parser

import "github.com/deepnoodle-ai/jsrt/internal/token"

// Precedence order for operators
const (
	_ int = iota
	LOWEST
	ASSIGN      // = += -= ...
	TERNARY     // ? :
	NULLISH     // ??
	LOGICAL_OR  // ||
	LOGICAL_AND // &&
	BIT_OR      // |
	BIT_XOR     // ^
	BIT_AND     // &
	EQUALS      // == != === !==
	LESSGREATER // < > <= >= in instanceof
	SHIFT       // << >> >>>
	SUM         // + -
	PRODUCT     // * / %
	POWER       // **
	PREFIX      // -X !X typeof X
	POSTFIX     // X++ X--
	CALL        // f(X) x.y x[y]
)

// Precedences for each token type
var precedences = map[token.Type]int{
	token.ASSIGN:          ASSIGN,
	token.PLUS_EQUALS:     ASSIGN,
	token.MINUS_EQUALS:    ASSIGN,
	token.ASTERISK_EQUALS: ASSIGN,
	token.SLASH_EQUALS:    ASSIGN,
	token.MOD_EQUALS:      ASSIGN,
	token.POW_EQUALS:      ASSIGN,
	token.AND_EQUALS:      ASSIGN,
	token.OR_EQUALS:       ASSIGN,
	token.NULLISH_EQUALS:  ASSIGN,
	token.QUESTION:        TERNARY,
	token.NULLISH:         NULLISH,
	token.OR:              LOGICAL_OR,
	token.AND:             LOGICAL_AND,
	token.BITOR:           BIT_OR,
	token.CARET:           BIT_XOR,
	token.AMPERSAND:       BIT_AND,
	token.EQ:              EQUALS,
	token.NOT_EQ:          EQUALS,
	token.STRICT_EQ:       EQUALS,
	token.STRICT_NOT_EQ:   EQUALS,
	token.LT:              LESSGREATER,
	token.LT_EQUALS:       LESSGREATER,
	token.GT:              LESSGREATER,
	token.GT_EQUALS:       LESSGREATER,
	token.IN:              LESSGREATER,
	token.INSTANCEOF:      LESSGREATER,
	token.LT_LT:           SHIFT,
	token.GT_GT:           SHIFT,
	token.GT_GT_GT:        SHIFT,
	token.PLUS:            SUM,
	token.MINUS:           SUM,
	token.ASTERISK:        PRODUCT,
	token.SLASH:           PRODUCT,
	token.MOD:             PRODUCT,
	token.POW:             POWER,
	token.PLUS_PLUS:       POSTFIX,
	token.MINUS_MINUS:     POSTFIX,
	token.LPAREN:          CALL,
	token.PERIOD:          CALL,
	token.LBRACKET:        CALL,
	token.QUESTION_DOT:    CALL,
}
