package processor

import (
	"go/ast"
	"go/constant"
	"go/token"
)

// literalValue computes the constant value of an assertion argument that is
// made up of literals only, such as 5, -1, "abc" or 1 << 10. It returns nil
// for anything that needs name resolution to evaluate.
func literalValue(expr ast.Expr) constant.Value {
	switch e := expr.(type) {
	case *ast.BasicLit:
		v := constant.MakeFromLiteral(e.Value, e.Kind, 0)
		if v.Kind() == constant.Unknown {
			return nil
		}
		return v

	case *ast.ParenExpr:
		return literalValue(e.X)

	case *ast.Ident:
		switch e.Name {
		case "true":
			return constant.MakeBool(true)
		case "false":
			return constant.MakeBool(false)
		}
		return nil

	case *ast.UnaryExpr:
		v := literalValue(e.X)
		if v == nil {
			return nil
		}
		switch e.Op {
		case token.SUB, token.ADD, token.XOR:
			if !isNumeric(v) {
				return nil
			}
		case token.NOT:
			if v.Kind() != constant.Bool {
				return nil
			}
		default:
			return nil
		}
		return constant.UnaryOp(e.Op, v, 0)

	case *ast.BinaryExpr:
		lv := literalValue(e.X)
		rv := literalValue(e.Y)
		if lv == nil || rv == nil {
			return nil
		}
		switch e.Op {
		case token.SHL, token.SHR:
			if lv.Kind() != constant.Int || rv.Kind() != constant.Int || constant.Sign(rv) < 0 {
				return nil
			}
			sh, ok := constant.Uint64Val(rv)
			if !ok || sh > 1024 {
				return nil
			}
			return constant.Shift(lv, e.Op, uint(sh))

		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ:
			if !comparable(lv, rv, e.Op) {
				return nil
			}
			return constant.MakeBool(constant.Compare(lv, e.Op, rv))

		case token.LAND, token.LOR:
			if lv.Kind() != constant.Bool || rv.Kind() != constant.Bool {
				return nil
			}
			return constant.BinaryOp(lv, e.Op, rv)

		case token.ADD:
			if lv.Kind() == constant.String && rv.Kind() == constant.String {
				return constant.BinaryOp(lv, e.Op, rv)
			}
			fallthrough
		case token.SUB, token.MUL, token.QUO:
			if !isNumeric(lv) || !isNumeric(rv) {
				return nil
			}
			if e.Op == token.QUO && constant.Sign(rv) == 0 {
				return nil
			}
			op := e.Op
			if op == token.QUO && lv.Kind() == constant.Int && rv.Kind() == constant.Int {
				// integer division, like the compiler does for untyped ints
				op = token.QUO_ASSIGN
			}
			return constant.BinaryOp(lv, op, rv)

		case token.REM, token.AND, token.OR, token.XOR, token.AND_NOT:
			if lv.Kind() != constant.Int || rv.Kind() != constant.Int {
				return nil
			}
			if e.Op == token.REM && constant.Sign(rv) == 0 {
				return nil
			}
			return constant.BinaryOp(lv, e.Op, rv)
		}
	}
	return nil
}

func isNumeric(v constant.Value) bool {
	switch v.Kind() {
	case constant.Int, constant.Float, constant.Complex:
		return true
	}
	return false
}

func comparable(lv, rv constant.Value, op token.Token) bool {
	switch {
	case isNumeric(lv) && isNumeric(rv):
		if op == token.EQL || op == token.NEQ {
			return true
		}
		return lv.Kind() != constant.Complex && rv.Kind() != constant.Complex
	case lv.Kind() == constant.String && rv.Kind() == constant.String:
		return true
	case lv.Kind() == constant.Bool && rv.Kind() == constant.Bool:
		return op == token.EQL || op == token.NEQ
	}
	return false
}

// literalKind describes a constant for error messages.
func literalKind(v constant.Value) string {
	switch v.Kind() {
	case constant.Bool:
		return "bool literal"
	case constant.String:
		return "string literal"
	case constant.Int:
		return "int literal"
	case constant.Float:
		return "float literal"
	case constant.Complex:
		return "complex literal"
	default:
		return "literal"
	}
}
