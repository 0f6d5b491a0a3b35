package postgres

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/levels-catalog/internal/domain/product"
)

var productColumns = map[product.Field]string{
	product.FieldCategory:  "category",
	product.FieldName:      "name",
	product.FieldTrending:  "trending",
	product.FieldCreator:   "creator_id",
	product.FieldCreatedAt: "created_at",
}

// selectQuery renders a product.Query into SQL fragments with positional
// arguments.
type selectQuery struct {
	where   string
	orderBy string
	args    []any
}

func buildQuery(q product.Query) (*selectQuery, error) {
	sq := &selectQuery{}

	conds := make([]string, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		col, ok := productColumns[p.Field]
		if !ok {
			return nil, errors.Errorf("unknown field %q", p.Field)
		}
		sq.args = append(sq.args, p.Value)
		arg := "$" + strconv.Itoa(len(sq.args))

		switch p.Op {
		case product.OpEq:
			conds = append(conds, col+" = "+arg)
		case product.OpContainsFold:
			if _, ok := p.Value.(string); !ok {
				return nil, errors.Errorf("%s: substring match needs a string, got %T", p.Field, p.Value)
			}
			conds = append(conds, "strpos(lower("+col+"), lower("+arg+")) > 0")
		default:
			return nil, errors.Errorf("unknown operator %q", p.Op)
		}
	}
	if len(conds) > 0 {
		sq.where = " WHERE " + strings.Join(conds, " AND ")
	}

	keys := make([]string, 0, len(q.Order)+1)
	for _, o := range q.Order {
		col, ok := productColumns[o.Field]
		if !ok {
			return nil, errors.Errorf("unknown sort field %q", o.Field)
		}
		if o.Desc {
			col += " DESC"
		}
		keys = append(keys, col)
	}
	// Stable pagination across equal sort keys.
	keys = append(keys, "id")
	sq.orderBy = " ORDER BY " + strings.Join(keys, ", ")

	return sq, nil
}

// page returns the LIMIT/OFFSET clause. A negative limit selects all rows.
func (sq *selectQuery) page(limit, offset int) string {
	var b strings.Builder
	if limit >= 0 {
		b.WriteString(" LIMIT ")
		b.WriteString(strconv.Itoa(limit))
	}
	if offset > 0 {
		b.WriteString(" OFFSET ")
		b.WriteString(strconv.Itoa(offset))
	}
	return b.String()
}
