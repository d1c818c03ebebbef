// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const maxLimit = 100

type listFilter struct {
	field     string
	value     string
	substring bool
}

// listQuery holds the query parameters of a list request
type listQuery struct {
	filters    []listFilter
	where      *vm.Program
	sortBy     string
	descending bool
	limit      int
	pageNumber int
	paginate   bool
}

// parseListQuery parses filter=field=value, filter=field~value, where=expression,
// sort=field, order=asc|desc, limit and page. Unknown parameters are an error.
func parseListQuery(values url.Values) (*listQuery, error) {
	q := &listQuery{limit: maxLimit, pageNumber: 1}
	for key, array := range values {
		if key != "filter" && len(array) > 1 {
			return nil, fmt.Errorf("illegal parameter array '%s'", key)
		}
		var err error
		value := array[0]
		switch key {
		case "filter":
			for _, f := range array {
				i := strings.IndexAny(f, "=~")
				if i < 1 {
					return nil, fmt.Errorf("parameter 'filter': invalid filter '%s'", f)
				}
				q.filters = append(q.filters, listFilter{field: f[:i], value: f[i+1:], substring: f[i] == '~'})
			}
		case "where":
			q.where, err = expr.Compile(value, expr.AllowUndefinedVariables(), expr.AsBool())
		case "sort":
			q.sortBy = value
		case "order":
			switch value {
			case "asc":
			case "desc":
				q.descending = true
			default:
				err = fmt.Errorf("must be asc or desc")
			}
		case "limit":
			q.paginate = true
			q.limit, err = strconv.Atoi(value)
			if err == nil && (q.limit < 1 || q.limit > maxLimit) {
				err = fmt.Errorf("limit out of range")
			}
		case "page":
			q.paginate = true
			q.pageNumber, err = strconv.Atoi(value)
			if err == nil && q.pageNumber < 1 {
				err = fmt.Errorf("page out of range")
			}
		default:
			err = fmt.Errorf("unknown query parameter")
		}
		if err != nil {
			return nil, fmt.Errorf("parameter '%s': %w", key, err)
		}
	}
	return q, nil
}

// apply filters and orders entities
func (q *listQuery) apply(entities []*Entity) ([]*Entity, error) {
	result := make([]*Entity, 0, len(entities))
	for _, e := range entities {
		ok, err := q.match(e)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, e)
		}
	}
	if q.sortBy != "" {
		result = (&Collection{entities: result}).SortBy(q.sortBy).entities
	}
	if q.descending {
		for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
			result[i], result[j] = result[j], result[i]
		}
	}
	return result, nil
}

func (q *listQuery) match(e *Entity) (bool, error) {
	for _, f := range q.filters {
		v, ok := e.Get(f.field)
		if !ok || v == nil {
			return false, nil
		}
		if f.substring {
			if !strings.Contains(KeyString(v), f.value) {
				return false, nil
			}
		} else if !looseEqual(v, f.value) {
			return false, nil
		}
	}
	if q.where == nil {
		return true, nil
	}
	result, err := expr.Run(q.where, e.Attributes())
	if err != nil {
		return false, fmt.Errorf("parameter 'where': %w", err)
	}
	b, _ := result.(bool)
	return b, nil
}

// setHeaders sets the pagination headers for total entities
func (q *listQuery) setHeaders(header http.Header, total int) {
	header.Set("Pagination-Total-Count", strconv.Itoa(total))
	if !q.paginate {
		return
	}
	pageCount := (total + q.limit - 1) / q.limit
	if pageCount == 0 {
		pageCount = 1
	}
	header.Set("Pagination-Limit", strconv.Itoa(q.limit))
	header.Set("Pagination-Page-Count", strconv.Itoa(pageCount))
	header.Set("Pagination-Current-Page", strconv.Itoa(q.pageNumber))
}

// page returns the selected page of entities
func (q *listQuery) page(entities []*Entity) []*Entity {
	if !q.paginate {
		return entities
	}
	from := (q.pageNumber - 1) * q.limit
	if from >= len(entities) {
		return []*Entity{}
	}
	to := from + q.limit
	if to > len(entities) {
		to = len(entities)
	}
	return entities[from:to]
}
