// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package restapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/taibuivan/sqlrest/internal/catalog"
	"github.com/taibuivan/sqlrest/internal/filterql"
	"github.com/taibuivan/sqlrest/internal/platform/apperr"
	"github.com/taibuivan/sqlrest/internal/platform/constants"
	"github.com/taibuivan/sqlrest/internal/queryopts"
	"github.com/taibuivan/sqlrest/internal/selectql"
)

// embedFilter is a dotted filter key (`orders.status=eq.shipped`) addressed
// to a named embed rather than the parent table. Forwarded to the matching
// embed's own batch query instead of discarded.
type embedFilter struct {
	embed  string
	column string
	raw    string
}

// parsedQuery holds every request-wide option read off the URL and headers.
type parsedQuery struct {
	selectNodes  []selectql.Node
	where        []filterql.Node
	embedFilters []embedFilter
	order        []queryopts.OrderTerm
	limit        *int64
	offset       *int64
	prefer       queryopts.Preferences
	format       queryopts.Format
}

// parseQuery parses a GET request's query string and the negotiation
// headers against table's column set.
func (h *Handler) parseQuery(r *http.Request, table *catalog.TableInfo) (parsedQuery, error) {
	q := r.URL.Query()

	selectNodes, err := selectql.Parse(q.Get(constants.QueryKeySelect))
	if err != nil {
		return parsedQuery{}, apperr.BadRequest(err.Error())
	}

	where, embedFilters, err := buildFilters(q, table)
	if err != nil {
		return parsedQuery{}, err
	}

	order, _ := queryopts.ParseOrder(q.Get(constants.QueryKeyOrder))

	limit, offset, err := parseLimitOffset(q, r.Header.Get(constants.HeaderRange))
	if err != nil {
		return parsedQuery{}, err
	}

	return parsedQuery{
		selectNodes:  selectNodes,
		where:        where,
		embedFilters: embedFilters,
		order:        order,
		limit:        limit,
		offset:       offset,
		prefer:       queryopts.ParsePrefer(r.Header.Get(constants.HeaderPrefer)),
		format:       queryopts.ParseAccept(r.Header.Get(constants.HeaderAccept)),
	}, nil
}

// buildFilters translates every non-reserved query parameter into a filter
// node, skipping columns the table doesn't have and routing dotted keys to
// the named embed instead of the main WHERE clause. `and`/`or` groups are
// parsed separately and appended as top-level nodes alongside the plain
// column filters (all top-level nodes are implicitly ANDed by sqlgen).
func buildFilters(q url.Values, table *catalog.TableInfo) ([]filterql.Node, []embedFilter, error) {
	var nodes []filterql.Node
	var embeds []embedFilter

	for key, values := range q {
		if key == constants.QueryKeyAnd || key == constants.QueryKeyOr {
			continue
		}
		if constants.ReservedQueryKeys[key] {
			continue
		}
		for _, raw := range values {
			if embedName, tail, ok := splitDotted(key); ok {
				embeds = append(embeds, embedFilter{embed: embedName, column: tail, raw: raw})
				continue
			}
			if _, ok := table.Column(key); !ok {
				continue
			}
			cond, err := filterql.ParseCondition(key, raw)
			if err != nil {
				return nil, nil, apperr.BadRequest(err.Error())
			}
			nodes = append(nodes, filterql.Cond{Condition: cond})
		}
	}

	if raw := q.Get(constants.QueryKeyAnd); raw != "" {
		group, err := parseLogicGroup(raw)
		if err != nil {
			return nil, nil, apperr.BadRequest(err.Error())
		}
		nodes = append(nodes, filterql.And{Children: group})
	}
	if raw := q.Get(constants.QueryKeyOr); raw != "" {
		group, err := parseLogicGroup(raw)
		if err != nil {
			return nil, nil, apperr.BadRequest(err.Error())
		}
		nodes = append(nodes, filterql.Or{Children: group})
	}

	return nodes, embeds, nil
}

// parseLogicGroup strips the enclosing parens a `and=(...)`/`or=(...)`
// value is written with before handing the body to filterql.
func parseLogicGroup(raw string) ([]filterql.Node, error) {
	body := raw
	if strings.HasPrefix(body, "(") && strings.HasSuffix(body, ")") {
		body = body[1 : len(body)-1]
	}
	return filterql.ParseLogicGroup(body)
}

// parseLimitOffset resolves limit/offset from the `limit`/`offset` query
// parameters, falling back to the `Range` header when neither is present.
func parseLimitOffset(q url.Values, rangeHeader string) (limit, offset *int64, err error) {
	limitStr := q.Get(constants.QueryKeyLimit)
	offsetStr := q.Get(constants.QueryKeyOffset)

	if limitStr != "" || offsetStr != "" {
		if limitStr != "" {
			v, parseErr := strconv.ParseInt(limitStr, 10, 64)
			if parseErr != nil {
				return nil, nil, apperr.BadRequest("invalid limit: " + limitStr)
			}
			limit = &v
		}
		if offsetStr != "" {
			v, parseErr := strconv.ParseInt(offsetStr, 10, 64)
			if parseErr != nil {
				return nil, nil, apperr.BadRequest("invalid offset: " + offsetStr)
			}
			offset = &v
		}
		return limit, offset, nil
	}

	if rangeLimit, rangeOffset, ok := queryopts.ParseRange(rangeHeader); ok {
		return &rangeLimit, &rangeOffset, nil
	}
	return nil, nil, nil
}
