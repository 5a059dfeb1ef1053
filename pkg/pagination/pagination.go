// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package pagination builds the `Content-Range` header used by every table
endpoint response, in the `{offset}-{end}/{total|*}` shape: end equals
`offset + count - 1`, or `offset` itself when count is zero; total is `*`
when an exact count was not requested.
*/
package pagination

import "strconv"

// ContentRange formats the `Content-Range` response header for a result
// page of count rows starting at offset. total is the exact row count when
// known (Prefer: count=exact was honored), or nil when unknown.
func ContentRange(offset, count int64, total *int64) string {
	end := offset + count - 1
	if count == 0 {
		end = offset
	}

	totalStr := "*"
	if total != nil {
		totalStr = strconv.FormatInt(*total, 10)
	}
	return strconv.FormatInt(offset, 10) + "-" + strconv.FormatInt(end, 10) + "/" + totalStr
}

// HeadersOnlyContentRange formats the `Content-Range` header for a mutation
// response reported with `Prefer: return=headers-only`: `*/*/{count}`.
func HeadersOnlyContentRange(count int64) string {
	return "*/*/" + strconv.FormatInt(count, 10)
}
