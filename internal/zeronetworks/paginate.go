package zeronetworks

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"rmmhunt/internal/logging"
)

const (
	// DefaultPageSize is the page size sent as _limit when none is set.
	DefaultPageSize = 100

	itemsKey    = "items"
	cursorKey   = "scrollCursor"
	cursorParam = "_cursor"
	limitParam  = "_limit"
)

// PageOptions configures a paginated iteration.
type PageOptions struct {
	// PageSize is the number of items requested per page (_limit).
	PageSize int
	// Params are additional query parameters sent with every page.
	Params url.Values
}

// Iterator walks a cursor-paginated endpoint lazily. It is finite and
// non-restartable: once Next returns false the iteration is over.
//
//	it := client.Paginate(ctx, "/activities/network", opts)
//	for it.Next() {
//		item := it.Item()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator struct {
	client   *Client
	ctx      context.Context
	endpoint string
	pageSize int
	params   url.Values

	cursor string
	buf    []json.RawMessage
	pos    int
	pages  int
	done   bool
	err    error
}

// Paginate returns an iterator over the items of a cursor-paginated
// endpoint. Iteration terminates when a page carries no next cursor, or
// when a page returns fewer items than the page size even if a cursor
// is present (some endpoints return a stray cursor on the final page).
func (c *Client) Paginate(ctx context.Context, endpoint string, opts PageOptions) *Iterator {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	params := url.Values{}
	for k, vs := range opts.Params {
		params[k] = vs
	}
	params.Set(limitParam, strconv.Itoa(pageSize))

	return &Iterator{
		client:   c,
		ctx:      ctx,
		endpoint: endpoint,
		pageSize: pageSize,
		params:   params,
	}
}

// Next advances to the next item, fetching pages as needed. It returns
// false when the iteration is exhausted or failed; check Err after.
func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	for it.pos >= len(it.buf) {
		if it.done {
			return false
		}
		if !it.fetchPage() {
			return false
		}
	}
	it.pos++
	return true
}

// Item returns the raw JSON of the current item.
func (it *Iterator) Item() json.RawMessage {
	return it.buf[it.pos-1]
}

// Err returns the first error encountered during iteration, if any.
func (it *Iterator) Err() error { return it.err }

func (it *Iterator) fetchPage() bool {
	params := it.params
	if it.cursor != "" {
		params.Set(cursorParam, it.cursor)
	} else {
		params.Del(cursorParam)
	}

	body, err := it.client.Get(it.ctx, it.endpoint, params)
	if err != nil {
		it.err = err
		it.done = true
		return false
	}
	it.pages++

	items := gjson.GetBytes(body, itemsKey)
	var page []json.RawMessage
	if items.IsArray() {
		for _, item := range items.Array() {
			page = append(page, json.RawMessage(item.Raw))
		}
	} else if items.Exists() {
		it.client.log.Warn("expected array in items field, treating as empty",
			logging.Endpoint(it.endpoint), zap.String("type", items.Type.String()))
	}

	it.buf = page
	it.pos = 0

	it.cursor = gjson.GetBytes(body, cursorKey).String()
	if it.cursor == "" || len(page) < it.pageSize {
		it.done = true
	}
	return len(page) > 0
}

// Collect drains the iterator and returns all items.
func (it *Iterator) Collect() ([]json.RawMessage, error) {
	var out []json.RawMessage
	for it.Next() {
		out = append(out, it.Item())
	}
	if it.err != nil {
		return nil, it.err
	}
	it.client.log.Debug("pagination complete",
		logging.Endpoint(it.endpoint), zap.Int("pages", it.pages), logging.Count(len(out)))
	return out, nil
}
